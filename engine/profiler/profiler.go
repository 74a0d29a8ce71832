// Package profiler tracks frame rate and memory statistics of the render
// loop and reports them at a fixed interval.
package profiler

import (
	"fmt"
	"runtime"
	"time"
)

// Reporter receives the formatted statistics line once per interval.
type Reporter func(line string)

// Profiler accumulates per-frame timing and reports FPS, heap usage,
// allocation rate and GC pauses.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	report         Reporter

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// BuilderOption is a functional option applied by NewProfiler.
type BuilderOption func(*Profiler)

// WithUpdateInterval sets how often statistics are reported.
//
// Parameters:
//   - interval: the reporting interval (values <= 0 keep the default)
//
// Returns:
//   - BuilderOption: the option function
func WithUpdateInterval(interval time.Duration) BuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithReporter sets the sink the statistics line is delivered to.
//
// Parameters:
//   - report: the reporter function
//
// Returns:
//   - BuilderOption: the option function
func WithReporter(report Reporter) BuilderOption {
	return func(p *Profiler) {
		p.report = report
	}
}

// NewProfiler creates a profiler reporting once per second by default.
//
// Parameters:
//   - opts: variadic list of BuilderOption functions
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(opts ...BuilderOption) *Profiler {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tick records one frame. When the update interval has elapsed, a statistics
// line is delivered to the reporter and the counters reset.
//
// Returns:
//   - bool: true if statistics were reported this tick
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	if p.report != nil {
		p.report(fmt.Sprintf("FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			fps, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB))
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
