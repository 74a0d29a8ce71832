// Command forwardplusdemo opens a window and renders the tiled forward
// lighting demo scene.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/tiledforward/forwardplus/engine"
)

func main() {
	var (
		width     = flag.Int("width", 1024, "window width in pixels")
		height    = flag.Int("height", 768, "window height in pixels")
		seed      = flag.Int64("seed", 0, "demo light seed (0 = time-based)")
		debug     = flag.Bool("debug", false, "enable debug logging and shader debug info")
		profiling = flag.Bool("profile", false, "log frame statistics once per second")
		fallback  = flag.Bool("fallback-adapter", false, "force the software GPU adapter")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	log := engine.NewDefaultLogger("forwardplus", *debug)

	app := engine.NewApplication(
		engine.WithApplicationLogger(log),
		engine.WithWindowSize(*width, *height),
		engine.WithLightSeed(*seed),
		engine.WithAppProfiling(*profiling),
		engine.WithFallbackAdapter(*fallback),
	)
	if err := app.Run(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
