// Package queue provides the single-producer/single-consumer event channel
// between the UI thread and the render thread: a double-buffered byte queue of
// typed variable-sized events, and a Fence primitive for cross-thread
// rendezvous.
package queue

import (
	"encoding/binary"
	"sync/atomic"
)

// headerSize is the encoded size of a Header in the event buffer.
const headerSize = 8

// Header prefixes every event in an EventQueue buffer.
type Header struct {
	EventID  uint32
	DataSize uint32
}

// EventQueue is an append-only byte buffer of events. Each event is a Header
// followed by DataSize payload bytes. Payloads must be trivially copyable:
// fixed-size values with no embedded Go pointers (opaque handles such as fence
// IDs are fine).
type EventQueue struct {
	data []byte
}

// IsEmpty reports whether the queue contains no events.
//
// Returns:
//   - bool: true if no events have been pushed since the last Clear
func (q *EventQueue) IsEmpty() bool {
	return len(q.data) == 0
}

// Size returns the number of buffered bytes (headers plus payloads).
//
// Returns:
//   - int: the current buffer size in bytes
func (q *EventQueue) Size() int {
	return len(q.data)
}

// Clear discards all buffered events while retaining capacity, so steady-state
// producers stop allocating once the buffer has grown to its working size.
func (q *EventQueue) Clear() {
	q.data = q.data[:0]
}

// Push appends an event with the given ID and payload bytes.
//
// Parameters:
//   - id: the event type identifier
//   - payload: the event payload (copied into the buffer; may be nil)
func (q *EventQueue) Push(id uint32, payload []byte) {
	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], id)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
	q.data = append(q.data, header[:]...)
	q.data = append(q.data, payload...)
}

// Iterator walks the events of a queue in append order.
type Iterator struct {
	data   []byte
	offset int
}

// Iterate returns an iterator positioned at the first event.
//
// Returns:
//   - Iterator: an iterator over the queue's events
func (q *EventQueue) Iterate() Iterator {
	return Iterator{data: q.data}
}

// Valid reports whether the iterator points at an event.
//
// Returns:
//   - bool: true if Header and Data may be called
func (it *Iterator) Valid() bool {
	return it.offset+headerSize <= len(it.data)
}

// Header decodes the header of the current event.
//
// Returns:
//   - Header: the current event's ID and payload size
func (it *Iterator) Header() Header {
	return Header{
		EventID:  binary.LittleEndian.Uint32(it.data[it.offset:]),
		DataSize: binary.LittleEndian.Uint32(it.data[it.offset+4:]),
	}
}

// Data returns the payload bytes of the current event. The slice aliases the
// queue buffer and is only valid until FinishRead.
//
// Returns:
//   - []byte: the current event's payload
func (it *Iterator) Data() []byte {
	h := it.Header()
	start := it.offset + headerSize
	return it.data[start : start+int(h.DataSize)]
}

// Advance moves the iterator to the next event.
func (it *Iterator) Advance() {
	it.offset += headerSize + int(it.Header().DataSize)
}

// EventDoubleBuffer is an extremely naive "lock-free" double buffer: the
// producer appends into the write queue and periodically swaps; the consumer
// drains the read queue whenever the signal is set. Because the producer only
// swaps while the signal is clear, the consumer never observes a buffer that
// is being written to.
type EventDoubleBuffer struct {
	queues [2]EventQueue
	read   *EventQueue
	write  *EventQueue
	signal atomic.Bool
}

// NewEventDoubleBuffer creates an empty double buffer.
//
// Returns:
//   - *EventDoubleBuffer: the new double buffer
func NewEventDoubleBuffer() *EventDoubleBuffer {
	b := &EventDoubleBuffer{}
	b.read = &b.queues[0]
	b.write = &b.queues[1]
	return b
}

// WriteQueue returns the producer-side queue. Only the producer may touch it.
//
// Returns:
//   - *EventQueue: the current write queue
func (b *EventDoubleBuffer) WriteQueue() *EventQueue {
	return b.write
}

// ReadQueue returns the consumer-side queue, or nil if no buffer has been
// dispatched since the last FinishRead. Only the consumer may touch it.
//
// Returns:
//   - *EventQueue: the current read queue, or nil when nothing is pending
func (b *EventDoubleBuffer) ReadQueue() *EventQueue {
	if b.signal.Load() {
		return b.read
	}
	return nil
}

// DispatchWrite publishes the write queue to the consumer. If the consumer has
// not finished the previous read (signal still set) this is a no-op and the
// producer keeps appending into its current write buffer; those events are
// delivered at the next successful swap. On success the roles swap, the fresh
// write buffer is cleared, and the signal store releases all preceding writes
// to the consumer.
func (b *EventDoubleBuffer) DispatchWrite() {
	if b.signal.Load() {
		// Consumer still reading.
		return
	}

	b.read, b.write = b.write, b.read
	b.write.Clear()

	b.signal.Store(true)
}

// FinishRead clears the signal, returning ownership of the read buffer to the
// producer for the next swap. Must be called by the consumer after it has
// finished iterating.
func (b *EventDoubleBuffer) FinishRead() {
	if b.signal.Load() {
		b.signal.Store(false)
	}
}
