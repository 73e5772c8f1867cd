package ringbuffer

import (
	"errors"
	"sync"

	"github.com/budecosystem/waav-gateway/pkg/payload"
)

// ErrClosed is returned by [Buffer.Push] once [Buffer.Close] has been called.
var ErrClosed = errors.New("ringbuffer: buffer closed")

// Buffer is a bounded FIFO of [payload.Payload] values used on general
// (non-audio) DAG edges. Unlike [SPSC] it is not wait-free — it uses a mutex
// because typed edges are not on the real-time audio path — and it supports
// multiple producers, a single idempotent close, and a len/capacity query
// surface for backpressure metrics.
type Buffer struct {
	mu       sync.Mutex
	items    []payload.Payload
	capacity int
	closed   bool
	stats    Stats
}

// NewBuffer constructs a typed FIFO with the given item capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	b := &Buffer{
		items:    make([]payload.Payload, 0, capacity),
		capacity: capacity,
	}
	b.stats.capacity = uint64(capacity)
	return b
}

// Push appends p to the buffer. It fails with [ErrClosed] once Close has been
// called, and with [ErrBufferFull] once the buffer has reached capacity.
func (b *Buffer) Push(p payload.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if len(b.items) >= b.capacity {
		return &ErrBufferFull{Requested: 1, Available: 0}
	}
	b.items = append(b.items, p)
	b.stats.pushed.Add(1)
	return nil
}

// Pop removes and returns the oldest item. ok is false if the buffer is
// currently empty (whether or not it is closed).
func (b *Buffer) Pop() (p payload.Payload, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return nil, false
	}
	p = b.items[0]
	b.items = b.items[1:]
	b.stats.popped.Add(1)
	return p, true
}

// Close marks the buffer closed, causing future Push calls to fail. It is
// idempotent: closing an already-closed buffer is a no-op. Items already
// queued remain poppable after Close.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// IsClosed reports whether Close has been called.
func (b *Buffer) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the number of items currently queued.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Capacity returns the buffer's fixed item capacity.
func (b *Buffer) Capacity() int { return b.capacity }

// Stats returns the buffer's shared statistics handle.
func (b *Buffer) Stats() *Stats { return &b.stats }
