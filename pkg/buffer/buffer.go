package buffer

import (
	"errors"
	"sync"
)

// ErrClosed is returned when writing to a closed buffer.
var ErrClosed = errors.New("buffer: closed")

// Buffer is a thread-safe growable FIFO of T.
//
// Unlike an io.Reader style buffer, Buffer never blocks: Take returns whatever
// is available up to the requested size, which is what a fixed-cadence
// consumer needs.
type Buffer[T any] struct {
	mu     sync.Mutex
	closed bool
	buf    []T
}

// N creates a new Buffer with the specified initial capacity.
// The capacity is a hint; the buffer grows as needed.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		buf: make([]T, 0, n),
	}
}

// Write appends p to the end of the buffer.
func (b *Buffer[T]) Write(p []T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Replace discards the buffered content and stores a copy of p instead.
func (b *Buffer[T]) Replace(p []T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.buf = append(b.buf[:0:0], p...)
	return nil
}

// Take removes and returns up to n elements from the front of the buffer.
// It returns nil when the buffer is empty or n <= 0. The returned slice is
// owned by the caller.
func (b *Buffer[T]) Take(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || len(b.buf) == 0 {
		return nil
	}
	n = min(n, len(b.buf))
	out := make([]T, n)
	copy(out, b.buf)
	b.buf = b.buf[n:]
	if len(b.buf) == 0 {
		// Drop the consumed prefix so a long stream does not pin memory.
		b.buf = b.buf[:0:0]
	}
	return out
}

// TakeAll removes and returns everything in the buffer.
func (b *Buffer[T]) TakeAll() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.buf
	b.buf = nil
	return out
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Snapshot returns a copy of the buffered elements without consuming them.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]T(nil), b.buf...)
}

// Reset discards all buffered elements. The buffer stays writable.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = nil
}

// Close discards all buffered elements and rejects further writes.
// Close is idempotent.
func (b *Buffer[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.buf = nil
	return nil
}
