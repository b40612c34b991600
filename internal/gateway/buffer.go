package gateway

import (
	"sync"
)

// BoundedBuffer is a fixed-capacity FIFO hand-off between message
// producers and the batch drain loop. Put blocks while the buffer is full;
// reads never block.
type BoundedBuffer[T any] struct {
	mu      sync.Mutex
	notFull *sync.Cond
	buf     []T
	head    int // read position
	tail    int // write position
	count   int
	closed  bool

	// Stats
	totalEnqueued int64
	totalDequeued int64
}

// NewBoundedBuffer creates a buffer with the given fixed capacity.
func NewBoundedBuffer[T any](capacity int) *BoundedBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &BoundedBuffer[T]{
		buf: make([]T, capacity),
	}
	b.notFull = sync.NewCond(&b.mu)
	return b
}

// Put adds an item, blocking while the buffer is full. Returns false if
// the buffer is closed.
func (b *BoundedBuffer[T]) Put(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == len(b.buf) && !b.closed {
		b.notFull.Wait()
	}
	if b.closed {
		return false
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % len(b.buf)
	b.count++
	b.totalEnqueued++
	return true
}

// TryGet removes and returns the oldest item without blocking.
func (b *BoundedBuffer[T]) TryGet() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.takeLocked(), true
}

// DrainUpTo removes and returns up to max items without blocking. Returns
// nil when the buffer is empty.
func (b *BoundedBuffer[T]) DrainUpTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || max < 1 {
		return nil
	}

	n := b.count
	if max < n {
		n = max
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = b.takeLocked()
	}
	return result
}

// Close closes the buffer. Blocked and future Put calls return false;
// items already queued remain readable.
func (b *BoundedBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.notFull.Broadcast()
}

// Len returns the current number of queued items.
func (b *BoundedBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *BoundedBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Stats returns buffer statistics.
func (b *BoundedBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      len(b.buf),
		TotalEnqueued: b.totalEnqueued,
		TotalDequeued: b.totalDequeued,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalEnqueued int64
	TotalDequeued int64
}

// takeLocked removes the head item. Must be called with the lock held and
// count > 0.
func (b *BoundedBuffer[T]) takeLocked() T {
	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero // Clear reference for GC
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	b.totalDequeued++
	b.notFull.Signal()
	return item
}
