package gateway

import (
	"sync"
	"testing"
	"time"
)

func TestBoundedBuffer_BasicPutGet(t *testing.T) {
	buf := NewBoundedBuffer[int](10)

	for i := 0; i < 5; i++ {
		if !buf.Put(i) {
			t.Fatalf("Put(%d) returned false", i)
		}
	}

	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := buf.TryGet()
		if !ok {
			t.Fatalf("TryGet() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("received %d, want %d (FIFO order)", val, i)
		}
	}

	if _, ok := buf.TryGet(); ok {
		t.Error("TryGet() on empty buffer returned true")
	}
}

func TestBoundedBuffer_PutBlocksWhenFull(t *testing.T) {
	buf := NewBoundedBuffer[int](2)
	buf.Put(0)
	buf.Put(1)

	unblocked := make(chan struct{})
	go func() {
		buf.Put(2) // must block until a slot frees up
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("Put on a full buffer did not block")
	case <-time.After(50 * time.Millisecond):
	}

	if val, ok := buf.TryGet(); !ok || val != 0 {
		t.Fatalf("TryGet() = (%d, %v), want (0, true)", val, ok)
	}

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock after a slot freed up")
	}

	if buf.Len() != 2 {
		t.Errorf("Len() = %d, want 2", buf.Len())
	}
}

func TestBoundedBuffer_DrainUpTo(t *testing.T) {
	buf := NewBoundedBuffer[int](20)
	for i := 0; i < 15; i++ {
		buf.Put(i)
	}

	batch := buf.DrainUpTo(10)
	if len(batch) != 10 {
		t.Fatalf("DrainUpTo(10) returned %d items", len(batch))
	}
	for i, val := range batch {
		if val != i {
			t.Errorf("batch[%d] = %d, want %d", i, val, i)
		}
	}

	batch = buf.DrainUpTo(10)
	if len(batch) != 5 {
		t.Fatalf("second DrainUpTo(10) returned %d items, want 5", len(batch))
	}

	if batch = buf.DrainUpTo(10); batch != nil {
		t.Errorf("DrainUpTo on empty buffer = %v, want nil", batch)
	}
}

func TestBoundedBuffer_CloseReleasesBlockedPut(t *testing.T) {
	buf := NewBoundedBuffer[int](1)
	buf.Put(0)

	result := make(chan bool, 1)
	go func() {
		result <- buf.Put(1)
	}()

	time.Sleep(20 * time.Millisecond)
	buf.Close()

	select {
	case ok := <-result:
		if ok {
			t.Error("Put on closed buffer returned true")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Put was not released by Close")
	}

	// Queued items remain readable after close.
	if val, ok := buf.TryGet(); !ok || val != 0 {
		t.Errorf("TryGet() after close = (%d, %v), want (0, true)", val, ok)
	}
}

func TestBoundedBuffer_ConcurrentProducersKeepAllItems(t *testing.T) {
	buf := NewBoundedBuffer[int](8)

	const producers = 10
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buf.Put(base + i)
			}
		}(p * perProducer)
	}

	seen := make(map[int]bool)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		if val, ok := buf.TryGet(); ok {
			if seen[val] {
				t.Fatalf("item %d received twice", val)
			}
			seen[val] = true
			if len(seen) == producers*perProducer {
				break
			}
			continue
		}
		select {
		case <-done:
			if buf.Len() == 0 && len(seen) != producers*perProducer {
				t.Fatalf("received %d items, want %d", len(seen), producers*perProducer)
			}
		case <-time.After(time.Millisecond):
		}
	}

	stats := buf.Stats()
	if stats.TotalEnqueued != int64(producers*perProducer) {
		t.Errorf("TotalEnqueued = %d, want %d", stats.TotalEnqueued, producers*perProducer)
	}
	if stats.TotalDequeued != stats.TotalEnqueued {
		t.Errorf("TotalDequeued = %d, want %d", stats.TotalDequeued, stats.TotalEnqueued)
	}
}

func TestBoundedBuffer_MinimumCapacity(t *testing.T) {
	buf := NewBoundedBuffer[int](0)
	if buf.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", buf.Cap())
	}
}
