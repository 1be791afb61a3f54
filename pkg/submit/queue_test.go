package submit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSlotQueue_CapsConcurrency(t *testing.T) {
	q := newSlotQueue(2)

	if err := q.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() error: %v", err)
	}
	if err := q.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.acquire(ctx); err == nil {
		t.Fatal("third acquire succeeded past capacity 2")
	}

	q.release()
	if err := q.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() after release error: %v", err)
	}
}

func TestSlotQueue_FIFOOrder(t *testing.T) {
	q := newSlotQueue(1)
	if err := q.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() error: %v", err)
	}

	const waiters = 4
	order := make(chan int, waiters)
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		// Serialize arrival so queue position matches i.
		ready := q.depth()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := q.acquire(context.Background()); err != nil {
				t.Errorf("waiter %d error: %v", i, err)
				return
			}
			order <- i
			q.release()
		}(i)
		for q.depth() == ready {
			time.Sleep(time.Millisecond)
		}
	}

	q.release()
	wg.Wait()
	close(order)

	want := 0
	for got := range order {
		if got != want {
			t.Fatalf("waiter %d admitted before %d; admissions must follow arrival order", got, want)
		}
		want++
	}
}

func TestSlotQueue_CancelledWaiterLeavesQueue(t *testing.T) {
	q := newSlotQueue(1)
	if err := q.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- q.acquire(ctx) }()
	for q.depth() == 0 {
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-errc; err == nil {
		t.Fatal("cancelled acquire returned nil")
	}
	if q.depth() != 0 {
		t.Fatalf("depth = %d after cancellation, want 0", q.depth())
	}

	// The slot still cycles normally.
	q.release()
	if err := q.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() after cancel error: %v", err)
	}
}

func TestSlotQueue_DepthTracksWaiters(t *testing.T) {
	q := newSlotQueue(1)
	if q.depth() != 0 {
		t.Fatalf("fresh queue depth = %d", q.depth())
	}
	if err := q.acquire(context.Background()); err != nil {
		t.Fatalf("acquire() error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		q.acquire(context.Background())
		close(done)
	}()
	for q.depth() != 1 {
		time.Sleep(time.Millisecond)
	}

	q.release()
	<-done
	if q.depth() != 0 {
		t.Fatalf("depth = %d after admission, want 0", q.depth())
	}
}
