package submit

import (
	"context"
	"sync"
)

// slotQueue caps concurrent basket submissions. Waiters beyond the cap are
// admitted strictly in arrival order; a released slot always goes to the
// oldest waiter, never to a fresh caller racing past it.
type slotQueue struct {
	mu       sync.Mutex
	capacity int
	active   int
	waiters  []chan struct{}
}

func newSlotQueue(capacity int) *slotQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &slotQueue{capacity: capacity}
}

// acquire blocks until a slot is free or ctx is done.
func (q *slotQueue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if q.active < q.capacity {
		q.active++
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range q.waiters {
			if w == ch {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// The slot was granted between ctx firing and the sweep: hand it on.
		q.release()
		return ctx.Err()
	}
}

// release frees the caller's slot, waking the oldest waiter if any.
func (q *slotQueue) release() {
	q.mu.Lock()
	if len(q.waiters) > 0 {
		ch := q.waiters[0]
		q.waiters = q.waiters[1:]
		q.mu.Unlock()
		close(ch)
		return
	}
	q.active--
	q.mu.Unlock()
}

// depth reports how many callers are waiting for a slot.
func (q *slotQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
