package queue

import (
	"context"
	"time"
)

// RemoveReceive blocks until an item is available, the queue closes, or
// deadlineMs (an absolute Unix millisecond timestamp) is reached. A
// zero or already-past deadlineMs makes a single non-blocking attempt,
// equivalent to Remove.
func (q *PersistentQueue) RemoveReceive(ctx context.Context, deadlineMs int64, transactional bool) (Item, bool) {
	return q.receive(ctx, deadlineMs, func(nowMs int64) (Item, bool) {
		return q.removeLocked(transactional, nowMs)
	})
}

// PeekReceive is the blocking form of Peek.
func (q *PersistentQueue) PeekReceive(ctx context.Context, deadlineMs int64) (Item, bool) {
	return q.receive(ctx, deadlineMs, q.peekLocked)
}

func (q *PersistentQueue) receive(ctx context.Context, deadlineMs int64, op func(nowMs int64) (Item, bool)) (Item, bool) {
	for {
		q.mu.Lock()
		if q.closed || q.paused {
			q.mu.Unlock()
			return Item{}, false
		}
		item, ok := op(time.Now().UnixMilli())
		if ok {
			q.mu.Unlock()
			return item, true
		}
		if deadlineMs <= 0 {
			q.mu.Unlock()
			return Item{}, false
		}
		wait := time.Until(time.UnixMilli(deadlineMs))
		ch := q.waiters.Enroll()
		q.mu.Unlock()

		if wait <= 0 {
			return q.finalAttempt(ch, op)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ch:
			timer.Stop()
			continue
		case <-timer.C:
			return q.finalAttempt(ch, op)
		case <-ctx.Done():
			timer.Stop()
			q.mu.Lock()
			q.waiters.Cancel(ch)
			q.mu.Unlock()
			return Item{}, false
		}
	}
}

// finalAttempt retries op once more after deregistering ch, closing the
// race where add/unremove signals the waiter in the same instant its
// deadline fires.
func (q *PersistentQueue) finalAttempt(ch chan struct{}, op func(nowMs int64) (Item, bool)) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiters.Cancel(ch)
	return op(time.Now().UnixMilli())
}
