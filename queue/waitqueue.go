package queue

import "github.com/gammazero/deque"

// WaitQueue is a FIFO of blocked consumers, each represented by a
// single-shot wake channel. A caller enrolled via Enroll must eventually
// either observe its channel close or call Cancel.
type WaitQueue struct {
	waiters deque.Deque[chan struct{}]
}

// Enroll registers a new waiter at the tail and returns its wake
// channel.
func (w *WaitQueue) Enroll() chan struct{} {
	ch := make(chan struct{})
	w.waiters.PushBack(ch)
	return ch
}

// WakeOne signals and removes the oldest enrolled waiter, if any.
func (w *WaitQueue) WakeOne() {
	if w.waiters.Len() == 0 {
		return
	}
	close(w.waiters.PopFront())
}

// WakeAll signals and removes every enrolled waiter, in FIFO order.
func (w *WaitQueue) WakeAll() {
	for w.waiters.Len() > 0 {
		close(w.waiters.PopFront())
	}
}

// Cancel removes a specific waiter from the queue without closing it,
// used when a blocking get times out or its context is cancelled. A
// no-op if ch is no longer enrolled (it may already have been woken).
func (w *WaitQueue) Cancel(ch chan struct{}) {
	for i := 0; i < w.waiters.Len(); i++ {
		if w.waiters.At(i) == ch {
			w.waiters.Remove(i)
			return
		}
	}
}

// Len returns the number of currently enrolled waiters.
func (w *WaitQueue) Len() int { return w.waiters.Len() }
