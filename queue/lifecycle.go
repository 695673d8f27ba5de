package queue

import (
	"time"

	"github.com/pkg/errors"
)

// Close marks the queue closed, waking every blocked consumer with no
// item, and releases the journal's file handles. Idempotent.
func (q *PersistentQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.waiters.WakeAll()
	if err := q.journal.Close(); err != nil {
		return errors.Wrap(err, "closing journal")
	}
	return nil
}

// PauseReads suspends peek/remove (they return false/None) without
// affecting writes, waking blocked consumers, which observe the pause
// and return with no item.
func (q *PersistentQueue) PauseReads() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
	q.waiters.WakeAll()
}

// ResumeReads lifts a prior PauseReads.
func (q *PersistentQueue) ResumeReads() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
}

// DestroyJournal erases the on-disk journal without affecting the
// in-memory queue state.
func (q *PersistentQueue) DestroyJournal() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.journal.Erase()
}

// Flush non-transactionally drains every item currently in the queue.
func (q *PersistentQueue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if _, ok := q.removeLocked(false, time.Now().UnixMilli()); !ok {
			return
		}
	}
}
