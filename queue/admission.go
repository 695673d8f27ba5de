package queue

import (
	"time"

	"github.com/tol/kestrel/journal"
)

// Add appends data to the tail of the queue with the given absolute
// expiry in epoch milliseconds (0 = never). It returns false if the
// queue is closed or failed, data exceeds MaxItemSize, or the queue is
// at capacity and DiscardOldWhenFull is false.
func (q *PersistentQueue) Add(data []byte, expiryMs int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.addLocked(data, expiryMs, time.Now().UnixMilli())
}

func (q *PersistentQueue) addLocked(data []byte, expiryMs, nowMs int64) bool {
	if q.unusable() {
		return false
	}
	cfg := q.cfg.Get()
	if int64(len(data)) > bound(cfg.MaxItemSize) {
		return false
	}

	for q.queueLength >= bound(cfg.MaxItems) || q.queueSize >= bound(cfg.MaxSize) {
		if !cfg.DiscardOldWhenFull {
			return false
		}
		if _, ok := q.dequeueHeadLocked(); !ok {
			break // nothing left to discard; admission would loop forever otherwise
		}
		q.totalDiscarded++
		if cfg.KeepJournal {
			if _, err := q.journal.AppendRemove(cfg.SyncJournal); err != nil {
				q.fail(err)
				return false
			}
		}
	}

	item := Item{
		AddTimeMs: nowMs,
		ExpiryMs:  adjustExpiry(nowMs, expiryMs, int64(cfg.MaxAge/time.Millisecond)),
		Data:      append([]byte(nil), data...),
	}

	if cfg.KeepJournal && !q.inReadBehind {
		if err := q.considerRotationLocked(cfg); err != nil {
			q.fail(err)
			return false
		}
		if q.queueSize >= bound(cfg.MaxMemorySize) {
			if err := q.journal.StartReadBehind(q.journal.Size()); err != nil {
				q.fail(err)
				return false
			}
			q.inReadBehind = true
		}
	}

	if cfg.KeepJournal {
		if _, err := q.journal.AppendAddX(uint64(item.ExpiryMs), item.Data, cfg.SyncJournal); err != nil {
			q.fail(err)
			return false
		}
	}

	q.enqueueLocked(item)
	q.totalItems++
	q.waiters.WakeOne()
	return true
}

// enqueueLocked adds a freshly-created item to the logical tail. The
// item always counts toward queueLength/queueSize; it only enters the
// in-memory buffer when the queue isn't currently streaming from disk.
func (q *PersistentQueue) enqueueLocked(item Item) {
	q.queueLength++
	q.queueSize += item.Size()
	if !q.inReadBehind {
		q.buffer.PushBack(item)
		q.memoryBytes += item.Size()
	}
}

// considerRotationLocked rolls the journal when it has grown well past
// MaxJournalSize relative to the live queue size, or past the hard
// MaxJournalSizeAbsolute cap.
func (q *PersistentQueue) considerRotationLocked(cfg Config) error {
	size := q.journal.Size()
	overflow := float64(size) > float64(bound(cfg.MaxJournalSize))*cfg.MaxJournalOverflow &&
		q.queueSize < bound(cfg.MaxJournalSize)
	absolute := cfg.MaxJournalSizeAbsolute > 0 && size > cfg.MaxJournalSizeAbsolute
	if overflow || absolute {
		return q.rollLocked()
	}
	return nil
}

func (q *PersistentQueue) rollLocked() error {
	open := make([]journal.OpenItem, 0, len(q.openTx))
	for xid, it := range q.openTx {
		open = append(open, journal.OpenItem{Xid: xid, ExpiryMs: uint64(it.ExpiryMs), Data: it.Data})
	}
	live := make([]journal.LiveItem, 0, q.buffer.Len())
	for i := 0; i < q.buffer.Len(); i++ {
		it := q.buffer.At(i)
		live = append(live, journal.LiveItem{ExpiryMs: uint64(it.ExpiryMs), Data: it.Data})
	}
	return q.journal.Roll(q.xidCounter, open, live)
}
