package queue

import (
	"sort"
	"time"

	"github.com/tol/kestrel/journal"
)

// setupLocked resets observational counters and replays the journal to
// reconstruct in-memory state. Called once from New.
func (q *PersistentQueue) setupLocked() error {
	q.totalItems, q.totalExpired, q.totalDiscarded, q.currentAgeMs = 0, 0, 0, 0
	return q.replayJournalLocked()
}

// replayJournalLocked drives journal.Replay with a sink that
// reconstructs buffer, counters, and open-transaction state record by
// record, then rolls back any transactions still open at end of file —
// the signature of an unclean shutdown mid-transaction.
func (q *PersistentQueue) replayJournalLocked() error {
	q.isReplaying = true

	err := q.journal.Replay(func(rec journal.Record, offsetAfter int64) {
		switch rec.Kind {
		case journal.KindAdd, journal.KindAddX:
			// addTime isn't part of the on-disk record; stamp it at
			// reconstruction time so currentAge stays meaningful.
			item := Item{AddTimeMs: time.Now().UnixMilli(), ExpiryMs: int64(rec.ExpiryMs), Data: rec.Data}
			q.enqueueLocked(item)
			q.totalItems++
			if !q.inReadBehind && q.queueSize >= bound(q.cfg.Get().MaxMemorySize) {
				q.inReadBehind = true
				_ = q.journal.StartReadBehind(offsetAfter)
			}

		case journal.KindRemove:
			q.dequeueHeadLocked()

		case journal.KindRemoveTentative:
			// Legacy tag carries no xid on disk; synthesize one.
			if item, ok := q.dequeueHeadLocked(); ok {
				xid := q.nextXidLocked()
				item.Xid = xid
				q.openTx[xid] = item
			}

		case journal.KindRemoveTentativeX:
			if item, ok := q.dequeueHeadLocked(); ok {
				item.Xid = rec.Xid
				q.openTx[rec.Xid] = item
			}

		case journal.KindSavedXid:
			q.xidCounter = rec.Xid

		case journal.KindUnremove:
			if item, ok := q.openTx[rec.Xid]; ok {
				delete(q.openTx, rec.Xid)
				item.Xid = 0
				q.queueLength++
				q.queueSize += item.Size()
				q.buffer.PushFront(item)
				q.memoryBytes += item.Size()
			}

		case journal.KindConfirmRemove:
			delete(q.openTx, rec.Xid)
		}
	})
	q.isReplaying = false
	if err != nil {
		return err
	}

	var pending []uint32
	for xid := range q.openTx {
		pending = append(pending, xid)
	}
	sort.Slice(pending, func(i, k int) bool { return pending[i] < pending[k] })
	for _, xid := range pending {
		if err := q.unremoveLocked(xid); err != nil {
			return err
		}
	}
	return nil
}
