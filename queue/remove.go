package queue

import "time"

// Peek returns the head item without dequeuing it.
func (q *PersistentQueue) Peek() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.peekLocked(time.Now().UnixMilli())
}

func (q *PersistentQueue) peekLocked(nowMs int64) (Item, bool) {
	if q.unusable() || q.paused || q.queueLength == 0 {
		return Item{}, false
	}
	q.discardExpiredLocked(nowMs)
	if q.buffer.Len() == 0 {
		return Item{}, false
	}
	return q.buffer.Front(), true
}

// Remove dequeues the head item. If transactional, the item moves into
// the open-transaction table under a freshly assigned xid, pending
// Confirm or Unremove; otherwise it is destroyed immediately.
func (q *PersistentQueue) Remove(transactional bool) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(transactional, time.Now().UnixMilli())
}

func (q *PersistentQueue) removeLocked(transactional bool, nowMs int64) (Item, bool) {
	if q.unusable() || q.paused || q.queueLength == 0 {
		return Item{}, false
	}
	q.discardExpiredLocked(nowMs)
	item, ok := q.dequeueHeadLocked()
	if !ok {
		return Item{}, false
	}
	q.currentAgeMs = nowMs - item.AddTimeMs

	cfg := q.cfg.Get()
	if transactional {
		xid := q.nextXidLocked()
		item.Xid = xid
		q.openTx[xid] = item
		if cfg.KeepJournal {
			if _, err := q.journal.AppendRemoveTentativeX(xid, cfg.SyncJournal); err != nil {
				q.fail(err)
				return Item{}, false
			}
		}
		return item, true
	}

	if cfg.KeepJournal {
		if _, err := q.journal.AppendRemove(cfg.SyncJournal); err != nil {
			q.fail(err)
			return Item{}, false
		}
		if q.queueLength == 0 && q.journal.Size() >= bound(cfg.MaxJournalSize) {
			if err := q.rollLocked(); err != nil {
				q.fail(err)
			}
		}
	}
	return item, true
}

// Unremove reinserts a tentatively-removed item at the head and drops
// its open transaction. A confirm or unremove of an unknown xid is
// silently ignored after the journal record is appended (idempotent on
// replay): the record still documents the resolution even if this
// process no longer holds the item (e.g. after a restart lost it).
func (q *PersistentQueue) Unremove(xid uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unusable() {
		return
	}
	if err := q.unremoveLocked(xid); err != nil {
		q.fail(err)
	}
}

func (q *PersistentQueue) unremoveLocked(xid uint32) error {
	cfg := q.cfg.Get()
	item, ok := q.openTx[xid]
	if cfg.KeepJournal {
		if _, err := q.journal.AppendUnremove(xid, cfg.SyncJournal); err != nil {
			return err
		}
	}
	if !ok {
		return nil
	}
	delete(q.openTx, xid)
	item.Xid = 0
	q.queueLength++
	q.queueSize += item.Size()
	q.buffer.PushFront(item)
	q.memoryBytes += item.Size()
	q.waiters.WakeOne()
	return nil
}

// ConfirmRemove permanently commits a tentatively-removed item's
// removal, dropping its open transaction.
func (q *PersistentQueue) ConfirmRemove(xid uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unusable() {
		return
	}
	cfg := q.cfg.Get()
	if cfg.KeepJournal {
		if _, err := q.journal.AppendConfirmRemove(xid, cfg.SyncJournal); err != nil {
			q.fail(err)
			return
		}
	}
	delete(q.openTx, xid)
}

// dequeueHeadLocked pops the head item from the in-memory buffer (which
// always holds the current head, even in read-behind) and, if in
// read-behind, refills from the journal to keep memoryBytes near its
// bound. Refilling is skipped during replay: the replay sink's own
// forward scan is what advances the logical tail there, and pulling
// from the journal's independent read-behind cursor concurrently would
// race ahead of it and double-process the same records.
func (q *PersistentQueue) dequeueHeadLocked() (Item, bool) {
	if q.buffer.Len() == 0 {
		return Item{}, false
	}
	item := q.buffer.PopFront()
	q.queueLength--
	q.queueSize -= item.Size()
	q.memoryBytes -= item.Size()
	if !q.isReplaying {
		q.refillReadBehindLocked()
	}
	return item, true
}

// refillReadBehindLocked pulls items from the journal's read-behind
// cursor into memory until memoryBytes respects MaxMemorySize or the
// cursor catches up to the write end, at which point read-behind ends.
func (q *PersistentQueue) refillReadBehindLocked() {
	if !q.inReadBehind {
		return
	}
	cfg := q.cfg.Get()
	for q.inReadBehind && q.memoryBytes < bound(cfg.MaxMemorySize) {
		rec, ok, err := q.journal.PullNext()
		if err != nil {
			q.fail(err)
			return
		}
		if !ok {
			q.inReadBehind = false
			break
		}
		item := Item{ExpiryMs: int64(rec.ExpiryMs), AddTimeMs: time.Now().UnixMilli(), Data: rec.Data}
		q.buffer.PushBack(item)
		q.memoryBytes += item.Size()
	}
}

// discardExpiredLocked drops expired items from the head, republishing
// each through Config.MoveExpiredTo when configured and resolvable.
// Never invoked mid-replay: replay reconstructs exact historical state
// and leaves expiry re-evaluation to the next live peek/remove.
func (q *PersistentQueue) discardExpiredLocked(nowMs int64) int {
	if q.isReplaying {
		return 0
	}
	cfg := q.cfg.Get()
	var n int
	for q.buffer.Len() > 0 {
		head := q.buffer.Front()
		if head.ExpiryMs == 0 || head.ExpiryMs >= nowMs {
			break
		}
		item, _ := q.dequeueHeadLocked()
		q.totalExpired++
		n++
		if cfg.KeepJournal {
			if _, err := q.journal.AppendRemove(cfg.SyncJournal); err != nil {
				q.fail(err)
				return n
			}
		}
		if cfg.MoveExpiredTo != "" && q.resolver != nil {
			if target, ok := q.resolver.Lookup(cfg.MoveExpiredTo); ok {
				target.Add(item.Data, 0)
			}
		}
	}
	return n
}

// nextXidLocked pre-increments the wrapping 32-bit transaction counter,
// skipping the reserved "no transaction" sentinel (0) and any value
// already in use by an open transaction.
func (q *PersistentQueue) nextXidLocked() uint32 {
	for {
		q.xidCounter++
		if q.xidCounter == 0 {
			continue
		}
		if _, exists := q.openTx[q.xidCounter]; !exists {
			return q.xidCounter
		}
	}
}
