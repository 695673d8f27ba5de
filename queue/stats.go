package queue

// Stats is a point-in-time snapshot of a queue's observational fields,
// captured under a single lock acquisition so callers never tear reads
// across multiple fields.
type Stats struct {
	Length               int64
	Bytes                int64
	TotalItems           int64
	TotalExpired         int64
	TotalDiscarded       int64
	CurrentAgeMs         int64
	WaiterCount          int
	OpenTransactionCount int
	MemoryLength         int
	MemoryBytes          int64
	JournalSize          int64
	InReadBehind         bool
}

// Stat returns a consistent snapshot of this queue's observational
// fields.
func (q *PersistentQueue) Stat() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Length:               q.queueLength,
		Bytes:                q.queueSize,
		TotalItems:           q.totalItems,
		TotalExpired:         q.totalExpired,
		TotalDiscarded:       q.totalDiscarded,
		CurrentAgeMs:         q.currentAgeMs,
		WaiterCount:          q.waiters.Len(),
		OpenTransactionCount: len(q.openTx),
		MemoryLength:         q.buffer.Len(),
		MemoryBytes:          q.memoryBytes,
		JournalSize:          q.journal.Size(),
		InReadBehind:         q.inReadBehind,
	}
}
