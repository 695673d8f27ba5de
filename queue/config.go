package queue

import "time"

// Config holds the recognized per-queue options.
type Config struct {
	MaxItems               int64
	MaxSize                int64
	MaxItemSize            int64
	MaxAge                 time.Duration
	MaxJournalSize         int64
	MaxMemorySize          int64
	MaxJournalOverflow     float64
	MaxJournalSizeAbsolute int64
	DiscardOldWhenFull     bool
	KeepJournal            bool
	SyncJournal            bool
	MoveExpiredTo          string
}

// DefaultConfig returns the zero-value-safe baseline: no size/count/age
// limits, journal enabled, fsync disabled, no discard-on-full, no
// expiry republish target.
func DefaultConfig() Config {
	return Config{
		KeepJournal:        true,
		MaxJournalOverflow: 10,
	}
}

// unboundedInt64 stands in for "no limit configured" in bound().
const unboundedInt64 = int64(1) << 62

// bound treats a non-positive limit as "unlimited".
func bound(v int64) int64 {
	if v <= 0 {
		return unboundedInt64
	}
	return v
}
