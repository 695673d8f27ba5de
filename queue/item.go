package queue

// Item is an immutable queued value. Xid is 0 when the item isn't
// currently part of an open transaction.
type Item struct {
	AddTimeMs int64
	ExpiryMs  int64 // 0 = never
	Data      []byte
	Xid       uint32
}

// Size is the logical byte size of the item, used for all
// queueSize/memoryBytes accounting.
func (it Item) Size() int64 { return int64(len(it.Data)) }

// adjustExpiry clamps expiry to addTime+maxAge when maxAge is set,
// tightening (never loosening) whatever expiry the caller requested.
func adjustExpiry(addTimeMs, expiryMs, maxAgeMs int64) int64 {
	if maxAgeMs <= 0 {
		return expiryMs
	}
	ceiling := addTimeMs + maxAgeMs
	if expiryMs > 0 && expiryMs < ceiling {
		return expiryMs
	}
	return ceiling
}
