package journal

import (
	"os"
	"sort"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
)

// OpenItem is a tentatively-removed item awaiting confirm or unremove,
// as needed to reconstruct it across a roll.
type OpenItem struct {
	Xid      uint32
	ExpiryMs uint64
	Data     []byte
}

// LiveItem is a logically-queued, not-yet-removed item, as needed to
// reconstruct it across a roll.
type LiveItem struct {
	ExpiryMs uint64
	Data     []byte
}

// Roll atomically rewrites the journal to contain only the records
// needed to reconstruct the present logical state: a SavedXid marker,
// an AddX+RemoveTentativeX pair per open transaction (in ascending xid
// order), and an AddX per live item in logical (head-to-tail) order.
// The replacement is written to a sibling temp file, fsynced, and
// renamed over the primary before the journal is reopened for append.
func (j *Journal) Roll(xidCounter uint32, open []OpenItem, live []LiveItem) error {
	pf, err := renameio.NewPendingFile(j.path)
	if err != nil {
		return errors.Wrap(err, "creating pending journal replacement")
	}
	defer pf.Cleanup()

	var buf []byte
	buf = encode(buf, Record{Kind: KindSavedXid, Xid: xidCounter})

	sorted := append([]OpenItem(nil), open...)
	sort.Slice(sorted, func(i, k int) bool { return sorted[i].Xid < sorted[k].Xid })
	for _, o := range sorted {
		buf = encode(buf, Record{Kind: KindAddX, ExpiryMs: o.ExpiryMs, Data: o.Data})
		buf = encode(buf, Record{Kind: KindRemoveTentativeX, Xid: o.Xid})
	}
	for _, it := range live {
		buf = encode(buf, Record{Kind: KindAddX, ExpiryMs: it.ExpiryMs, Data: it.Data})
	}

	if _, err := pf.Write(buf); err != nil {
		return errors.Wrap(err, "writing rolled journal")
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return errors.Wrap(err, "committing rolled journal")
	}

	if j.file != nil {
		_ = j.file.Close()
	}
	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "reopening journal after roll")
	}
	j.file = f
	j.size = int64(len(buf))
	j.log.WithField("size", j.size).Info("rolled journal")
	return nil
}
