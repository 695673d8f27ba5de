// Package journal implements the append-only binary log backing one
// persistent queue: a sequence of length-prefixed, tagged records that
// can be replayed to reconstruct in-memory queue state after a crash,
// rotated ("rolled") to drop obsolete history, and streamed from disk
// on demand when a queue's in-memory working set is bounded below its
// logical size ("read-behind").
package journal

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Journal is the on-disk log for one queue. It is not safe for
// concurrent use; callers serialize access (the owning queue's mutex).
type Journal struct {
	path string
	file *os.File
	size int64
	log  *log.Entry

	rbFile   *os.File
	rbReader *bufio.Reader
	rbOffset int64
}

// Open creates the journal file if it does not exist and opens it for
// append, reporting its current size.
func Open(path string, entry *log.Entry) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating journal directory")
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening journal file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stating journal file")
	}
	return &Journal{path: path, file: f, size: info.Size(), log: entry}, nil
}

// Size returns the current length of the journal file in bytes.
func (j *Journal) Size() int64 { return j.size }

// Append writes rec to the end of the journal, optionally fsyncing
// before returning, and reports the byte offset the record was written
// at (i.e. the journal's size immediately before this call).
func (j *Journal) Append(rec Record, sync bool) (offsetBefore int64, err error) {
	offsetBefore = j.size
	buf := encode(nil, rec)
	if _, err = j.file.Write(buf); err != nil {
		return offsetBefore, errors.Wrapf(err, "appending %s record", rec.Kind)
	}
	j.size += int64(len(buf))
	if sync {
		if err = j.file.Sync(); err != nil {
			return offsetBefore, errors.Wrap(err, "fsyncing journal")
		}
	}
	return offsetBefore, nil
}

func (j *Journal) AppendAdd(data []byte, sync bool) (int64, error) {
	return j.Append(Record{Kind: KindAdd, Data: data}, sync)
}

func (j *Journal) AppendAddX(expiryMs uint64, data []byte, sync bool) (int64, error) {
	return j.Append(Record{Kind: KindAddX, ExpiryMs: expiryMs, Data: data}, sync)
}

func (j *Journal) AppendRemove(sync bool) (int64, error) {
	return j.Append(Record{Kind: KindRemove}, sync)
}

func (j *Journal) AppendRemoveTentativeX(xid uint32, sync bool) (int64, error) {
	return j.Append(Record{Kind: KindRemoveTentativeX, Xid: xid}, sync)
}

func (j *Journal) AppendUnremove(xid uint32, sync bool) (int64, error) {
	return j.Append(Record{Kind: KindUnremove, Xid: xid}, sync)
}

func (j *Journal) AppendConfirmRemove(xid uint32, sync bool) (int64, error) {
	return j.Append(Record{Kind: KindConfirmRemove, Xid: xid}, sync)
}

func (j *Journal) AppendSavedXid(xid uint32, sync bool) (int64, error) {
	return j.Append(Record{Kind: KindSavedXid, Xid: xid}, sync)
}

// Replay decodes every record from the start of the file in order,
// invoking sink with each record and the absolute byte offset
// immediately following it. A crash mid-append leaves a truncated
// trailing record; decoding stops there and the torn tail is discarded
// from the file. After replay the journal is reopened for append at the
// observed end.
func (j *Journal) Replay(sink func(Record, int64)) error {
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking journal to start for replay")
	}
	br := bufio.NewReader(j.file)
	var offset int64

	for {
		rec, n, err := decodeFrame(br)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			j.log.WithField("offset", offset).Warn("discarding truncated trailing journal record")
			break
		}
		if err != nil {
			j.log.WithError(err).WithField("offset", offset).Warn("corrupt or unknown journal record, discarding remainder")
			break
		}
		offset += int64(n)
		sink(rec, offset)
	}

	if err := j.file.Truncate(offset); err != nil {
		return errors.Wrap(err, "truncating torn journal tail")
	}
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(err, "seeking journal to end after replay")
	}
	j.size = offset
	return nil
}

// InReadBehind reports whether the journal is currently streaming
// not-yet-materialized items in from disk.
func (j *Journal) InReadBehind() bool { return j.rbFile != nil }

// StartReadBehind opens a second, independent read cursor at atOffset.
// Subsequent PullNext calls decode forward from there without
// disturbing the append file position.
func (j *Journal) StartReadBehind(atOffset int64) error {
	f, err := os.Open(j.path)
	if err != nil {
		return errors.Wrap(err, "opening journal for read-behind")
	}
	if _, err := f.Seek(atOffset, io.SeekStart); err != nil {
		f.Close()
		return errors.Wrap(err, "seeking read-behind cursor")
	}
	j.rbFile = f
	j.rbReader = bufio.NewReader(f)
	j.rbOffset = atOffset
	j.log.WithField("offset", atOffset).Info("entering read-behind")
	return nil
}

func (j *Journal) endReadBehind() {
	j.log.WithField("offset", j.rbOffset).Info("leaving read-behind")
	_ = j.rbFile.Close()
	j.rbFile, j.rbReader = nil, nil
}

// PullNext decodes forward from the read-behind cursor until it finds
// the next Add or AddX record — skipping Remove/RemoveTentative(X)/
// Unremove/ConfirmRemove/SavedXid records, which carry no item — and
// returns it. ok is false once the cursor catches up to the current
// write end, at which point read-behind mode has ended, or if the
// journal isn't in read-behind at all.
func (j *Journal) PullNext() (rec Record, ok bool, err error) {
	if j.rbFile == nil {
		return Record{}, false, nil
	}
	for {
		if j.rbOffset >= j.size {
			j.endReadBehind()
			return Record{}, false, nil
		}
		rec, n, err := decodeFrame(j.rbReader)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			j.endReadBehind()
			return Record{}, false, nil
		}
		if err != nil {
			return Record{}, false, err
		}
		j.rbOffset += int64(n)
		if rec.Kind == KindAdd || rec.Kind == KindAddX {
			return rec, true, nil
		}
	}
}

// Erase closes and permanently removes the journal file from disk.
func (j *Journal) Erase() error {
	if j.rbFile != nil {
		j.rbFile.Close()
		j.rbFile, j.rbReader = nil, nil
	}
	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return errors.Wrap(err, "closing journal before erase")
		}
		j.file = nil
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing journal file")
	}
	j.size = 0
	return nil
}

// Reopen recreates an empty journal file at the same path, used after
// Erase or when the keep-journal option is toggled back on.
func (j *Journal) Reopen() error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR|os.O_APPEND|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "reopening journal file")
	}
	j.file = f
	j.size = 0
	return nil
}

// Close releases the journal's file handles without altering its
// on-disk content.
func (j *Journal) Close() error {
	if j.rbFile != nil {
		_ = j.rbFile.Close()
		j.rbFile, j.rbReader = nil, nil
	}
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func decodeFrame(br *bufio.Reader) (Record, int, error) {
	var head [4]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		if err == io.EOF {
			return Record{}, 0, io.EOF
		}
		return Record{}, 0, io.ErrUnexpectedEOF
	}
	frameLen := binary.LittleEndian.Uint32(head[:])
	if frameLen == 0 {
		return Record{}, 0, errCorrupt("zero-length frame")
	}
	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(br, frame); err != nil {
		return Record{}, 0, io.ErrUnexpectedEOF
	}
	rec, err := decodePayload(Kind(frame[0]), frame[1:])
	if err != nil {
		return Record{}, 0, err
	}
	return rec, 4 + int(frameLen), nil
}
