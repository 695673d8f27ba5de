package journal

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func truncateFile(t *testing.T, path string, size int64) {
	t.Helper()
	require.NoError(t, os.Truncate(path, size))
}

func newTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal")
	j, err := Open(path, log.WithField("test", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestAppendAndReplayRoundTrip(t *testing.T) {
	j, _ := newTestJournal(t)

	_, err := j.AppendAddX(0, []byte("hello"), false)
	require.NoError(t, err)
	_, err = j.AppendAddX(1234, []byte("world"), false)
	require.NoError(t, err)
	_, err = j.AppendRemove(false)
	require.NoError(t, err)

	var got []Record
	require.NoError(t, j.Replay(func(rec Record, offset int64) {
		got = append(got, rec)
	}))

	require.Len(t, got, 3)
	require.Equal(t, KindAddX, got[0].Kind)
	require.Equal(t, []byte("hello"), got[0].Data)
	require.Equal(t, uint64(0), got[0].ExpiryMs)
	require.Equal(t, KindAddX, got[1].Kind)
	require.Equal(t, uint64(1234), got[1].ExpiryMs)
	require.Equal(t, KindRemove, got[2].Kind)
}

func TestReplayReopensForAppend(t *testing.T) {
	j, path := newTestJournal(t)
	_, err := j.AppendAdd([]byte("x"), false)
	require.NoError(t, err)
	sizeBefore := j.Size()
	require.NoError(t, j.Replay(func(Record, int64) {}))
	require.Equal(t, sizeBefore, j.Size())

	_, err = j.AppendRemove(false)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j2, err := Open(path, log.WithField("test", t.Name()))
	require.NoError(t, err)
	defer j2.Close()

	var kinds []Kind
	require.NoError(t, j2.Replay(func(rec Record, _ int64) { kinds = append(kinds, rec.Kind) }))
	require.Equal(t, []Kind{KindAdd, KindRemove}, kinds)
}

func TestReplayDiscardsTruncatedTail(t *testing.T) {
	j, path := newTestJournal(t)
	_, err := j.AppendAddX(0, []byte("complete"), false)
	require.NoError(t, err)
	completeSize := j.Size()

	_, err = j.AppendAddX(0, []byte("torn-record-payload"), false)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Simulate a crash mid-append by truncating the file partway
	// through the second record's frame.
	truncateFile(t, path, completeSize+6)

	j2, err := Open(path, log.WithField("test", t.Name()))
	require.NoError(t, err)
	defer j2.Close()

	var got []Record
	require.NoError(t, j2.Replay(func(rec Record, _ int64) { got = append(got, rec) }))
	require.Len(t, got, 1)
	require.Equal(t, []byte("complete"), got[0].Data)
	require.Equal(t, completeSize, j2.Size())
}

func TestReadBehindPullsAddRecordsOnly(t *testing.T) {
	j, _ := newTestJournal(t)

	off0, err := j.AppendAddX(0, []byte("a"), false)
	require.NoError(t, err)
	_, err = j.AppendAddX(0, []byte("b"), false)
	require.NoError(t, err)
	_, err = j.AppendRemove(false)
	require.NoError(t, err)
	_, err = j.AppendAddX(0, []byte("c"), false)
	require.NoError(t, err)

	require.NoError(t, j.StartReadBehind(off0))
	require.True(t, j.InReadBehind())

	rec, ok, err := j.PullNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("a"), rec.Data)

	rec, ok, err = j.PullNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("b"), rec.Data)

	// The intervening Remove record is skipped transparently.
	rec, ok, err = j.PullNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("c"), rec.Data)

	_, ok, err = j.PullNext()
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, j.InReadBehind())
}

func TestRollCompactsToLiveAndOpenItems(t *testing.T) {
	j, path := newTestJournal(t)

	_, err := j.AppendAddX(0, []byte("one"), false)
	require.NoError(t, err)
	_, err = j.AppendAddX(0, []byte("two"), false)
	require.NoError(t, err)
	_, err = j.AppendRemove(false) // removes "one"
	require.NoError(t, err)

	require.NoError(t, j.Roll(7,
		[]OpenItem{{Xid: 3, Data: []byte("pending")}},
		[]LiveItem{{Data: []byte("two")}},
	))

	require.NoError(t, j.Close())
	j2, err := Open(path, log.WithField("test", t.Name()))
	require.NoError(t, err)
	defer j2.Close()

	var kinds []Kind
	var xids []uint32
	require.NoError(t, j2.Replay(func(rec Record, _ int64) {
		kinds = append(kinds, rec.Kind)
		if rec.Kind == KindSavedXid {
			xids = append(xids, rec.Xid)
		}
	}))
	require.Equal(t, []Kind{KindSavedXid, KindAddX, KindRemoveTentativeX, KindAddX}, kinds)
	require.Equal(t, []uint32{7}, xids)
}
