package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tol/kestrel/queue"
)

func TestDeclareIsIdempotent(t *testing.T) {
	h := New(t.TempDir(), queue.DefaultConfig())

	q1, err := h.Declare("jobs", nil)
	require.NoError(t, err)
	q2, err := h.Declare("jobs", nil)
	require.NoError(t, err)
	require.Same(t, q1, q2)
}

func TestDeclareWithOverride(t *testing.T) {
	h := New(t.TempDir(), queue.DefaultConfig())

	override := queue.DefaultConfig()
	override.MaxItems = 1
	q, err := h.Declare("bounded", &override)
	require.NoError(t, err)

	require.True(t, q.Add([]byte("a"), 0))
	require.False(t, q.Add([]byte("b"), 0))
}

func TestLookupResolvesMoveExpiredTo(t *testing.T) {
	h := New(t.TempDir(), queue.DefaultConfig())

	target, err := h.Declare("dead-letter", nil)
	require.NoError(t, err)

	srcCfg := queue.DefaultConfig()
	srcCfg.MoveExpiredTo = "dead-letter"
	src, err := h.Declare("primary", &srcCfg)
	require.NoError(t, err)

	require.True(t, src.Add([]byte("expired"), 1)) // expiry in the past relative to the check below

	_, ok := target.Peek()
	require.False(t, ok) // not moved yet

	_, ok = src.Remove(false) // triggers discardExpired -> republish
	require.False(t, ok)

	got, ok := target.Remove(false)
	require.True(t, ok)
	require.Equal(t, "expired", string(got.Data))
}

func TestRemoveDecommissionsQueue(t *testing.T) {
	h := New(t.TempDir(), queue.DefaultConfig())

	_, err := h.Declare("scratch", nil)
	require.NoError(t, err)
	require.NoError(t, h.Remove("scratch"))

	_, ok := h.Lookup("scratch")
	require.False(t, ok)

	// Re-declaring recreates it fresh, with an empty journal.
	q, err := h.Declare("scratch", nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), q.Stat().Length)
}

func TestCloseAllClosesEveryQueue(t *testing.T) {
	h := New(t.TempDir(), queue.DefaultConfig())

	a, err := h.Declare("a", nil)
	require.NoError(t, err)
	b, err := h.Declare("b", nil)
	require.NoError(t, err)

	require.NoError(t, h.CloseAll(context.Background()))

	require.False(t, a.Add([]byte("x"), 0))
	require.False(t, b.Add([]byte("x"), 0))
}
