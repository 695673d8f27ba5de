// Package host is the in-process registry of named, persistent queues:
// the minimal stand-in for the network-facing queue registry the queue
// package otherwise treats as an external collaborator (queue.Resolver).
package host

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tol/kestrel/queue"
)

// Host owns every named PersistentQueue in the process, resolves
// Config.MoveExpiredTo lookups on their behalf, and applies a
// process-wide configuration default that individual queues may
// override (queue.Setting).
type Host struct {
	dir string

	mu     sync.RWMutex
	queues map[string]*queue.PersistentQueue
	base   *atomic.Pointer[queue.Config]
	log    *log.Entry
}

// New returns a Host rooted at dir, where a declared queue named n has
// its journal at dir/n, using defaultCfg as the shared process-wide
// configuration default for queues declared without an override.
func New(dir string, defaultCfg queue.Config) *Host {
	return &Host{
		dir:    dir,
		queues: make(map[string]*queue.PersistentQueue),
		base:   queue.NewBase(defaultCfg),
		log:    log.WithField("component", "host"),
	}
}

// Lookup implements queue.Resolver, the queueByName contract consulted
// by discardExpired's move_expired_to republish.
func (h *Host) Lookup(name string) (*queue.PersistentQueue, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	q, ok := h.queues[name]
	return q, ok
}

// Declare returns the named queue, replaying it from its on-disk
// journal the first time this process sees it; idempotent thereafter.
// override, if non-nil, becomes this queue's local configuration
// override (queue.Setting semantics); pass nil to track the shared
// default.
func (h *Host) Declare(name string, override *queue.Config) (*queue.PersistentQueue, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if q, ok := h.queues[name]; ok {
		return q, nil
	}

	setting := queue.NewSetting(h.base)
	setting.SetOverride(override)

	q, err := queue.New(name, filepath.Join(h.dir, name), setting, h)
	if err != nil {
		return nil, errors.Wrapf(err, "declaring queue %q", name)
	}
	h.queues[name] = q
	h.log.WithField("queue", name).Info("declared queue")
	return q, nil
}

// Remove closes and erases the named queue's journal and forgets it.
// Kestrel's queue collection had exactly this operation; the base spec
// drops it from scope only for the registry's network-facing half, not
// for this in-process stand-in, which is otherwise unable to
// decommission a queue it created.
func (h *Host) Remove(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	q, ok := h.queues[name]
	if !ok {
		return nil
	}
	delete(h.queues, name)

	if err := q.Close(); err != nil {
		return errors.Wrapf(err, "closing queue %q", name)
	}
	if err := q.DestroyJournal(); err != nil {
		return errors.Wrapf(err, "destroying journal for queue %q", name)
	}
	return nil
}

// CloseAll closes every hosted queue concurrently and returns the first
// error encountered, if any.
func (h *Host) CloseAll(ctx context.Context) error {
	h.mu.RLock()
	qs := make([]*queue.PersistentQueue, 0, len(h.queues))
	for _, q := range h.queues {
		qs = append(qs, q)
	}
	h.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for _, q := range qs {
		q := q
		g.Go(q.Close)
	}
	return g.Wait()
}

// SetDefault updates the shared process-wide configuration default
// applied to queues declared without a local override.
func (h *Host) SetDefault(cfg queue.Config) {
	h.base.Store(&cfg)
}

// Names returns the currently-declared queue names.
func (h *Host) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.queues))
	for n := range h.queues {
		names = append(names, n)
	}
	return names
}
