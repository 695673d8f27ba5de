// Package queue implements PersistentQueue, a durable, transactional
// FIFO queue backed by an append-only journal on local disk.
package queue

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tol/kestrel/journal"
)

// Resolver resolves a named queue, used to look up a configured
// move-expired-to republish target. It is the only external
// collaborator this package depends on; a process-wide registry (see
// the host package), a test double, or anything else satisfying this
// one method can be passed to New.
type Resolver interface {
	Lookup(name string) (*PersistentQueue, bool)
}

// PersistentQueue is a durable, transactional FIFO queue. All exported
// methods are safe for concurrent use.
type PersistentQueue struct {
	Name string

	mu sync.Mutex

	journal  *journal.Journal
	cfg      *Setting[Config]
	resolver Resolver
	log      *log.Entry

	buffer  deque.Deque[Item]
	waiters WaitQueue
	openTx  map[uint32]Item
	xidCounter uint32

	queueLength int64
	queueSize   int64
	memoryBytes int64

	totalItems     int64
	totalExpired   int64
	totalDiscarded int64
	currentAgeMs   int64

	closed       bool
	paused       bool
	isReplaying  bool
	inReadBehind bool

	failed error
}

// New opens (creating if necessary) the journal at path, replays it to
// reconstruct in-memory state, and returns a ready-to-use queue named
// name. cfg provides this queue's (possibly overridden) configuration;
// resolver, if non-nil, is consulted for Config.MoveExpiredTo lookups.
func New(name, path string, cfg *Setting[Config], resolver Resolver) (*PersistentQueue, error) {
	entry := log.WithField("queue", name)
	j, err := journal.Open(path, entry)
	if err != nil {
		return nil, errors.Wrapf(err, "opening queue %q", name)
	}
	q := &PersistentQueue{
		Name:     name,
		journal:  j,
		cfg:      cfg,
		resolver: resolver,
		openTx:   make(map[uint32]Item),
		log:      entry,
	}
	if err := q.setupLocked(); err != nil {
		return nil, errors.Wrapf(err, "replaying queue %q", name)
	}
	return q, nil
}

// NewStandalone is a convenience constructor for a queue with its own
// private configuration, not sharing a process-wide default with any
// other queue. Useful outside a Host (tests, one-off tools).
func NewStandalone(name, path string, cfg Config) (*PersistentQueue, error) {
	return New(name, path, NewSetting(NewBase(cfg)), nil)
}

// Err returns the error that put this queue into its fail-stop state,
// or nil if the queue is healthy.
func (q *PersistentQueue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failed
}

// fail transitions the queue to its fail-stop state. Only the first
// failure is recorded; once failed, the queue accepts no further
// mutating operations.
func (q *PersistentQueue) fail(err error) {
	if q.failed == nil {
		q.failed = errors.Wrap(err, ErrFailed.Error())
		q.log.WithError(err).Error("queue journal failed; queue is now unusable")
	}
}

func (q *PersistentQueue) unusable() bool {
	return q.closed || q.failed != nil
}

// Reconfigure installs cfg as this queue's local configuration
// override, effective on the next operation. Passing nil clears the
// override, reverting to the shared process-wide default. Toggling
// KeepJournal off erases the on-disk journal; toggling it back on
// recreates an empty one.
func (q *PersistentQueue) Reconfigure(cfg *Config) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	was := q.cfg.Get()
	q.cfg.SetOverride(cfg)
	now := q.cfg.Get()

	if was.KeepJournal && !now.KeepJournal {
		return q.journal.Erase()
	}
	if !was.KeepJournal && now.KeepJournal {
		return q.journal.Reopen()
	}
	return nil
}
