// Package scheduler admits speech requests, orders them, synthesizes upcoming
// items ahead of time and feeds them one at a time to a player.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

var ErrInvalidConfig = errors.New("invalid scheduler config")

type PriorityWeights struct {
	Level      int
	Subscriber int
	Gift       int
	Manual     int
}

type Config struct {
	MaxQueueSize   int
	DedupWindow    time.Duration
	DedupCacheSize int
	RateLimit      int
	RateWindow     time.Duration
	RateLedgerSize int

	// Lookahead is how many upcoming items get synthesized ahead of playback.
	Lookahead       int
	AvgItemDuration time.Duration
	PollInterval    time.Duration
	CycleDelay      time.Duration
	SynthTimeout    time.Duration
	InfoLimit       int

	Weights PriorityWeights
}

func DefaultConfig() Config {
	return Config{
		MaxQueueSize:    50,
		DedupWindow:     time.Minute,
		DedupCacheSize:  1000,
		RateLimit:       3,
		RateWindow:      10 * time.Second,
		RateLedgerSize:  1000,
		Lookahead:       3,
		AvgItemDuration: 5 * time.Second,
		PollInterval:    100 * time.Millisecond,
		CycleDelay:      100 * time.Millisecond,
		SynthTimeout:    30 * time.Second,
		InfoLimit:       5,
		Weights: PriorityWeights{
			Level:      1,
			Subscriber: 5,
			Gift:       20,
			Manual:     50,
		},
	}
}

type Option func(s *Scheduler)

// WithClock replaces time.Now, used by tests to move through dedup and rate windows.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

type Scheduler struct {
	cfg Config
	now func() time.Time
	log *logrus.Entry

	mtx sync.Mutex

	queue        *itemQueue
	seq          uint64
	fingerprints *lru.Cache[string, time.Time]
	ledger       *lru.Cache[string, []time.Time]
	stats        datastructures.Stats

	synth    instance.Synthesizer
	inFlight map[string]*preGenTask
	tasks    sync.WaitGroup

	processing    bool
	current       *datastructures.QueueItem
	currentCancel context.CancelFunc
	stop          chan struct{}
	loopDone      chan struct{}
	wake          chan struct{}
}

var _ instance.Scheduler = (*Scheduler)(nil)

func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if cfg.MaxQueueSize <= 0 || cfg.DedupCacheSize <= 0 || cfg.RateLedgerSize <= 0 {
		return nil, ErrInvalidConfig
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.CycleDelay < 0 {
		cfg.CycleDelay = 0
	}

	fingerprints, err := lru.New[string, time.Time](cfg.DedupCacheSize)
	if err != nil {
		return nil, err
	}
	ledger, err := lru.New[string, []time.Time](cfg.RateLedgerSize)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:          cfg,
		now:          time.Now,
		log:          logrus.WithField("component", "scheduler"),
		queue:        newItemQueue(),
		fingerprints: fingerprints,
		ledger:       ledger,
		inFlight:     map[string]*preGenTask{},
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Scheduler) Size() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.queue.Len()
}

// Peek returns copies of the next count items in dequeue order.
func (s *Scheduler) Peek(count int) []datastructures.QueueItem {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if count <= 0 {
		return nil
	}

	ordered := s.queue.ordered()
	if count < len(ordered) {
		ordered = ordered[:count]
	}

	items := make([]datastructures.QueueItem, len(ordered))
	for i, e := range ordered {
		items[i] = *e.item
		items[i].Options = copyOptions(e.item.Options)
	}
	return items
}

func (s *Scheduler) RemoveByID(id string) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.queue.removeByID(id) == nil {
		return false
	}
	s.cancelPreGenLocked(id)
	s.log.WithField("id", id).Info("removed item from queue")
	return true
}

// SetPriority re-prioritises a queued item.
func (s *Scheduler) SetPriority(id string, priority int) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.queue.setPriority(id, priority)
}

// Clear drops every queued item and pending pre-generation and forgets all fingerprints.
func (s *Scheduler) Clear() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	n := s.queue.clear()
	s.cancelAllPreGenLocked()
	s.fingerprints.Purge()
	s.log.WithField("removed", n).Info("queue cleared")
	return n
}

func (s *Scheduler) ClearRateLimit(requesterID string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.ledger.Remove(requesterID)
}

func (s *Scheduler) ClearAllRateLimits() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.ledger.Purge()
}

func (s *Scheduler) ClearDeduplicationCache() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.fingerprints.Purge()
}
