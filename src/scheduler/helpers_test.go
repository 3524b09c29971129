package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2021, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestScheduler(t *testing.T, mutate func(cfg *Config)) (*Scheduler, *fakeClock) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Millisecond
	cfg.CycleDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newFakeClock()
	s, err := New(cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s, clock
}

func chatRequest(requester, text string) datastructures.Request {
	return datastructures.Request{
		RequesterID: requester,
		DisplayName: requester,
		Text:        text,
		Voice:       "ann1",
		Engine:      "precise",
		Source:      datastructures.SourceChat,
	}
}

func withPriority(req datastructures.Request, p int) datastructures.Request {
	req.Priority = &p
	return req
}

func mustAccept(t *testing.T, s *Scheduler, req datastructures.Request) datastructures.AdmissionResult {
	t.Helper()
	res := s.Enqueue(req)
	if !res.Accepted {
		t.Fatalf("expected %q from %s to be accepted, got %s (%s)", req.Text, req.RequesterID, res.Reason, res.Detail)
	}
	return res
}

// dequeue checks out the head item the same way the loop does, posing as a running loop for the call.
func dequeue(t *testing.T, s *Scheduler) datastructures.QueueItem {
	t.Helper()

	stop := make(chan struct{})
	s.mtx.Lock()
	processing, prevStop := s.processing, s.stop
	s.processing, s.stop = true, stop
	s.mtx.Unlock()

	item, _, cancel, ok := s.next(stop)

	s.mtx.Lock()
	s.processing, s.stop = processing, prevStop
	s.mtx.Unlock()

	if !ok {
		t.Fatal("expected an item in the queue")
	}
	cancel()
	s.finish(item, nil)
	return item
}

type fakeSynth struct {
	mu      sync.Mutex
	calls   []string
	release chan struct{}
	err     error
	started chan string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice, engine string, options map[string]string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- text
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte("audio:" + text), nil
}

func (f *fakeSynth) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type recordingPlayer struct {
	mu        sync.Mutex
	played    []datastructures.QueueItem
	active    int32
	maxActive int32
	started   chan datastructures.QueueItem
	finished  chan datastructures.QueueItem
	hold      func(ctx context.Context, item datastructures.QueueItem) error
}

func newRecordingPlayer() *recordingPlayer {
	return &recordingPlayer{
		started:  make(chan datastructures.QueueItem, 100),
		finished: make(chan datastructures.QueueItem, 100),
	}
}

func (p *recordingPlayer) Play(ctx context.Context, item datastructures.QueueItem) error {
	n := atomic.AddInt32(&p.active, 1)
	defer atomic.AddInt32(&p.active, -1)
	for {
		max := atomic.LoadInt32(&p.maxActive)
		if n <= max || atomic.CompareAndSwapInt32(&p.maxActive, max, n) {
			break
		}
	}

	p.started <- item

	var err error
	if p.hold != nil {
		err = p.hold(ctx, item)
	}

	p.mu.Lock()
	p.played = append(p.played, item)
	p.mu.Unlock()

	p.finished <- item
	return err
}

func waitFor(t *testing.T, ch <-chan datastructures.QueueItem) datastructures.QueueItem {
	t.Helper()
	select {
	case item := <-ch:
		return item
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback")
	}
	return datastructures.QueueItem{}
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loop to exit")
	}
}

var errSynth = errors.New("provider unavailable")
