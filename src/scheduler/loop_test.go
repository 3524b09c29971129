package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
)

func TestLoopPlaysInPriorityOrder(t *testing.T) {
	s, _ := newTestScheduler(t, func(cfg *Config) {
		cfg.RateLimit = 0
	})
	s.RegisterSynthesizer(&fakeSynth{})

	priorities := []int{3, 9, 1, 9, 5}
	for i, p := range priorities {
		mustAccept(t, s, withPriority(chatRequest("u1", fmt.Sprintf("p%d-%d", p, i)), p))
	}

	player := newRecordingPlayer()
	player.hold = func(ctx context.Context, item datastructures.QueueItem) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}
	if !s.StartProcessing(player) {
		t.Fatal("expected loop to start")
	}

	var got []string
	for range priorities {
		got = append(got, waitFor(t, player.finished).Text)
	}
	waitClosed(t, s.StopProcessing())
	s.tasks.Wait()

	want := []string{"p9-1", "p9-3", "p5-4", "p3-0", "p1-2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if max := atomic.LoadInt32(&player.maxActive); max != 1 {
		t.Fatalf("expected a single playback at a time, saw %d", max)
	}
	if played := s.Stats().Played; played != 5 {
		t.Fatalf("expected 5 played, got %d", played)
	}
}

func TestLoopWakesOnEnqueue(t *testing.T) {
	s, _ := newTestScheduler(t, func(cfg *Config) {
		cfg.PollInterval = time.Hour
	})

	player := newRecordingPlayer()
	s.StartProcessing(player)
	defer s.StopProcessing()

	// let the loop go idle first
	time.Sleep(10 * time.Millisecond)
	mustAccept(t, s, chatRequest("u1", "wake up"))

	if got := waitFor(t, player.finished).Text; got != "wake up" {
		t.Fatalf("unexpected item %q", got)
	}
}

func TestStartTwiceIsNoop(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	player := newRecordingPlayer()
	if !s.StartProcessing(player) {
		t.Fatal("expected first start to succeed")
	}
	if s.StartProcessing(player) {
		t.Fatal("expected second start to be a no-op")
	}
	if !s.Processing() {
		t.Fatal("expected processing flag")
	}
	waitClosed(t, s.StopProcessing())
	if s.Processing() {
		t.Fatal("expected processing to stop")
	}
	// stopping twice is harmless
	waitClosed(t, s.StopProcessing())
}

func TestRestartWaitsForPreviousPlayback(t *testing.T) {
	s, _ := newTestScheduler(t, func(cfg *Config) {
		cfg.RateLimit = 0
	})

	release := make(chan struct{})
	player := newRecordingPlayer()
	player.hold = func(ctx context.Context, item datastructures.QueueItem) error {
		if item.Text == "first" {
			<-release
		}
		return nil
	}

	mustAccept(t, s, chatRequest("u1", "first"))
	mustAccept(t, s, chatRequest("u1", "second"))

	s.StartProcessing(player)
	waitFor(t, player.started)
	s.StopProcessing()
	s.StartProcessing(player)

	select {
	case item := <-player.started:
		t.Fatalf("second playback %q started while the first was in flight", item.Text)
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if got := waitFor(t, player.started).Text; got != "second" {
		t.Fatalf("unexpected item %q", got)
	}
	waitClosed(t, s.StopProcessing())

	if max := atomic.LoadInt32(&player.maxActive); max != 1 {
		t.Fatalf("expected a single playback at a time, saw %d", max)
	}
}

func TestSkipCurrent(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	player := newRecordingPlayer()
	player.hold = func(ctx context.Context, item datastructures.QueueItem) error {
		<-ctx.Done()
		return ctx.Err()
	}

	if s.SkipCurrent() {
		t.Fatal("nothing to skip yet")
	}

	res := mustAccept(t, s, chatRequest("u1", "long message"))
	s.StartProcessing(player)
	defer s.StopProcessing()

	waitFor(t, player.started)
	if info := s.Info(); info.Current == nil || info.Current.ID != res.ID {
		t.Fatalf("expected current item, got %+v", info.Current)
	}

	if !s.SkipCurrent() {
		t.Fatal("expected skip to succeed")
	}
	if s.Info().Current != nil {
		t.Fatal("expected current to be cleared")
	}

	waitFor(t, player.finished)
	time.Sleep(10 * time.Millisecond)
	stats := s.Stats()
	if stats.Played != 1 || stats.PlayErrors != 0 {
		t.Fatalf("a skipped item is not a playback error: %+v", stats)
	}
}

func TestPlaybackErrorsDoNotStopTheLoop(t *testing.T) {
	s, _ := newTestScheduler(t, func(cfg *Config) {
		cfg.RateLimit = 0
	})

	player := newRecordingPlayer()
	player.hold = func(ctx context.Context, item datastructures.QueueItem) error {
		switch item.Text {
		case "fails":
			return errors.New("overlay offline")
		case "panics":
			panic("player bug")
		}
		return nil
	}

	mustAccept(t, s, chatRequest("u1", "fails"))
	mustAccept(t, s, chatRequest("u1", "ok"))

	s.StartProcessing(player)
	defer s.StopProcessing()

	waitFor(t, player.finished)
	waitFor(t, player.finished)

	mustAccept(t, s, chatRequest("u1", "panics"))
	mustAccept(t, s, chatRequest("u1", "after panic"))
	if got := waitFor(t, player.finished).Text; got != "after panic" {
		t.Fatalf("expected loop to survive the panic, got %q", got)
	}

	time.Sleep(10 * time.Millisecond)
	stats := s.Stats()
	if stats.PlayErrors != 2 || stats.Played != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPlayerReceivesPreGeneratedAudio(t *testing.T) {
	s, _ := newTestScheduler(t, nil)
	s.RegisterSynthesizer(&fakeSynth{})

	release := make(chan struct{})
	player := newRecordingPlayer()
	player.hold = func(ctx context.Context, item datastructures.QueueItem) error {
		if item.Text == "first" {
			<-release
		}
		return nil
	}

	mustAccept(t, s, chatRequest("u1", "first"))
	mustAccept(t, s, chatRequest("u2", "second"))

	s.StartProcessing(player)
	defer s.StopProcessing()

	waitFor(t, player.started)
	s.tasks.Wait()
	close(release)

	waitFor(t, player.finished)
	second := waitFor(t, player.finished)
	if string(second.AudioData) != "audio:second" || !second.PreGenerated {
		t.Fatalf("expected pre-generated audio, got %+v", second)
	}

	stats := s.Stats()
	if stats.PreGenHits != 1 || stats.PreGenMisses != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestResetStats(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	mustAccept(t, s, chatRequest("u1", "a"))
	s.Enqueue(chatRequest("u1", "a"))
	dequeue(t, s)

	if stats := s.Stats(); stats.Admitted != 1 || stats.DroppedDuplicate != 1 || stats.Played != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	s.ResetStats()
	if stats := s.Stats(); stats != (datastructures.Stats{}) {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}

func TestInfoLimitsNext(t *testing.T) {
	s, _ := newTestScheduler(t, func(cfg *Config) {
		cfg.InfoLimit = 2
		cfg.RateLimit = 0
	})

	for i := 0; i < 4; i++ {
		mustAccept(t, s, chatRequest("u1", fmt.Sprintf("m%d", i)))
	}

	info := s.Info()
	if info.Size != 4 || len(info.Next) != 2 || info.Processing {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Next[0].Text != "m0" || info.Next[1].Text != "m1" {
		t.Fatalf("unexpected order %+v", info.Next)
	}
}

func TestStaleLoopChecksOutNothing(t *testing.T) {
	s, _ := newTestScheduler(t, nil)
	mustAccept(t, s, chatRequest("u1", "hello"))

	if _, _, _, ok := s.next(make(chan struct{})); ok {
		t.Fatal("checked out an item while processing is stopped")
	}

	s.mtx.Lock()
	s.processing = true
	s.stop = make(chan struct{})
	s.mtx.Unlock()

	if _, _, _, ok := s.next(make(chan struct{})); ok {
		t.Fatal("checked out an item for a loop that was replaced")
	}

	s.mtx.Lock()
	current := s.current
	s.processing = false
	s.stop = nil
	s.mtx.Unlock()

	if current != nil {
		t.Fatalf("stale loop set the current item %+v", current)
	}
	if s.Size() != 1 {
		t.Fatalf("expected the item to stay queued, size %d", s.Size())
	}
}
