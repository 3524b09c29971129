package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
)

// StartProcessing starts the single playback loop. It reports false when the loop is already running.
func (s *Scheduler) StartProcessing(player instance.Player) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.processing {
		s.log.Warn("processing already started")
		return false
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	prev := s.loopDone

	s.processing = true
	s.stop = stop
	s.loopDone = done

	go func() {
		// a stopped loop may still be waiting on its last playback
		if prev != nil {
			<-prev
		}
		s.run(player, stop, done)
	}()

	s.log.Info("processing started")
	return true
}

// StopProcessing stops the loop once the in-flight playback returns. The returned channel closes when the loop exited.
func (s *Scheduler) StopProcessing() <-chan struct{} {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.processing {
		if s.loopDone != nil {
			return s.loopDone
		}
		done := make(chan struct{})
		close(done)
		return done
	}

	close(s.stop)
	s.processing = false
	s.current = nil
	s.currentCancel = nil
	s.cancelAllPreGenLocked()

	s.log.Info("processing stopped")
	return s.loopDone
}

func (s *Scheduler) Processing() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.processing
}

// SkipCurrent stops tracking the item being played and cancels its playback context.
func (s *Scheduler) SkipCurrent() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.current == nil {
		return false
	}

	s.log.WithField("id", s.current.ID).Info("skipping current item")
	if s.currentCancel != nil {
		s.currentCancel()
	}
	s.current = nil
	s.currentCancel = nil
	return true
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(player instance.Player, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		item, ctx, cancel, ok := s.next(stop)
		if !ok {
			select {
			case <-stop:
				return
			case <-s.wake:
			case <-time.After(s.cfg.PollInterval):
			}
			continue
		}

		err := play(ctx, player, item)
		cancel()
		s.finish(item, err)

		select {
		case <-stop:
			return
		case <-time.After(s.cfg.CycleDelay):
		}
	}
}

// next checks out the head item and kicks off pre-generation for what follows it.
// Nothing is checked out once the loop owning stop has been stopped.
func (s *Scheduler) next(stop <-chan struct{}) (datastructures.QueueItem, context.Context, context.CancelFunc, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.processing || s.stop != stop {
		return datastructures.QueueItem{}, nil, nil, false
	}

	e := s.queue.removeHead()
	if e == nil {
		return datastructures.QueueItem{}, nil, nil, false
	}
	item := *e.item
	item.Options = copyOptions(e.item.Options)

	s.cancelPreGenLocked(item.ID)
	if !item.IsStreaming && item.HasAudio() {
		s.stats.PreGenHits++
	} else {
		s.stats.PreGenMisses++
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.current = &item
	s.currentCancel = cancel

	s.triggerPreGenerationLocked()

	s.log.WithField("id", item.ID).WithField("requester", item.RequesterID).WithField("pre_generated", item.PreGenerated).Info("playing item")
	return item, ctx, cancel, true
}

func (s *Scheduler) finish(item datastructures.QueueItem, err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.current != nil && s.current.ID == item.ID {
		s.current = nil
		s.currentCancel = nil
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.stats.PlayErrors++
		s.log.WithError(err).WithField("id", item.ID).Error("playback failed")
		return
	}
	s.stats.Played++
}

func play(ctx context.Context, player instance.Player, item datastructures.QueueItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("player panic: %v", r)
		}
	}()
	return player.Play(ctx, item)
}
