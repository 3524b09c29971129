package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
)

var ErrEmptyAudio = errors.New("synthesizer returned no audio")

type preGenTask struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
}

// RegisterSynthesizer enables speculative synthesis. Without one the player synthesizes on demand.
func (s *Scheduler) RegisterSynthesizer(synth instance.Synthesizer) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.synth = synth
}

func needsAudio(item *datastructures.QueueItem) bool {
	return !item.HasAudio() && !item.IsStreaming
}

// triggerPreGenerationLocked runs the windowed and the custom voice lookahead over the queue.
func (s *Scheduler) triggerPreGenerationLocked() {
	if s.synth == nil || s.queue.Len() == 0 {
		return
	}

	ordered := s.queue.ordered()

	for i := 0; i < len(ordered) && i < s.cfg.Lookahead; i++ {
		item := ordered[i].item
		if _, ok := s.inFlight[item.ID]; ok || !needsAudio(item) {
			continue
		}
		s.launchPreGenLocked(item)
	}

	// custom voices take longer to synthesize, so look past the window for the first one
	for _, e := range ordered {
		item := e.item
		if !item.HasAssignedVoice || !needsAudio(item) {
			continue
		}
		if _, ok := s.inFlight[item.ID]; !ok {
			s.launchPreGenLocked(item)
		}
		break
	}
}

func (s *Scheduler) launchPreGenLocked(item *datastructures.QueueItem) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.cfg.SynthTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.cfg.SynthTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	task := &preGenTask{id: item.ID, ctx: ctx, cancel: cancel}
	s.inFlight[item.ID] = task

	s.tasks.Add(1)
	go s.runPreGen(task, s.synth, item.Text, item.Voice, item.Engine, copyOptions(item.Options))
}

func (s *Scheduler) runPreGen(task *preGenTask, synth instance.Synthesizer, text, voice, engine string, options map[string]string) {
	defer s.tasks.Done()
	defer task.cancel()

	log := s.log.WithField("id", task.id)

	audio, err := synthesize(task.ctx, synth, text, voice, engine, options)
	if err == nil && len(audio) == 0 {
		err = ErrEmptyAudio
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if cur, ok := s.inFlight[task.id]; ok && cur == task {
		delete(s.inFlight, task.id)
	}

	if err != nil {
		if task.ctx.Err() == context.Canceled {
			s.stats.PreGenDiscarded++
			log.Debug("pre-generation cancelled")
			return
		}
		s.stats.PreGenErrors++
		log.WithError(err).Warn("pre-generation failed")
		return
	}

	// the item may have been played, removed or cleared while we were synthesizing
	e, ok := s.queue.lookup(task.id)
	if !ok || e.item.HasAudio() {
		s.stats.PreGenDiscarded++
		log.Debug("discarding stale pre-generated audio")
		return
	}

	e.item.AudioData = audio
	e.item.PreGenerated = true
	s.stats.PreGenCompleted++
	log.Debug("pre-generated audio")
}

func synthesize(ctx context.Context, synth instance.Synthesizer, text, voice, engine string, options map[string]string) (audio []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("synthesizer panic: %v", r)
		}
	}()
	return synth.Synthesize(ctx, text, voice, engine, options)
}

func (s *Scheduler) cancelPreGenLocked(id string) {
	if task, ok := s.inFlight[id]; ok {
		task.cancel()
		delete(s.inFlight, id)
	}
}

func (s *Scheduler) cancelAllPreGenLocked() {
	for id, task := range s.inFlight {
		task.cancel()
		delete(s.inFlight, id)
	}
}
