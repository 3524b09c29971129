package instance

import (
	"context"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
)

// Synthesizer turns text into WAV bytes. Implementations own their own timeout and retry policy.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, engine string, options map[string]string) ([]byte, error)
}

// SynthesizerFunc adapts a plain function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text, voice, engine string, options map[string]string) ([]byte, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, text, voice, engine string, options map[string]string) ([]byte, error) {
	return f(ctx, text, voice, engine, options)
}

// Player performs playback of one item, synthesizing on the spot when AudioData is empty.
// Play returns once playback finished, failed or ctx was cancelled.
type Player interface {
	Play(ctx context.Context, item datastructures.QueueItem) error
}

type PlayerFunc func(ctx context.Context, item datastructures.QueueItem) error

func (f PlayerFunc) Play(ctx context.Context, item datastructures.QueueItem) error {
	return f(ctx, item)
}
