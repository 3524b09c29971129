package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	"github.com/admiralbulldogtv/yapperqueue/src/textparser"
)

const framesPerChar = 80

func frames(d time.Duration) int {
	return int(int64(testRate) * int64(d) / int64(time.Second))
}

func newTestSynth(t *testing.T, r *fakeRedis) (*ttsInstance, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	voices := &fakeVoices{voices: []datastructures.AudioConfig{
		{Speaker: "ann1", Pace: 1, TacoPath: strPtr("/models/ann1.pt"), OnnxPath: strPtr("/models/ann1.onnx")},
		{Speaker: "fast1", FastPath: strPtr("/models/fast1.pt"), CmuDictPath: strPtr("/cmu.txt")},
	}}
	synth, err := NewInstance(ctx, r, voices, Options{SetKey: "tts:tasks", OutputEvent: "tts:output", SegmentLimit: 40})
	if err != nil {
		cancel()
		t.Fatalf("new instance: %v", err)
	}
	return synth.(*ttsInstance), cancel
}

func TestSynthesizeStitchesSegments(t *testing.T) {
	r := newFakeRedis()
	r.onSAdd = worker(t, r, framesPerChar)
	synth, cancel := newTestSynth(t, r)
	defer cancel()

	text := "Hello there, chat. Thanks for the gift, you are awesome!"
	data, err := synth.Synthesize(context.Background(), text, "ann1", EnginePrecise, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	segments, _ := textparser.Process(text, 40)
	if got, want := len(r.jobs("tts:tasks")), len(segments.Unique()); got != want {
		t.Fatalf("expected %d jobs, got %d", want, got)
	}

	want := 2 * frames(Padding)
	for _, s := range segments {
		want += len(s.Value)*framesPerChar + frames(pause(s.Space))
	}

	d, err := Duration(data)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if expected := time.Duration(int64(want) * int64(time.Second) / testRate); d != expected {
		t.Fatalf("expected duration %v, got %v", expected, d)
	}
}

func TestSynthesizeRepeatedSegmentsShareAJob(t *testing.T) {
	r := newFakeRedis()
	r.onSAdd = worker(t, r, framesPerChar)
	synth, cancel := newTestSynth(t, r)
	defer cancel()

	text := "again, again, again, again"
	if _, err := synth.Synthesize(context.Background(), text, "ann1", EnginePrecise, nil); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if n := len(r.jobs("tts:tasks")); n != 1 {
		t.Fatalf("expected a single job, got %d", n)
	}
}

func TestSynthesizeUnknownVoice(t *testing.T) {
	r := newFakeRedis()
	synth, cancel := newTestSynth(t, r)
	defer cancel()

	_, err := synth.Synthesize(context.Background(), "hi", "nobody", EnginePrecise, nil)
	if !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("expected ErrUnknownVoice, got %v", err)
	}
	if calls := synth.voices.(*fakeVoices).calls; calls != 2 {
		t.Fatalf("expected the catalogue to be reloaded once, got %d fetches", calls)
	}
}

func TestSynthesizeWorkerTimeout(t *testing.T) {
	r := newFakeRedis()
	synth, cancel := newTestSynth(t, r)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer done()
	if _, err := synth.Synthesize(ctx, "nobody answers", "ann1", EnginePrecise, nil); err != ErrWorkerTimeout {
		t.Fatalf("expected ErrWorkerTimeout, got %v", err)
	}

	synth.mtx.Lock()
	pending := len(synth.cb)
	synth.mtx.Unlock()
	if pending != 0 {
		t.Fatalf("expected callbacks to be cleaned up, %d left", pending)
	}
}

func TestSynthesizeCancelled(t *testing.T) {
	r := newFakeRedis()
	synth, cancel := newTestSynth(t, r)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stop()
	if _, err := synth.Synthesize(ctx, "too late", "ann1", EnginePrecise, nil); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestSynthesizeNothingToSay(t *testing.T) {
	r := newFakeRedis()
	synth, cancel := newTestSynth(t, r)
	defer cancel()

	if _, err := synth.Synthesize(context.Background(), " <> ", "ann1", EnginePrecise, nil); err != textparser.ErrNothingToSay {
		t.Fatalf("expected ErrNothingToSay, got %v", err)
	}
}

func TestPayload(t *testing.T) {
	ann := datastructures.AudioConfig{Speaker: "ann1", Pace: 1, TacoPath: strPtr("/taco"), FastPath: strPtr("/fast"), CmuDictPath: strPtr("/cmu")}
	precise := datastructures.AudioConfig{Speaker: "slow", Pace: 1, TacoPath: strPtr("/taco")}

	tests := []struct {
		name    string
		voice   datastructures.AudioConfig
		engine  string
		options map[string]string
		mode    int32
		pace    float64
		pitch   int32
	}{
		{"precise", ann, EnginePrecise, nil, datastructures.AudioConfigModePrecise, 1, 0},
		{"fast", ann, EngineFast, nil, datastructures.AudioConfigModeFast, 1, 0},
		{"fast without model", precise, EngineFast, nil, datastructures.AudioConfigModePrecise, 1, 0},
		{"options", ann, EnginePrecise, map[string]string{"pace": "1.5", "pitch_shift": "-2"}, datastructures.AudioConfigModePrecise, 1.5, -2},
		{"bad options", ann, EnginePrecise, map[string]string{"pace": "fast", "pitch_shift": "up"}, datastructures.AudioConfigModePrecise, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, mode := payload(tt.voice, tt.engine, tt.options, "text")
			if mode != tt.mode || p.Pace != tt.pace || p.PitchShift != tt.pitch {
				t.Fatalf("unexpected payload %+v mode %d", p, mode)
			}
			if mode == datastructures.AudioConfigModeFast && (p.FastPath == "" || p.TacoPath != "") {
				t.Fatalf("fast payload should only carry the fast model: %+v", p)
			}
			if mode == datastructures.AudioConfigModePrecise && p.TacoPath == "" {
				t.Fatalf("precise payload should carry the taco model: %+v", p)
			}
		})
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	if _, err := Duration([]byte("not a wav")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestStitchMissingSegment(t *testing.T) {
	segments, _ := textparser.Process("one. two.", 40)
	if _, err := stitch(segments, nil, testFormat); err != ErrNoAudio {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}
