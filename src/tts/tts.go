package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
	"github.com/admiralbulldogtv/yapperqueue/src/textparser"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNoAudio       = errors.New("worker returned no audio")
	ErrWorkerTimeout = errors.New("timed out waiting for tts workers")
	ErrUnknownVoice  = errors.New("unknown voice")
)

const (
	EngineFast    = "fast"
	EnginePrecise = "precise"
)

const EventGenerate = 4

type Request struct {
	Jid           string      `json:"jid"`
	Event         int         `json:"event"`
	ResponseEvent string      `json:"response_event"`
	Payload       interface{} `json:"payload"`
	Mode          int32       `json:"mode"`
}

type GenerateChangePayload struct {
	Speaker       string  `json:"speaker"`
	GPU           bool    `json:"gpu"`
	WarmUp        bool    `json:"warm_up"`
	GateThreshold float64 `json:"gate_threshold,omitempty"`
	Period        bool    `json:"period"`
	Start         int32   `json:"start"`
	Pace          float64 `json:"pace"`
	PitchShift    int32   `json:"pitch_shift"`
	PArpabet      float64 `json:"p_arpabet"`
	TacoPath      string  `json:"taco_path"`
	FastPath      string  `json:"fast_path"`
	OnnxPath      string  `json:"onnx_path"`
	CmuDictPath   string  `json:"cmudict_path"`

	Text string `json:"text"`
}

type Response struct {
	Event         int                    `json:"event"`
	Jid           string                 `json:"jid"`
	Wid           string                 `json:"wid"`
	Payload       GenerateChangeResponse `json:"payload"`
	ContentLength int                    `json:"content_length"`
	Time          float64                `json:"time"`
}

type GenerateChangeResponse struct {
	Data    string  `json:"data"`
	Length  float64 `json:"length"`
	Speaker string  `json:"speaker"`
}

// VoiceSource lists the voices the workers can speak with.
type VoiceSource interface {
	FetchVoices(ctx context.Context) ([]datastructures.AudioConfig, error)
}

type Options struct {
	SetKey       string
	OutputEvent  string
	SegmentLimit int
}

type ttsInstance struct {
	redis  instance.Redis
	voices VoiceSource
	opts   Options
	log    *logrus.Entry

	mtx     sync.Mutex
	cb      map[string]chan Response
	catalog map[string]datastructures.AudioConfig
}

// NewInstance creates a Synthesizer that fans segments out to the redis worker pool.
// Worker responses are routed until ctx is done.
func NewInstance(ctx context.Context, redis instance.Redis, voices VoiceSource, opts Options) (instance.Synthesizer, error) {
	if opts.SegmentLimit <= 0 {
		opts.SegmentLimit = 250
	}

	inst := &ttsInstance{
		redis:  redis,
		voices: voices,
		opts:   opts,
		log:    logrus.WithField("component", "tts"),
		cb:     make(map[string]chan Response),
	}

	if err := inst.reloadVoices(ctx); err != nil {
		return nil, err
	}

	ch := make(chan string)
	redis.Subscribe(ctx, ch, opts.OutputEvent)
	go inst.process(ctx, ch)

	return inst, nil
}

func (inst *ttsInstance) process(ctx context.Context, ch chan string) {
	var resp Response
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			resp = Response{}
			if err := json.UnmarshalFromString(msg, &resp); err != nil {
				inst.log.WithError(err).Warn("bad worker response")
				continue
			}
			inst.mtx.Lock()
			if v, ok := inst.cb[resp.Jid]; ok {
				// buffered for every job of the request
				v <- resp
				delete(inst.cb, resp.Jid)
			}
			inst.mtx.Unlock()
		}
	}
}

func (inst *ttsInstance) reloadVoices(ctx context.Context) error {
	vcs, err := inst.voices.FetchVoices(ctx)
	if err != nil {
		return err
	}
	catalog := make(map[string]datastructures.AudioConfig, len(vcs))
	for _, v := range vcs {
		catalog[v.Speaker] = v
	}

	inst.mtx.Lock()
	inst.catalog = catalog
	inst.mtx.Unlock()
	return nil
}

func (inst *ttsInstance) voice(ctx context.Context, name string) (datastructures.AudioConfig, error) {
	inst.mtx.Lock()
	v, ok := inst.catalog[name]
	inst.mtx.Unlock()
	if ok {
		return v, nil
	}

	if err := inst.reloadVoices(ctx); err != nil {
		return v, err
	}

	inst.mtx.Lock()
	v, ok = inst.catalog[name]
	inst.mtx.Unlock()
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrUnknownVoice, name)
	}
	return v, nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// payload builds the worker job for one segment. The fast engine is used only when the voice has a fast model.
func payload(voice datastructures.AudioConfig, engine string, options map[string]string, text string) (GenerateChangePayload, int32) {
	p := GenerateChangePayload{
		Speaker:       voice.Speaker,
		GPU:           voice.GPU,
		WarmUp:        voice.WarmUp,
		GateThreshold: voice.GateThreshold,
		Period:        voice.Period,
		Start:         voice.Start,
		Pace:          voice.Pace,
		PitchShift:    voice.PitchShift,
		PArpabet:      voice.PArpabet,
		OnnxPath:      derefStr(voice.OnnxPath),
		Text:          text,
	}

	mode := datastructures.AudioConfigModePrecise
	if engine == EngineFast && voice.FastPath != nil {
		mode = datastructures.AudioConfigModeFast
		p.FastPath = *voice.FastPath
		p.CmuDictPath = derefStr(voice.CmuDictPath)
	} else {
		p.TacoPath = derefStr(voice.TacoPath)
	}

	if v, err := strconv.ParseFloat(options["pace"], 64); err == nil && v > 0 {
		p.Pace = v
	}
	if v, err := strconv.ParseInt(options["pitch_shift"], 10, 32); err == nil {
		p.PitchShift = int32(v)
	}

	return p, mode
}

func (inst *ttsInstance) Synthesize(ctx context.Context, text, voiceName, engine string, options map[string]string) ([]byte, error) {
	segments, err := textparser.Process(text, inst.opts.SegmentLimit)
	if err != nil {
		return nil, err
	}

	voice, err := inst.voice(ctx, voiceName)
	if err != nil {
		return nil, err
	}

	unique := segments.Unique()
	cb := make(chan Response, len(unique))
	jobs := make(map[string]string, len(unique))

	defer func() {
		inst.mtx.Lock()
		for jid := range jobs {
			delete(inst.cb, jid)
		}
		inst.mtx.Unlock()
	}()

	for value := range unique {
		jid, _ := uuid.NewRandom()
		p, mode := payload(voice, engine, options, value)
		req, err := json.MarshalToString(Request{
			Jid:           jid.String(),
			Event:         EventGenerate,
			ResponseEvent: inst.opts.OutputEvent,
			Mode:          mode,
			Payload:       p,
		})
		if err != nil {
			return nil, err
		}

		inst.mtx.Lock()
		inst.cb[jid.String()] = cb
		jobs[jid.String()] = value
		inst.mtx.Unlock()

		if err := inst.redis.SAdd(ctx, inst.opts.SetKey, req); err != nil {
			return nil, err
		}
	}

	wavs := make(map[string]*audio.IntBuffer, len(unique))
	var format *wavFormat
	for len(wavs) < len(unique) {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrWorkerTimeout
			}
			return nil, ctx.Err()
		case resp := <-cb:
			buf, f, err := decode(resp.Payload.Data)
			if err != nil {
				return nil, fmt.Errorf("job %s: %w", resp.Jid, err)
			}
			if format == nil {
				format = f
			}
			wavs[jobs[resp.Jid]] = buf
		}
	}

	return stitch(segments, wavs, *format)
}

type wavFormat struct {
	SampleRate  int
	BitDepth    int
	NumChannels int
	AudioFormat int
}

func decode(data string) (*audio.IntBuffer, *wavFormat, error) {
	if data == "" {
		return nil, nil, ErrNoAudio
	}
	sDec, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, nil, err
	}

	decoder := wav.NewDecoder(bytes.NewReader(sDec))
	if !decoder.IsValidFile() {
		return nil, nil, ErrNoAudio
	}
	aBuf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, nil, err
	}
	if len(aBuf.Data) == 0 {
		return nil, nil, ErrNoAudio
	}

	return aBuf, &wavFormat{
		SampleRate:  aBuf.Format.SampleRate,
		BitDepth:    int(decoder.BitDepth),
		NumChannels: aBuf.Format.NumChannels,
		AudioFormat: int(decoder.WavAudioFormat),
	}, nil
}
