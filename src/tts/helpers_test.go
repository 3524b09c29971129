package tts

import (
	"context"
	"encoding/base64"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const testRate = 8000

var testFormat = wavFormat{SampleRate: testRate, BitDepth: 16, NumChannels: 1, AudioFormat: 1}

func makeWav(t *testing.T, frames int) []byte {
	t.Helper()
	buf := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(buf, testRate, 16, 1, 1)
	data := make([]int, frames)
	for i := range data {
		data[i] = 1000
	}
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := ioutil.ReadAll(buf.Reader())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}

type published struct {
	channel string
	data    string
}

type subscriber struct {
	ctx context.Context
	ch  chan string
}

// fakeRedis keeps everything in memory. onSAdd, when set, acts as the worker pool.
type fakeRedis struct {
	mtx       sync.Mutex
	subs      map[string][]subscriber
	values    map[string]string
	sets      map[string][]string
	published chan published
	onSAdd    func(value string)
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		subs:      map[string][]subscriber{},
		values:    map[string]string{},
		sets:      map[string][]string{},
		published: make(chan published, 100),
	}
}

func (r *fakeRedis) Ping(ctx context.Context) error { return nil }

func (r *fakeRedis) Subscribe(ctx context.Context, ch chan string, subscribeTo ...string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, s := range subscribeTo {
		r.subs[s] = append(r.subs[s], subscriber{ctx: ctx, ch: ch})
	}
}

func (r *fakeRedis) Publish(ctx context.Context, channel string, data string) error {
	r.mtx.Lock()
	subs := append([]subscriber(nil), r.subs[channel]...)
	r.mtx.Unlock()

	for _, s := range subs {
		go func(s subscriber) {
			select {
			case s.ch <- data:
			case <-s.ctx.Done():
			}
		}(s)
	}
	r.published <- published{channel: channel, data: data}
	return nil
}

func (r *fakeRedis) SAdd(ctx context.Context, set string, values ...interface{}) error {
	r.mtx.Lock()
	for _, v := range values {
		r.sets[set] = append(r.sets[set], v.(string))
	}
	hook := r.onSAdd
	r.mtx.Unlock()
	if hook != nil {
		for _, v := range values {
			go hook(v.(string))
		}
	}
	return nil
}

func (r *fakeRedis) Set(ctx context.Context, key string, value string, expiry time.Duration) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.values[key] = value
	return nil
}

func (r *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.values[key], nil
}

func (r *fakeRedis) Del(ctx context.Context, keys ...string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}

func (r *fakeRedis) Close() error { return nil }

func (r *fakeRedis) jobs(set string) []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]string(nil), r.sets[set]...)
}

// worker answers every job with a clip of framesPerChar frames per character.
func worker(t *testing.T, r *fakeRedis, framesPerChar int) func(string) {
	return func(value string) {
		req := struct {
			Jid           string `json:"jid"`
			ResponseEvent string `json:"response_event"`
			Payload       struct {
				Text string `json:"text"`
			} `json:"payload"`
		}{}
		if err := json.UnmarshalFromString(value, &req); err != nil {
			t.Errorf("bad job: %v", err)
			return
		}
		resp, _ := json.MarshalToString(Response{
			Event: EventGenerate,
			Jid:   req.Jid,
			Payload: GenerateChangeResponse{
				Data: base64.StdEncoding.EncodeToString(makeWav(t, len(req.Payload.Text)*framesPerChar)),
			},
		})
		_ = r.Publish(context.Background(), req.ResponseEvent, resp)
	}
}

type fakeVoices struct {
	voices []datastructures.AudioConfig
	calls  int
}

func (v *fakeVoices) FetchVoices(ctx context.Context) ([]datastructures.AudioConfig, error) {
	v.calls++
	return v.voices, nil
}

func strPtr(s string) *string { return &s }

type fakeHistory struct {
	mtx    sync.Mutex
	audios []datastructures.Audio
}

func (h *fakeHistory) InsertAudio(ctx context.Context, audio datastructures.Audio) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.audios = append(h.audios, audio)
	return nil
}

func (h *fakeHistory) all() []datastructures.Audio {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return append([]datastructures.Audio(nil), h.audios...)
}

func nextPublished(t *testing.T, r *fakeRedis, channel string) published {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case p := <-r.published:
			if p.channel == channel {
				return p
			}
		case <-timeout:
			t.Fatalf("nothing published on %s", channel)
		}
	}
}
