package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func EventsKey(channelID primitive.ObjectID) string {
	return fmt.Sprintf("overlay:events:%s", channelID.Hex())
}

// DoneKey carries the ids of clips the overlay finished playing.
func DoneKey(channelID primitive.ObjectID) string {
	return fmt.Sprintf("overlay:done:%s", channelID.Hex())
}

func WavKey(id string) string {
	return fmt.Sprintf("generated:tts:%s", id)
}

type History interface {
	InsertAudio(ctx context.Context, audio datastructures.Audio) error
}

type PlayerOptions struct {
	ChannelID     primitive.ObjectID
	WavExpiry     time.Duration
	PlaybackGrace time.Duration
	SynthTimeout  time.Duration
}

type overlayPlayer struct {
	redis   instance.Redis
	synth   instance.Synthesizer
	history History
	opts    PlayerOptions
	log     *logrus.Entry
}

// NewPlayer plays items on the browser overlay of one channel.
// history may be nil.
func NewPlayer(redis instance.Redis, synth instance.Synthesizer, history History, opts PlayerOptions) instance.Player {
	if opts.WavExpiry <= 0 {
		opts.WavExpiry = 10 * time.Minute
	}
	return &overlayPlayer{
		redis:   redis,
		synth:   synth,
		history: history,
		opts:    opts,
		log:     logrus.WithField("component", "player").WithField("channel_id", opts.ChannelID.Hex()),
	}
}

func (p *overlayPlayer) generate(ctx context.Context, item datastructures.QueueItem) ([]byte, error) {
	if p.synth == nil {
		return nil, ErrNoAudio
	}
	if p.opts.SynthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.SynthTimeout)
		defer cancel()
	}
	data, err := p.synth.Synthesize(ctx, item.Text, item.Voice, item.Engine, item.Options)
	if err == nil && len(data) == 0 {
		err = ErrNoAudio
	}
	return data, err
}

func (p *overlayPlayer) publish(ctx context.Context, event datastructures.SseEvent) error {
	msg, err := json.MarshalToString(event)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, EventsKey(p.opts.ChannelID), msg)
}

// Play hands the clip to the overlay and blocks until the overlay acks it, the clip
// should have finished, or ctx is cancelled. A cancelled clip is skipped on the overlay.
func (p *overlayPlayer) Play(ctx context.Context, item datastructures.QueueItem) error {
	data := item.AudioData
	if len(data) == 0 {
		var err error
		if data, err = p.generate(ctx, item); err != nil {
			return err
		}
	}

	duration, err := Duration(data)
	if err != nil {
		return err
	}

	if err := p.redis.Set(ctx, WavKey(item.ID), string(data), p.opts.WavExpiry); err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	doneCh := make(chan string)
	p.redis.Subscribe(subCtx, doneCh, DoneKey(p.opts.ChannelID))

	if err := p.publish(ctx, datastructures.SseEvent{
		Event: datastructures.SseEventNameTts,
		Payload: datastructures.SseEventTts{
			WavID:       item.ID,
			DisplayName: item.DisplayName,
			Text:        item.Text,
			Voice:       item.Voice,
			Source:      item.Source,
			Duration:    duration.Seconds(),
		},
	}); err != nil {
		return err
	}

	startedAt := time.Now()
	timer := time.NewTimer(duration + p.opts.PlaybackGrace)
	defer timer.Stop()

	skipped := false
wait:
	for {
		select {
		case id := <-doneCh:
			if id == item.ID {
				break wait
			}
		case <-timer.C:
			break wait
		case <-ctx.Done():
			skipped = true
			break wait
		}
	}

	bg, bgCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer bgCancel()

	if skipped {
		if err := p.publish(bg, datastructures.SseEvent{
			Event:   datastructures.SseEventNameSkip,
			Payload: datastructures.SseEventSkip{WavID: item.ID},
		}); err != nil {
			p.log.WithError(err).Error("failed to publish skip")
		}
	}

	p.record(bg, item, duration, startedAt, skipped)

	if skipped {
		return ctx.Err()
	}
	return nil
}

func (p *overlayPlayer) record(ctx context.Context, item datastructures.QueueItem, duration time.Duration, playedAt time.Time, skipped bool) {
	if p.history == nil {
		return
	}

	id, err := primitive.ObjectIDFromHex(item.ID)
	if err != nil {
		id = primitive.NewObjectID()
	}

	if err := p.history.InsertAudio(ctx, datastructures.Audio{
		ID:        id,
		ChannelID: p.opts.ChannelID,
		Duration:  duration,
		Segments: []datastructures.AudioSegment{{
			Voice:    item.Voice,
			Text:     item.Text,
			Duration: duration,
		}},
		Trigger: datastructures.AudioTrigger{
			Source:      datastructures.TriggerSource(item.Source),
			RequesterID: item.RequesterID,
			Username:    item.DisplayName,
			Priority:    item.Priority,
			PreGen:      item.PreGenerated,
		},
		PlayedAt: playedAt,
		Skipped:  skipped,
	}); err != nil {
		p.log.WithError(err).WithField("id", item.ID).Error("failed to record playback")
	}
}
