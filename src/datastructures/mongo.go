package datastructures

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Overlay struct {
	ID        primitive.ObjectID `bson:"_id"`
	ChannelID primitive.ObjectID `bson:"channel_id"`
}

// Audio is the playback history record written once an item finishes.
type Audio struct {
	ID        primitive.ObjectID `bson:"_id"`
	ChannelID primitive.ObjectID `bson:"channel_id"`
	Duration  time.Duration      `bson:"duration"`
	Segments  []AudioSegment     `bson:"segments"`
	Trigger   AudioTrigger       `bson:"trigger"`
	PlayedAt  time.Time          `bson:"played_at"`
	Skipped   bool               `bson:"skipped"`
}

type AudioSegment struct {
	Voice     string        `bson:"voice"`
	Text      string        `bson:"text"`
	StartTime time.Duration `bson:"start_time"`
	Duration  time.Duration `bson:"duration"`
}

const (
	AudioTriggerSourceManual = "MANUAL"
	AudioTriggerSourceGift   = "GIFT"
	AudioTriggerSourceChat   = "CHAT"
)

type AudioTrigger struct {
	Source      string `bson:"source"`
	RequesterID string `bson:"requester_id"`
	Username    string `bson:"username"`
	Priority    int    `bson:"priority"`
	PreGen      bool   `bson:"pre_generated"`
}

// TriggerSource maps a queue source tag onto the stored trigger source.
func TriggerSource(source string) string {
	switch source {
	case SourceManual:
		return AudioTriggerSourceManual
	case SourceGift:
		return AudioTriggerSourceGift
	default:
		return AudioTriggerSourceChat
	}
}

// AudioConfig is a voice the synthesis workers know how to speak with.
type AudioConfig struct {
	ID            primitive.ObjectID `bson:"_id"`
	Speaker       string             `bson:"speaker"`
	GPU           bool               `bson:"gpu"`
	WarmUp        bool               `bson:"warm_up"`
	GateThreshold float64            `bson:"gate_threshold"`
	Period        bool               `bson:"period"`
	Start         int32              `bson:"start"`
	Pace          float64            `bson:"pace"`
	PitchShift    int32              `bson:"pitch_shift"`
	PArpabet      float64            `bson:"p_arpabet"`
	TacoPath      *string            `bson:"taco_path"`
	FastPath      *string            `bson:"fast_path"`
	OnnxPath      *string            `bson:"onnx_path"`
	CmuDictPath   *string            `bson:"cmudict_path"`
}

const (
	AudioConfigModePrecise int32 = iota
	AudioConfigModeFast
)

// VoiceAssignment pins a requester to a non default voice.
type VoiceAssignment struct {
	ID          primitive.ObjectID `bson:"_id"`
	RequesterID string             `bson:"requester_id"`
	Voice       string             `bson:"voice"`
	Engine      string             `bson:"engine"`
}
