package datastructures

import "time"

const (
	SourceChat   = "chat"
	SourceGift   = "gift"
	SourceManual = "manual"
)

// Request is what ingestion hands to the scheduler. Priority is computed on admission when nil.
type Request struct {
	RequesterID string            `json:"requester_id"`
	DisplayName string            `json:"display_name"`
	Text        string            `json:"text"`
	Voice       string            `json:"voice"`
	Engine      string            `json:"engine"`
	Options     map[string]string `json:"options,omitempty"`

	Priority         *int   `json:"priority,omitempty"`
	Source           string `json:"source"`
	TeamLevel        int    `json:"team_level"`
	IsSubscriber     bool   `json:"is_subscriber"`
	SkipDedup        bool   `json:"skip_dedup"`
	HasAssignedVoice bool   `json:"has_assigned_voice"`

	AudioData   []byte `json:"-"`
	IsStreaming bool   `json:"is_streaming"`
}

// QueueItem is a single admitted speech request.
// ID, RequesterID, Text, Voice and Engine never change after admission.
type QueueItem struct {
	ID          string            `json:"id"`
	EnqueuedAt  time.Time         `json:"enqueued_at"`
	RequesterID string            `json:"requester_id"`
	DisplayName string            `json:"display_name"`
	Text        string            `json:"text"`
	Voice       string            `json:"voice"`
	Engine      string            `json:"engine"`
	Options     map[string]string `json:"options,omitempty"`

	Priority         int    `json:"priority"`
	Source           string `json:"source"`
	TeamLevel        int    `json:"team_level"`
	IsSubscriber     bool   `json:"is_subscriber"`
	SkipDedup        bool   `json:"skip_dedup"`
	HasAssignedVoice bool   `json:"has_assigned_voice"`

	AudioData    []byte `json:"-"`
	PreGenerated bool   `json:"pre_generated"`
	IsStreaming  bool   `json:"is_streaming"`
}

func (i QueueItem) HasAudio() bool {
	return len(i.AudioData) != 0
}

type RejectReason string

const (
	RejectDuplicate RejectReason = "duplicate_content"
	RejectRateLimit RejectReason = "rate_limit"
	RejectQueueFull RejectReason = "queue_full"
	RejectError     RejectReason = "error"
)

type AdmissionResult struct {
	Accepted      bool          `json:"accepted"`
	ID            string        `json:"id,omitempty"`
	Position      int           `json:"position,omitempty"`
	EstimatedWait time.Duration `json:"-"`

	Reason     RejectReason  `json:"reason,omitempty"`
	Detail     string        `json:"detail,omitempty"`
	RetryAfter time.Duration `json:"-"`
}

// EstimatedWaitMs and RetryAfterMs are what the HTTP api reports.
func (r AdmissionResult) EstimatedWaitMs() int64 {
	return r.EstimatedWait.Milliseconds()
}

func (r AdmissionResult) RetryAfterMs() int64 {
	return r.RetryAfter.Milliseconds()
}

type Stats struct {
	Admitted         int64 `json:"admitted"`
	Played           int64 `json:"played"`
	PlayErrors       int64 `json:"play_errors"`
	DroppedCapacity  int64 `json:"dropped_capacity"`
	DroppedRateLimit int64 `json:"dropped_rate_limit"`
	DroppedDuplicate int64 `json:"dropped_duplicate"`
	DroppedError     int64 `json:"dropped_error"`
	PreGenHits       int64 `json:"pregen_hits"`
	PreGenMisses     int64 `json:"pregen_misses"`
	PreGenErrors     int64 `json:"pregen_errors"`
	PreGenCompleted  int64 `json:"pregen_completed"`
	PreGenDiscarded  int64 `json:"pregen_discarded"`

	PreGenHitRate float64 `json:"pregen_hit_rate"`
}

type ItemSummary struct {
	ID               string    `json:"id"`
	RequesterID      string    `json:"requester_id"`
	DisplayName      string    `json:"display_name"`
	Text             string    `json:"text"`
	Voice            string    `json:"voice"`
	Source           string    `json:"source"`
	Priority         int       `json:"priority"`
	EnqueuedAt       time.Time `json:"enqueued_at"`
	AudioReady       bool      `json:"audio_ready"`
	PreGenInProgress bool      `json:"pregen_in_progress"`
}

type QueueInfo struct {
	Size       int           `json:"size"`
	Processing bool          `json:"processing"`
	Current    *ItemSummary  `json:"current"`
	Next       []ItemSummary `json:"next"`
}
