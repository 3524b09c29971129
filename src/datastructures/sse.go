package datastructures

type SseEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

const (
	SseEventNameTts    = "tts"
	SseEventNameSkip   = "skip"
	SseEventNameReload = "reload"
)

type SseEventTts struct {
	WavID       string  `json:"wav_id"`
	DisplayName string  `json:"display_name"`
	Text        string  `json:"text"`
	Voice       string  `json:"voice"`
	Source      string  `json:"source"`
	Duration    float64 `json:"duration"`
}

type SseEventSkip struct {
	WavID string `json:"wav_id"`
}
