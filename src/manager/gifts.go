package manager

import (
	"html"
	"strings"

	"github.com/admiralbulldogtv/yapperqueue/src/configure"
	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	"github.com/admiralbulldogtv/yapperqueue/src/streamelements"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type voiceTier struct {
	min   int
	voice string
}

// subscriber months unlock voices in order, the highest reached tier wins.
var subTiers = []voiceTier{
	{1, "bull"},
	{6, "obama"},
	{10, "arno"},
	{13, "lac"},
	{21, "krab"},
	{22, "glad"},
	{30, "bull"},
	{41, "rae"},
	{56, "pooh"},
}

// cheers are counted in hundreds of bits, tips in whole currency units.
var paidTiers = []voiceTier{
	{0, "bull"},
	{6, "lac"},
	{10, "rae"},
}

func tierVoice(tiers []voiceTier, amount int, fallback string) string {
	voice := fallback
	for _, t := range tiers {
		if amount >= t.min {
			voice = t.voice
		}
	}
	return voice
}

// GiftRequest turns a StreamElements listener event into a gift request.
// ok is false when the event is not a gift or carries no message.
func GiftRequest(cfg *configure.Config, listener string, payload jsoniter.RawMessage) (req datastructures.Request, ok bool, err error) {
	var (
		name    string
		display string
		message string
		level   int
		voice   string
	)

	switch listener {
	case streamelements.EventListenerCheer:
		data := streamelements.Cheer{}
		if err := json.Unmarshal(payload, &data); err != nil {
			return req, false, err
		}
		name, display, message = data.Name, data.DisplayName, data.Message
		level = data.Amount / 100
		voice = tierVoice(paidTiers, level, cfg.Tts.DefaultVoice)
	case streamelements.EventListenerDonation:
		data := streamelements.Donation{}
		if err := json.Unmarshal(payload, &data); err != nil {
			return req, false, err
		}
		name, message = data.Name, data.Message
		level = int(data.Amount)
		voice = tierVoice(paidTiers, level, cfg.Tts.DefaultVoice)
	case streamelements.EventListenerSubscription:
		data := streamelements.Subscription{}
		if err := json.Unmarshal(payload, &data); err != nil {
			return req, false, err
		}
		name, display, message = data.Name, data.DisplayName, data.Message
		level = data.Amount
		voice = tierVoice(subTiers, level, cfg.Tts.DefaultVoice)
	default:
		return req, false, nil
	}

	message = strings.TrimSpace(html.UnescapeString(message))
	if message == "" || name == "" {
		return req, false, nil
	}
	if display == "" {
		display = name
	}
	if cfg.Tts.MaxTextLength > 0 {
		if r := []rune(message); len(r) > cfg.Tts.MaxTextLength {
			message = string(r[:cfg.Tts.MaxTextLength])
		}
	}

	return datastructures.Request{
		RequesterID:      "se:" + strings.ToLower(name),
		DisplayName:      display,
		Text:             message,
		Voice:            voice,
		Engine:           cfg.Tts.DefaultEngine,
		Source:           datastructures.SourceGift,
		TeamLevel:        level,
		IsSubscriber:     listener == streamelements.EventListenerSubscription,
		HasAssignedVoice: voice != cfg.Tts.DefaultVoice,
	}, true, nil
}
