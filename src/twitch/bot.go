package twitch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/configure"
	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	"github.com/admiralbulldogtv/yapperqueue/src/global"
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
	"github.com/gempir/go-twitch-irc/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

type Client interface {
	SendMessage(channel string, message string) error
}

// VoiceLookup finds the custom voice a chatter has been given, if any.
type VoiceLookup interface {
	FetchVoiceAssignment(ctx context.Context, requesterID string) (datastructures.VoiceAssignment, error)
}

type twitchClient struct {
	cl *twitch.Client
}

func (c *twitchClient) SendMessage(channel string, message string) error {
	c.cl.Say(channel, message)
	return nil
}

type bot struct {
	cfg    *configure.Config
	sched  instance.Scheduler
	voices VoiceLookup
	client Client
	log    *logrus.Entry
}

func NewClient(ctx global.Context) (Client, error) {
	cfg := ctx.Config()
	if cfg.Twitch.StreamerChannel == "" {
		return nil, errors.New("twitch streamer channel is not configured")
	}

	var cl *twitch.Client
	if cfg.Twitch.BotUsername == "" || cfg.Twitch.BotToken == "" {
		cl = twitch.NewAnonymousClient()
	} else {
		cl = twitch.NewClient(cfg.Twitch.BotUsername, fmt.Sprintf("oauth:%s", strings.TrimPrefix(cfg.Twitch.BotToken, "oauth:")))
	}

	client := &twitchClient{cl: cl}
	var voices VoiceLookup
	if ctx.Inst().Mongo != nil {
		voices = ctx.Inst().Mongo
	}
	b := &bot{
		cfg:    cfg,
		sched:  ctx.Inst().Scheduler,
		voices: voices,
		client: client,
		log:    logrus.WithField("component", "twitch"),
	}

	channels := []string{cfg.Twitch.StreamerChannel}
	if cfg.Twitch.ControlChannel != "" && !strings.EqualFold(cfg.Twitch.ControlChannel, cfg.Twitch.StreamerChannel) {
		channels = append(channels, cfg.Twitch.ControlChannel)
	}
	cl.Join(channels...)
	cl.OnPrivateMessage(func(message twitch.PrivateMessage) {
		b.handle(ctx, message)
	})

	go func() {
		<-ctx.Done()
		_ = cl.Disconnect()
	}()

	go func() {
		if err := cl.Connect(); err != nil && err != twitch.ErrClientDisconnected {
			logrus.WithError(err).Fatal("twitch failed")
		}
	}()

	logrus.Infoln("connected and running.")

	return client, nil
}

func (b *bot) whitelisted(userID string) bool {
	for _, v := range b.cfg.Twitch.WhitelistedAccounts {
		if v == userID {
			return true
		}
	}
	return false
}

func (b *bot) handle(ctx context.Context, message twitch.PrivateMessage) {
	msg := strings.TrimSpace(message.Message)
	if strings.EqualFold(message.Channel, b.cfg.Twitch.ControlChannel) && b.whitelisted(message.User.ID) {
		if b.control(message, msg) {
			return
		}
	}

	if !strings.EqualFold(message.Channel, b.cfg.Twitch.StreamerChannel) {
		return
	}

	prefix := b.cfg.Twitch.CommandPrefix
	if prefix == "" || !strings.HasPrefix(strings.ToLower(msg), strings.ToLower(prefix)) {
		return
	}

	req := b.chatRequest(ctx, message, msg[len(prefix):])
	res := b.sched.Enqueue(req)
	if res.Accepted {
		return
	}

	var reply string
	switch res.Reason {
	case datastructures.RejectDuplicate:
		reply = fmt.Sprintf("@%s, you already sent that", message.User.DisplayName)
	case datastructures.RejectRateLimit:
		reply = fmt.Sprintf("@%s, slow down, try again in %ds", message.User.DisplayName, int(res.RetryAfter.Round(time.Second)/time.Second))
	case datastructures.RejectQueueFull:
		reply = fmt.Sprintf("@%s, the tts queue is full", message.User.DisplayName)
	default:
		b.log.WithField("detail", res.Detail).Warn("chat request rejected")
		return
	}
	if err := b.client.SendMessage(message.Channel, reply); err != nil {
		b.log.WithError(err).Error("failed to reply")
	}
}

// control runs whitelisted commands from the control channel. Returns false when msg is not a command.
func (b *bot) control(message twitch.PrivateMessage, msg string) bool {
	name := message.User.DisplayName
	reply := func(format string, args ...interface{}) error {
		return b.client.SendMessage(message.Channel, fmt.Sprintf("@%s, "+format, append([]interface{}{name}, args...)...))
	}

	switch {
	case strings.HasPrefix(msg, "!say "):
		res := b.sched.Enqueue(datastructures.Request{
			RequesterID: message.User.ID,
			DisplayName: name,
			Text:        truncate(strings.TrimPrefix(msg, "!say "), b.cfg.Tts.MaxTextLength),
			Voice:       b.cfg.Tts.DefaultVoice,
			Engine:      b.cfg.Tts.DefaultEngine,
			Source:      datastructures.SourceManual,
			SkipDedup:   true,
		})
		if !res.Accepted {
			var err error = fmt.Errorf("%s: %s", res.Reason, res.Detail)
			err = multierror.Append(err, reply("failed to queue tts"))
			b.log.WithError(err).Error("failed to queue tts")
			return true
		}
		_ = reply("queued tts at position %d", res.Position)
	case msg == "!skip":
		if !b.sched.SkipCurrent() {
			_ = reply("nothing is playing")
			return true
		}
		_ = reply("skipped tts")
	case msg == "!clear":
		_ = reply("cleared %d tts", b.sched.Clear())
	default:
		return false
	}
	return true
}

func (b *bot) chatRequest(ctx context.Context, message twitch.PrivateMessage, text string) datastructures.Request {
	req := datastructures.Request{
		RequesterID:  message.User.ID,
		DisplayName:  message.User.DisplayName,
		Text:         truncate(strings.TrimSpace(text), b.cfg.Tts.MaxTextLength),
		Voice:        b.cfg.Tts.DefaultVoice,
		Engine:       b.cfg.Tts.DefaultEngine,
		Source:       datastructures.SourceChat,
		IsSubscriber: message.User.Badges["subscriber"] > 0 || message.User.Badges["founder"] > 0,
		TeamLevel:    subMonths(message.Tags["badge-info"]),
	}

	if b.voices == nil {
		return req
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	va, err := b.voices.FetchVoiceAssignment(lookupCtx, message.User.ID)
	if err != nil {
		if err != mongo.ErrNoDocuments {
			b.log.WithError(err).Warn("failed to fetch voice assignment")
		}
		return req
	}

	req.Voice = va.Voice
	if va.Engine != "" {
		req.Engine = va.Engine
	}
	req.HasAssignedVoice = true
	return req
}

// subMonths reads the subscriber months out of a badge-info tag like "subscriber/14".
func subMonths(badgeInfo string) int {
	for _, badge := range strings.Split(badgeInfo, ",") {
		kv := strings.SplitN(badge, "/", 2)
		if len(kv) != 2 || (kv[0] != "subscriber" && kv[0] != "founder") {
			continue
		}
		if n, err := strconv.Atoi(kv[1]); err == nil {
			return n
		}
	}
	return 0
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}
