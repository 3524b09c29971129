package manager

import (
	"fmt"
	"time"

	"github.com/admiralbulldogtv/yapperqueue/src/global"
	"github.com/admiralbulldogtv/yapperqueue/src/server"
	"github.com/admiralbulldogtv/yapperqueue/src/streamelements"
	"github.com/admiralbulldogtv/yapperqueue/src/twitch"
	"github.com/sirupsen/logrus"
)

// New starts ingestion and the api. The returned channel closes once ctx is done and the api has shut down.
func New(ctx global.Context) <-chan struct{} {
	done := make(chan struct{})

	manager := &Manager{}

	if ctx.Config().StreamElements.Enabled {
		manager.se = streamelements.NewClient()
		if err := manager.handleSe(ctx); err != nil {
			logrus.WithError(err).Fatal("streamelements failed")
		}
		logrus.Info("streamelements started")
	}

	serverDone := server.New(ctx)

	if ctx.Config().Twitch.Enabled {
		if _, err := twitch.NewClient(ctx); err != nil {
			logrus.WithError(err).Fatal("twitch failed")
		}
	}

	go func() {
		<-ctx.Done()
		if manager.se != nil {
			_ = manager.se.Close()
		}
		<-serverDone
		close(done)
	}()

	return done
}

type Manager struct {
	se streamelements.Client
}

func (m *Manager) handleSe(gCtx global.Context) error {
	ctx, cancel := global.WithTimeout(gCtx, time.Second*10)
	defer cancel()

	che := make(chan error, 1)
	log := logrus.WithField("component", "streamelements")

	go func() {
		ch := m.se.Events()
		authed := false
		for {
			var event streamelements.Event
			select {
			case <-gCtx.Done():
				return
			case event = <-ch:
			}

			switch event.Name {
			case streamelements.EventConnect:
				log.Info("streamelements connected")
				if err := m.se.Auth(gCtx.Config().StreamElements.AuthMethod, gCtx.Config().StreamElements.AuthToken); err != nil {
					log.WithError(err).Error("failed to authenticate")
				}
			case streamelements.EventDisconnect:
				if gCtx.Err() != nil {
					return
				}
				log.Warn("streamelements disconnected")
				m.reconnect(gCtx)
			case streamelements.EventAuthenticated:
				if !authed {
					authed = true
					che <- nil
				}
				log.Info("streamelements authenticated")
			case streamelements.EventUnauthorized:
				err := fmt.Errorf("%s", event.Payload)
				select {
				case che <- err:
				default:
					log.WithError(err).Error("streamelements unauthorized")
				}
			case streamelements.EventUpdate, streamelements.EventTest:
				m.handleGift(gCtx, event)
			}
		}
	}()

	if err := m.se.Connect(ctx.Config().StreamElements.WssUrl); err != nil {
		return err
	}

	select {
	case err := <-che:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) reconnect(ctx global.Context) {
	wait := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		err := m.se.Connect(ctx.Config().StreamElements.WssUrl)
		if err == nil {
			return
		}
		logrus.WithError(err).WithField("component", "streamelements").Error("failed to reconnect")
		if wait *= 2; wait > 30*time.Second {
			wait = 30 * time.Second
		}
	}
}

func (m *Manager) handleGift(gCtx global.Context, event streamelements.Event) {
	log := logrus.WithField("component", "streamelements")

	listener, payload, err := event.Listener()
	if err != nil {
		log.WithError(err).Error("failed to parse event")
		return
	}

	req, ok, err := GiftRequest(gCtx.Config(), listener, payload)
	if err != nil {
		log.WithError(err).WithField("listener", listener).Error("failed to parse event")
		return
	}
	if !ok {
		return
	}

	res := gCtx.Inst().Scheduler.Enqueue(req)
	log = log.WithField("listener", listener).WithField("requester", req.RequesterID)
	if !res.Accepted {
		log.WithField("reason", res.Reason).Warn("gift request rejected")
		return
	}
	log.WithField("id", res.ID).WithField("position", res.Position).Info("queued gift tts")
}
