package streamelements

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var re = regexp.MustCompile(`(?s)^(\d+)(.*)$`)

var ErrNotConnected = errors.New("streamelements socket not connected")

const (
	EventListenerSubscription = "subscriber-latest"
	EventListenerCheer        = "cheer-latest"
	EventListenerDonation     = "tip-latest"
)

const (
	EventConnect       = "connect"
	EventDisconnect    = "disconnect"
	EventAuthenticated = "authenticated"
	EventUnauthorized  = "unauthorized"
	EventUpdate        = "event:update"
	EventTest          = "event:test"
)

type Client interface {
	Connect(uri string) error
	Auth(method, token string) error
	RawMessage(event string, payload interface{}) error
	Events() <-chan Event
	Close() error
}

type EventUpdatePayload struct {
	Name string              `json:"name"`
	Data jsoniter.RawMessage `json:"data"`
}

type EventTestPayload struct {
	Listener string              `json:"listener"`
	Event    jsoniter.RawMessage `json:"event"`
}

type Subscription struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName"`
	Amount      int         `json:"amount"`
	Tier        interface{} `json:"tier"`
	Count       int         `json:"count"`
	Gifted      bool        `json:"gifted"`
	BulkGifted  bool        `json:"bulkGifted"`
	Sender      string      `json:"sender"`
	Message     string      `json:"message"`
}

type Cheer struct {
	DisplayName string `json:"displayName"`
	Amount      int    `json:"amount"`
	Name        string `json:"name"`
	Message     string `json:"message"`
}

type Donation struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Message  string  `json:"message"`
}

type Event struct {
	Name    string
	Payload jsoniter.RawMessage
}

// Listener unwraps the listener name and its data from an update or test event.
func (e Event) Listener() (string, jsoniter.RawMessage, error) {
	if e.Name == EventUpdate {
		se := EventUpdatePayload{}
		if err := json.Unmarshal(e.Payload, &se); err != nil {
			return "", nil, err
		}
		return se.Name, se.Data, nil
	}

	se := EventTestPayload{}
	if err := json.Unmarshal(e.Payload, &se); err != nil {
		return "", nil, err
	}
	return se.Listener, se.Event, nil
}

type cl struct {
	mtx       sync.Mutex
	conn      *websocket.Conn
	connected bool
	events    chan Event
}

func NewClient() Client {
	return &cl{
		events: make(chan Event, 100),
	}
}

func (c *cl) Events() <-chan Event {
	return c.events
}

func (c *cl) Connect(uri string) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	conn, _, err := websocket.DefaultDialer.Dial(uri, nil)
	if err != nil {
		return err
	}
	c.conn = conn
	c.connected = false

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		c.process(conn)
		cancel()
	}()
	go func() {
		c.ping(ctx, conn)
		cancel()
	}()
	go func() {
		<-ctx.Done()
		c.events <- Event{
			Name: EventDisconnect,
		}
	}()

	return nil
}

func (c *cl) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *cl) Auth(method, token string) error {
	return c.RawMessage("authenticate", map[string]string{
		"method": method,
		"token":  token,
	})
}

// Frame encodes a socket.io event message.
func Frame(event string, payload interface{}) ([]byte, error) {
	buff := bytes.NewBuffer(nil)
	buff.WriteString(`42`)
	data, err := json.Marshal([]interface{}{event, payload})
	if err != nil {
		return nil, err
	}
	_, _ = buff.Write(data)
	return buff.Bytes(), nil
}

func (c *cl) RawMessage(event string, payload interface{}) error {
	data, err := Frame(event, payload)
	if err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *cl) ping(ctx context.Context, conn *websocket.Conn) {
	tick := time.NewTicker(time.Second * 3)
	defer tick.Stop()
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		c.mtx.Lock()
		err := conn.WriteMessage(websocket.TextMessage, []byte{'2'})
		c.mtx.Unlock()
		if err != nil {
			return
		}
	}
}

func (c *cl) process(conn *websocket.Conn) {
	defer conn.Close()
	for {
		t, data, err := conn.ReadMessage()
		if err != nil {
			logrus.WithError(err).Debug("streamelements read failed")
			return
		}

		if t != websocket.TextMessage {
			continue
		}

		c.mtx.Lock()
		connected := c.connected
		c.mtx.Unlock()

		event, ok := ParseFrame(data, connected)
		if !ok {
			continue
		}
		if event.Name == EventConnect {
			c.mtx.Lock()
			c.connected = true
			c.mtx.Unlock()
		}

		c.events <- event
	}
}

// ParseFrame decodes one socket.io text frame. Pings, acks and malformed frames are dropped.
func ParseFrame(data []byte, connected bool) (Event, bool) {
	match := re.FindSubmatch(data)
	if match == nil {
		return Event{}, false
	}

	if !connected && string(match[1]) == "40" {
		return Event{Name: EventConnect}, true
	}

	if len(match[2]) == 0 {
		return Event{}, false
	}

	parts := []jsoniter.RawMessage{}
	if err := json.Unmarshal(match[2], &parts); err != nil {
		logrus.WithError(err).Error("failed to parse parts")
		return Event{}, false
	}
	if len(parts) == 0 {
		return Event{}, false
	}

	name := ""
	if err := json.Unmarshal(parts[0], &name); err != nil {
		logrus.WithError(err).Error("failed to parse event name")
		return Event{}, false
	}

	event := Event{Name: name}
	if len(parts) > 1 {
		event.Payload = parts[1]
	}
	return event, true
}
