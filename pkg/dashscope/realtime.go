package dashscope

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("dashscope: connection closed")

// RealtimeService opens realtime WebSocket sessions.
type RealtimeService struct {
	client *Client
}

// Conn is one realtime WebSocket. Send is safe for concurrent use; Events
// must be consumed by a single goroutine.
type Conn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu        sync.Mutex
	sessionID string
	writeMu   sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once
	eventsCh  chan eventOrError
}

type eventOrError struct {
	event *Event
	err   error
}

// Dial opens a realtime connection for model.
func (s *RealtimeService) Dial(ctx context.Context, model string) (*Conn, error) {
	c := s.client
	header, err := c.header()
	if err != nil {
		return nil, err
	}
	endpoint, err := c.realtimeURL(model)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: c.handshake}
	ws, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       ErrCodeConnectionFailed,
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("dashscope: failed to connect: %w", err)
	}

	conn := &Conn{
		conn:     ws,
		logger:   c.logger,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
	go conn.readLoop()
	return conn, nil
}

func newEventID() string {
	return "event_" + uuid.New().String()[:8]
}

// Send writes one client event. event_id is filled in if absent.
func (c *Conn) Send(event map[string]any) error {
	if _, ok := event["event_id"]; !ok {
		event["event_id"] = newEventID()
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}
	if c.logger.Enabled(context.Background(), slog.LevelDebug) {
		c.logger.Debug("dashscope/realtime: send", "type", event["type"])
	}
	return c.conn.WriteJSON(event)
}

// SessionID returns the ID assigned in session.created.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Events iterates over server events. Error events are yielded as *Error
// values and iteration continues; a read failure ends iteration after
// yielding it. Iteration also ends when the connection is closed locally.
func (c *Conn) Events() iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for {
			select {
			case <-c.closeCh:
				return
			case item, ok := <-c.eventsCh:
				if !ok {
					return
				}
				if !yield(item.event, item.err) {
					return
				}
			}
		}
	}
}

// Close closes the connection. It is idempotent.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed once Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closeCh
}

func (c *Conn) emit(item eventOrError) bool {
	select {
	case <-c.closeCh:
		return false
	case c.eventsCh <- item:
		return true
	}
}

func (c *Conn) readLoop() {
	defer close(c.eventsCh)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			c.emit(eventOrError{err: fmt.Errorf("dashscope: read: %w", err)})
			return
		}

		ev, err := parseEvent(message)
		if err != nil {
			c.logger.Debug("dashscope/realtime: unparsable event dropped", "error", err)
			continue
		}
		c.logger.Debug("dashscope/realtime: recv", "type", ev.Type)

		if ev.Type == EventTypeSessionCreated && ev.Session != nil {
			c.mu.Lock()
			c.sessionID = ev.Session.ID
			c.mu.Unlock()
		}
		item := eventOrError{event: ev}
		if ev.Type == EventTypeError && ev.Error != nil {
			item = eventOrError{err: ev.Error.toError()}
		}
		if !c.emit(item) {
			return
		}
	}
}

func parseEvent(message []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" {
		return nil, errors.New("event without type")
	}
	if ev.Type == EventTypeResponseAudioDelta && ev.Delta != "" {
		audio, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return nil, fmt.Errorf("audio delta: %w", err)
		}
		ev.Audio = audio
	}
	return &ev, nil
}
