package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/evently/courier/internal/metrics"
	"github.com/evently/courier/internal/state"
	"github.com/evently/courier/internal/status"
	"github.com/evently/courier/internal/store"
)

const (
	frameNewMessage   = "NEW_MESSAGE"
	frameMessagesRead = "MESSAGES_READ"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type readPayload struct {
	ContactID string `json:"contactId"`
}

// Handler consumes push notifications off the read pump.
type Handler interface {
	HandleNewMessage(ctx context.Context, msg store.Message)
	HandleMessagesRead(contactID string)
}

// Manager owns the push websocket: one dial attempt, a read pump while the
// socket lives, and best-effort outbound broadcasts. When the socket cannot
// be established or drops, the fallback fires exactly once and polling takes
// over for the rest of the process lifetime.
type Manager struct {
	pushURL          string
	organizerID      string
	handshakeTimeout time.Duration
	machine          *status.Machine
	view             *state.View
	handler          Handler
	logger           *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	fallback     func()
	fallbackOnce sync.Once
}

// NewManager builds a push channel manager. fallback is invoked at most once,
// the first time the channel fails; pass the poller's Start.
func NewManager(pushURL, organizerID string, handshakeTimeout time.Duration, machine *status.Machine, view *state.View, handler Handler, fallback func(), logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		pushURL:          pushURL,
		organizerID:      organizerID,
		handshakeTimeout: handshakeTimeout,
		machine:          machine,
		view:             view,
		handler:          handler,
		fallback:         fallback,
		logger:           logger,
	}
}

// Start dials the push endpoint once. On success the read pump runs until the
// socket drops or Close is called. On failure the channel is Closed and the
// fallback takes over; the error is returned for logging, not retrying.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.machine.Transition(status.Connecting); err != nil {
		return err
	}

	target, err := m.dialURL()
	if err != nil {
		m.fail()
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		m.logger.Warn("push channel dial failed", zap.String("url", target), zap.Error(err))
		m.fail()
		return fmt.Errorf("dialing push channel: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.conn = conn
	m.mu.Unlock()

	if err := m.machine.Transition(status.Open); err != nil {
		return err
	}
	m.view.SetConnected(true)
	metrics.SetChannelConnected(true)
	m.logger.Info("push channel open", zap.String("url", target))

	go m.readPump(ctx, conn)
	return nil
}

func (m *Manager) dialURL() (string, error) {
	u, err := url.Parse(m.pushURL)
	if err != nil {
		return "", fmt.Errorf("parsing push url: %w", err)
	}
	q := u.Query()
	q.Set("organizerId", m.organizerID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Manager) readPump(ctx context.Context, conn *websocket.Conn) {
	defer m.fail()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if !closed {
				m.logger.Warn("push channel read failed", zap.Error(err))
			}
			return
		}
		m.dispatch(ctx, data)
	}
}

func (m *Manager) dispatch(ctx context.Context, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		m.logger.Warn("malformed push frame", zap.Error(err))
		return
	}
	metrics.IncChannelEvent(f.Type)

	switch f.Type {
	case frameNewMessage:
		var msg store.Message
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			m.logger.Warn("malformed message payload", zap.Error(err))
			return
		}
		m.handler.HandleNewMessage(ctx, msg)
	case frameMessagesRead:
		var p readPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			m.logger.Warn("malformed read payload", zap.Error(err))
			return
		}
		m.handler.HandleMessagesRead(p.ContactID)
	default:
		m.logger.Info("ignoring unknown push frame", zap.String("type", f.Type))
	}
}

// fail moves the channel to Closed and hands off to the fallback. Safe to
// call from any state and any goroutine; the fallback fires once. A channel
// that was deliberately closed does not fall back.
func (m *Manager) fail() {
	m.mu.Lock()
	deliberate := m.closed
	m.mu.Unlock()
	if deliberate {
		return
	}
	m.view.SetConnected(false)
	metrics.SetChannelConnected(false)
	if m.machine.Current() != status.Closed {
		if err := m.machine.Transition(status.Closed); err != nil {
			m.logger.Warn("channel state transition failed", zap.Error(err))
		}
	}
	if m.fallback != nil {
		m.fallbackOnce.Do(func() {
			m.logger.Info("push channel down, switching to polling")
			m.fallback()
		})
	}
}

// Connected reports whether the socket is open.
func (m *Manager) Connected() bool {
	return m.machine.Connected()
}

// BroadcastNewMessage pushes a confirmed message to the counterpart. Errors
// are logged only; the store already holds the canonical record.
func (m *Manager) BroadcastNewMessage(msg store.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		m.logger.Warn("encoding broadcast message", zap.Error(err))
		return
	}
	m.write(frame{Type: frameNewMessage, Payload: payload})
}

// BroadcastRead notifies the counterpart that their messages were read.
func (m *Manager) BroadcastRead(contactID string) {
	payload, err := json.Marshal(readPayload{ContactID: contactID})
	if err != nil {
		m.logger.Warn("encoding read broadcast", zap.Error(err))
		return
	}
	m.write(frame{Type: frameMessagesRead, Payload: payload})
}

func (m *Manager) write(f frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || m.closed {
		return
	}
	if err := m.conn.WriteJSON(f); err != nil {
		m.logger.Warn("push channel write failed", zap.String("type", f.Type), zap.Error(err))
	}
}

// Close shuts the channel down on process exit. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.view.SetConnected(false)
	metrics.SetChannelConnected(false)
	if m.machine.Current() != status.Closed {
		if err := m.machine.Transition(status.Closed); err != nil {
			m.logger.Warn("channel state transition failed", zap.Error(err))
		}
	}
}
