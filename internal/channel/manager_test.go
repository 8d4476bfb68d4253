package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/evently/courier/internal/bus"
	"github.com/evently/courier/internal/state"
	"github.com/evently/courier/internal/status"
	"github.com/evently/courier/internal/store"
)

type mockHandler struct {
	newMessages chan store.Message
	readsFrom   chan string
}

func newMockHandler() *mockHandler {
	return &mockHandler{
		newMessages: make(chan store.Message, 8),
		readsFrom:   make(chan string, 8),
	}
}

func (h *mockHandler) HandleNewMessage(ctx context.Context, msg store.Message) {
	h.newMessages <- msg
}

func (h *mockHandler) HandleMessagesRead(contactID string) {
	h.readsFrom <- contactID
}

// pushServer upgrades connections and exposes the server side of the socket.
type pushServer struct {
	*httptest.Server
	conns chan *websocket.Conn
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("organizerId") == "" {
			t.Error("dial missing organizerId query parameter")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ps.conns <- conn
	}))
	return ps
}

func (ps *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ps.URL, "http")
}

func newTestManager(t *testing.T, pushURL string, fallback func()) (*Manager, *mockHandler) {
	t.Helper()
	h := newMockHandler()
	machine := status.NewMachine(bus.New())
	m := NewManager(pushURL, "org-1", time.Second, machine, state.NewView(), h, fallback, zap.NewNop())
	return m, h
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStartOpensChannelAndDispatchesFrames(t *testing.T) {
	ps := newPushServer(t)
	defer ps.Close()

	m, h := newTestManager(t, ps.wsURL(), nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close()

	if !m.Connected() {
		t.Fatal("channel not connected after Start")
	}

	server := <-ps.conns
	payload, _ := json.Marshal(store.Message{ID: "m1", SenderID: "c1", ReceiverID: "org-1", Content: "hi"})
	if err := server.WriteJSON(frame{Type: frameNewMessage, Payload: payload}); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case msg := <-h.newMessages:
		if msg.ID != "m1" || msg.Content != "hi" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("NEW_MESSAGE frame never dispatched")
	}

	readMsg, _ := json.Marshal(readPayload{ContactID: "c1"})
	if err := server.WriteJSON(frame{Type: frameMessagesRead, Payload: readMsg}); err != nil {
		t.Fatalf("server write: %v", err)
	}
	select {
	case contactID := <-h.readsFrom:
		if contactID != "c1" {
			t.Errorf("read receipt for %q, want c1", contactID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("MESSAGES_READ frame never dispatched")
	}
}

func TestDialFailureTriggersFallbackOnce(t *testing.T) {
	// Plain HTTP endpoint: the upgrade handshake fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var fallbacks atomic.Int32
	m, _ := newTestManager(t, "ws"+strings.TrimPrefix(srv.URL, "http"), func() {
		fallbacks.Add(1)
	})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	if got := m.machine.Current(); got != status.Closed {
		t.Errorf("state = %v, want Closed", got)
	}
	if got := fallbacks.Load(); got != 1 {
		t.Errorf("fallback fired %d times, want 1", got)
	}
}

func TestServerDropTriggersFallback(t *testing.T) {
	ps := newPushServer(t)
	defer ps.Close()

	var fallbacks atomic.Int32
	m, _ := newTestManager(t, ps.wsURL(), func() { fallbacks.Add(1) })
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	server := <-ps.conns
	server.Close()

	waitFor(t, func() bool { return fallbacks.Load() == 1 }, "fallback never fired after drop")
	waitFor(t, func() bool { return m.machine.Current() == status.Closed }, "channel never closed after drop")
	if m.Connected() {
		t.Error("still reporting connected after drop")
	}
}

func TestBroadcastRead(t *testing.T) {
	ps := newPushServer(t)
	defer ps.Close()

	m, _ := newTestManager(t, ps.wsURL(), nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close()

	m.BroadcastRead("c1")

	server := <-ps.conns
	var f frame
	if err := server.ReadJSON(&f); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if f.Type != frameMessagesRead {
		t.Errorf("frame type = %q", f.Type)
	}
	var p readPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ContactID != "c1" {
		t.Errorf("contactId = %q", p.ContactID)
	}
}

func TestCloseDoesNotTriggerFallback(t *testing.T) {
	ps := newPushServer(t)
	defer ps.Close()

	var fallbacks atomic.Int32
	m, _ := newTestManager(t, ps.wsURL(), func() { fallbacks.Add(1) })
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.Close()
	m.Close()

	time.Sleep(50 * time.Millisecond)
	if got := fallbacks.Load(); got != 0 {
		t.Errorf("deliberate close fired fallback %d times", got)
	}
	if got := m.machine.Current(); got != status.Closed {
		t.Errorf("state = %v, want Closed", got)
	}
}

func TestPollerRunsUntilStopped(t *testing.T) {
	var polls atomic.Int32
	p := NewPoller(10*time.Millisecond, func(ctx context.Context) {
		polls.Add(1)
	}, bus.New(), zap.NewNop())

	p.Start()
	p.Start() // second start is a no-op

	waitFor(t, func() bool { return polls.Load() >= 3 }, "poller never ticked")
	p.Stop()

	settled := polls.Load()
	time.Sleep(50 * time.Millisecond)
	if polls.Load() > settled+1 {
		t.Errorf("poller kept running after Stop: %d -> %d", settled, polls.Load())
	}
}
