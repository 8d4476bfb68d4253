package status

import (
	"testing"
	"time"

	"github.com/evently/courier/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if got := m.Current(); got != Idle {
		t.Errorf("Current() = %s, want %s", got, Idle)
	}
	if m.Connected() {
		t.Error("Connected() = true for a fresh machine")
	}
}

func TestHappyPath(t *testing.T) {
	m := NewMachine(nil)
	for _, to := range []State{Connecting, Open, Closed} {
		if err := m.Transition(to); err != nil {
			t.Fatalf("Transition(%s) error = %v", to, err)
		}
	}
	if got := m.Current(); got != Closed {
		t.Errorf("Current() = %s, want %s", got, Closed)
	}
}

func TestConnectingStraightToClosed(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Closed); err != nil {
		t.Errorf("Connecting -> Closed should be allowed, got %v", err)
	}
}

func TestInvalidTransitionLeavesStateUnchanged(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Open); err == nil {
		t.Error("Idle -> Open should be rejected")
	}
	if got := m.Current(); got != Idle {
		t.Errorf("Current() = %s after rejected transition, want %s", got, Idle)
	}
}

func TestReconnectFromClosed(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(Connecting)
	_ = m.Transition(Closed)
	if err := m.Transition(Connecting); err != nil {
		t.Errorf("Closed -> Connecting should be allowed, got %v", err)
	}
}

func TestConnectedOnlyWhenOpen(t *testing.T) {
	m := NewMachine(nil)
	_ = m.Transition(Connecting)
	if m.Connected() {
		t.Error("Connected() = true while connecting")
	}
	_ = m.Transition(Open)
	if !m.Connected() {
		t.Error("Connected() = false while open")
	}
	_ = m.Transition(Closed)
	if m.Connected() {
		t.Error("Connected() = true after close")
	}
}

func TestTransitionsPublishOnBus(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	ch, unsub := b.Subscribe("channel.", 10)
	defer unsub()

	_ = m.Transition(Connecting)
	_ = m.Transition(Open)

	want := []struct {
		kind string
		to   State
	}{
		{bus.KindChannelConnecting, Connecting},
		{bus.KindChannelOpen, Open},
	}
	for _, w := range want {
		select {
		case evt := <-ch:
			if evt.Kind != w.kind {
				t.Errorf("event kind = %q, want %q", evt.Kind, w.kind)
			}
			change, ok := evt.Payload.(Change)
			if !ok {
				t.Fatalf("payload type = %T, want Change", evt.Payload)
			}
			if change.To != w.to {
				t.Errorf("change.To = %s, want %s", change.To, w.to)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", w.kind)
		}
	}
}
