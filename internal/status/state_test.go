package status

import (
	"testing"
	"time"

	"github.com/vibein/vibechat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{AuthRequired}},
		{[]State{Connecting, Online}},
		{[]State{Connecting, Reconnecting, Connecting, Online}},
		{[]State{Connecting, Online, Reconnecting, Connecting}},
		{[]State{Connecting, Online, AuthRequired, Connecting}},
		{[]State{Error, Booting}},
		{[]State{Error, Connecting}},
		{[]State{Connecting, AuthRequired}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, s := range tt.path {
			if err := m.Transition(s); err != nil {
				t.Errorf("path %v: %v", tt.path, err)
				break
			}
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		walk []State
		to   State
	}{
		{nil, Online},
		{nil, Reconnecting},
		{[]State{AuthRequired}, Online},
		{[]State{Connecting, Reconnecting}, Online},
		{[]State{Connecting, Online}, Connecting},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, s := range tt.walk {
			if err := m.Transition(s); err != nil {
				t.Fatalf("walk %v: %v", tt.walk, err)
			}
		}
		before := m.Current()
		if err := m.Transition(tt.to); err == nil {
			t.Errorf("Transition(%s -> %s) should fail", before, tt.to)
		}
		if m.Current() != before {
			t.Errorf("state changed to %s after rejected transition", m.Current())
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("link.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.TransitionWithDetail(AuthRequired, "token rejected"); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindLinkStatus {
			t.Errorf("event kind = %q, want %q", evt.Kind, bus.KindLinkStatus)
		}
		change, ok := evt.Payload.(Change)
		if !ok {
			t.Fatalf("payload type = %T, want Change", evt.Payload)
		}
		if change.From != Booting || change.To != AuthRequired || change.Detail != "token rejected" {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestSnapshot(t *testing.T) {
	m := NewMachine(nil)
	_, bootedAt, _ := m.Snapshot()
	if err := m.TransitionWithDetail(Connecting, "dialing"); err != nil {
		t.Fatal(err)
	}
	st, since, detail := m.Snapshot()
	if st != Connecting || detail != "dialing" {
		t.Errorf("snapshot = %s %q", st, detail)
	}
	if since.Before(bootedAt) {
		t.Error("since went backwards")
	}
	if !m.CanTransition(Online) || m.CanTransition(Booting) {
		t.Error("CanTransition disagrees with the transition table")
	}
}
