package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingConnector struct {
	connected atomic.Bool
	calls     atomic.Int32
}

func (c *countingConnector) Connect(context.Context) error {
	c.calls.Add(1)
	return nil
}

func (c *countingConnector) IsConnected() bool { return c.connected.Load() }

func TestSupervisorStartIsGuarded(t *testing.T) {
	s := NewSupervisor(&countingConnector{}, time.Hour, nil)
	if !s.Start() {
		t.Fatal("first Start() = false")
	}
	if s.Start() {
		t.Error("second Start() started another loop")
	}
	s.Stop()
	s.Stop()
	if s.Running() {
		t.Error("Running() = true after Stop")
	}
	if !s.Start() {
		t.Error("Start() after Stop should start a new loop")
	}
	s.Stop()
}

func TestSupervisorSkipsWhenConnected(t *testing.T) {
	c := &countingConnector{}
	c.connected.Store(true)
	s := NewSupervisor(c, 10*time.Millisecond, nil)
	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	if got := c.calls.Load(); got != 0 {
		t.Errorf("Connect called %d times while connected, want 0", got)
	}
}

func TestSupervisorConvergesAfterFailures(t *testing.T) {
	fb := newFakeBackend(t)
	fb.refuse.Store(true)
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)

	s := NewSupervisor(m, 20*time.Millisecond, nil)
	s.Start()
	defer s.Stop()

	// Several refused ticks.
	time.Sleep(100 * time.Millisecond)
	if m.IsConnected() {
		t.Fatal("connected while backend refuses")
	}

	fb.refuse.Store(false)
	waitFor(t, "reconnect", m.IsConnected)

	// Further ticks must not open overlapping transports.
	time.Sleep(100 * time.Millisecond)
	if got := fb.accepts.Load(); got != 1 {
		t.Errorf("backend saw %d connections, want 1", got)
	}
}
