package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/protocol"
	"github.com/matheus3301/tabsync/internal/status"
)

func TestConnectSendsAuthAndAuthenticates(t *testing.T) {
	fb := newFakeBackend(t)
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	auth := fb.nextFrame(t, protocol.TypeAuth)
	if auth["token"] != "tok-1" {
		t.Errorf("auth token = %v, want tok-1", auth["token"])
	}
	if m.State() != status.Authenticated {
		t.Errorf("state = %s, want AUTHENTICATED", m.State())
	}
	if !m.IsConnected() || !m.HeartbeatActive() {
		t.Error("expected connected with heartbeat running")
	}
}

func TestConnectWithoutCredentialIsNoop(t *testing.T) {
	fb := newFakeBackend(t)
	m, _ := newTestManager(t, fb.url(), staticCreds{}, time.Hour)

	if err := m.Connect(context.Background()); err != nil {
		t.Errorf("Connect() error = %v, want silent no-op", err)
	}
	if m.State() != status.Disconnected {
		t.Errorf("state = %s, want DISCONNECTED", m.State())
	}
	if fb.accepts.Load() != 0 {
		t.Errorf("backend saw %d connections, want 0", fb.accepts.Load())
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	fb := newFakeBackend(t)
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Connect(context.Background())
		}()
	}
	wg.Wait()
	waitFor(t, "authenticated", m.IsConnected)

	// Connecting again while authenticated must not dial.
	_ = m.Connect(context.Background())
	time.Sleep(50 * time.Millisecond)

	if got := fb.accepts.Load(); got != 1 {
		t.Errorf("backend saw %d connections, want exactly 1", got)
	}
}

func TestDialFailureLeavesDisconnected(t *testing.T) {
	fb := newFakeBackend(t)
	fb.refuse.Store(true)
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)

	if err := m.Connect(context.Background()); err == nil {
		t.Error("Connect() succeeded against a refusing backend")
	}
	if m.State() != status.Disconnected || m.HeartbeatActive() {
		t.Errorf("state = %s heartbeat = %v, want DISCONNECTED without heartbeat", m.State(), m.HeartbeatActive())
	}
}

func TestStateQueriesDoNotWaitForHandshake(t *testing.T) {
	fb := newFakeBackend(t)
	fb.stall = make(chan struct{})
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)

	connectDone := make(chan error, 1)
	go func() { connectDone <- m.Connect(context.Background()) }()
	waitFor(t, "connecting", func() bool { return m.State() == status.Connecting })

	queried := make(chan bool, 1)
	go func() { queried <- m.IsConnected() }()
	select {
	case connected := <-queried:
		if connected {
			t.Error("IsConnected() = true mid-handshake")
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatal("IsConnected blocked behind the handshake")
	}

	m.Disconnect()
	close(fb.stall)
	if err := <-connectDone; err != nil {
		t.Errorf("Connect() = %v, want nil after Disconnect", err)
	}
	if m.State() != status.Disconnected || m.IsConnected() {
		t.Errorf("state = %s after disconnect mid-dial, want DISCONNECTED", m.State())
	}
}

func TestHeartbeatStopsWhenTransportCloses(t *testing.T) {
	fb := newFakeBackend(t)
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, 20*time.Millisecond)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	fb.nextFrame(t, protocol.TypePing)
	fb.nextFrame(t, protocol.TypePing)

	fb.dropAll()

	waitFor(t, "disconnected", func() bool { return m.State() == status.Disconnected })
	if m.HeartbeatActive() {
		t.Error("heartbeat still active after transport close")
	}
	if m.IsConnected() {
		t.Error("IsConnected() = true after transport close")
	}
}

func TestAuthRejectionClosesTransport(t *testing.T) {
	fb := newFakeBackend(t)
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	fb.nextFrame(t, protocol.TypeAuth)
	fb.send(t, `{"type":"auth","success":"false"}`)

	waitFor(t, "disconnected after auth rejection", func() bool { return m.State() == status.Disconnected })
	if m.HeartbeatActive() {
		t.Error("heartbeat survived auth rejection")
	}
}

func TestAuthSuccessKeepsConnection(t *testing.T) {
	fb := newFakeBackend(t)
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	fb.send(t, `{"type":"auth","success":true}`)
	time.Sleep(50 * time.Millisecond)
	if !m.IsConnected() {
		t.Error("connection closed after successful auth result")
	}
}

func TestDisconnectIsSynchronous(t *testing.T) {
	fb := newFakeBackend(t)
	m, _ := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Disconnect()

	if m.State() != status.Disconnected {
		t.Errorf("state = %s right after Disconnect, want DISCONNECTED", m.State())
	}
	if m.HeartbeatActive() {
		t.Error("heartbeat active right after Disconnect")
	}
	if err := m.Send(context.Background(), protocol.NewPing()); err != ErrNotConnected {
		t.Errorf("Send() after Disconnect = %v, want ErrNotConnected", err)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.IsConnected() {
		t.Error("reconnect after Disconnect failed")
	}
	if got := fb.accepts.Load(); got != 2 {
		t.Errorf("backend saw %d connections, want 2", got)
	}
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	fb := newFakeBackend(t)
	m, b := newTestManager(t, fb.url(), staticCreds{testCred}, time.Hour)
	ch, unsub := b.Subscribe("presence.", 4)
	defer unsub()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	fb.send(t, `{not json`)
	fb.send(t, `{"type":"friend_tab_update","friendId":"f1","tabs":[{"id":1,"title":"A","url":"https://a"}]}`)

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindFriendTabUpdate {
			t.Fatalf("kind = %s", evt.Kind)
		}
		p := evt.Payload.(FriendTabs)
		if p.FriendID != "f1" || len(p.Tabs) != 1 {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("friend update not delivered after malformed frame")
	}
	if !m.IsConnected() {
		t.Error("malformed frame dropped the connection")
	}
}
