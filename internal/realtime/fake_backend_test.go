package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/status"
)

// fakeBackend is a websocket server recording every frame it receives.
type fakeBackend struct {
	srv     *httptest.Server
	accepts atomic.Int32
	refuse  atomic.Bool
	frames  chan map[string]any
	// stall, when set, holds every handshake until it is closed.
	stall chan struct{}

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{frames: make(chan map[string]any, 256)}
	fb.srv = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(func() {
		fb.dropAll()
		fb.srv.Close()
	})
	return fb
}

func (fb *fakeBackend) url() string {
	return "ws" + strings.TrimPrefix(fb.srv.URL, "http")
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	if fb.refuse.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	if fb.stall != nil {
		<-fb.stall
	}
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	fb.accepts.Add(1)
	fb.mu.Lock()
	fb.conns = append(fb.conns, c)
	fb.mu.Unlock()

	for {
		_, data, err := c.Read(context.Background())
		if err != nil {
			return
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		select {
		case fb.frames <- frame:
		default:
		}
	}
}

// send writes a raw frame to the most recent connection.
func (fb *fakeBackend) send(t *testing.T, frame string) {
	t.Helper()
	fb.mu.Lock()
	c := fb.conns[len(fb.conns)-1]
	fb.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("backend write: %v", err)
	}
}

func (fb *fakeBackend) dropAll() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, c := range fb.conns {
		_ = c.CloseNow()
	}
	fb.conns = nil
}

// nextFrame waits for a frame of the given type, skipping others.
func (fb *fakeBackend) nextFrame(t *testing.T, frameType string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-fb.frames:
			if f["type"] == frameType {
				return f
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %q frame", frameType)
			return nil
		}
	}
}

type staticCreds struct {
	cred *credential.Credential
}

func (s staticCreds) Load() (*credential.Credential, error) {
	if s.cred == nil {
		return nil, credential.ErrNotFound
	}
	return s.cred, nil
}

var testCred = &credential.Credential{ID: "u1", Token: "tok-1", Username: "alice"}

func newTestManager(t *testing.T, url string, creds credential.Source, hb time.Duration) (*Manager, *bus.Bus) {
	t.Helper()
	b := bus.New()
	m := NewManager(Options{URL: url, HeartbeatInterval: hb, DialTimeout: time.Second},
		creds, status.NewMachine(b), NewRouter(b, nil), nil)
	t.Cleanup(m.Disconnect)
	return m, b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
