package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/protocol"
)

type recordingSender struct {
	mu        sync.Mutex
	connected bool
	frames    []any
}

func (s *recordingSender) Send(_ context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, v)
	return nil
}

func (s *recordingSender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *recordingSender) sent() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.frames...)
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

func newTestPublisher(t *testing.T, connected bool, cred *credential.Credential) (*Publisher, *Tracker, *bus.Bus, *recordingSender) {
	t.Helper()
	b := bus.New()
	tr := NewTracker()
	s := &recordingSender{connected: connected}
	p := NewPublisher(tr, s, staticCreds{cred}, b, nil)
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	return p, tr, b, s
}

// emit applies ev to the tracker and announces it, the way the browser host does.
func emit(tr *Tracker, b *bus.Bus, ev TabEvent) {
	tr.Apply(ev)
	b.Publish(bus.Event{Kind: ev.Kind, Payload: ev})
}

func waitFrames(t *testing.T, s *recordingSender, n int) []any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f := s.sent(); len(f) >= n {
			// Let any extra frames land so callers can assert exact counts.
			time.Sleep(30 * time.Millisecond)
			return s.sent()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d frames, got %d", n, len(s.sent()))
	return nil
}

func allTabsFrames(frames []any) []protocol.AllTabsUpdate {
	var out []protocol.AllTabsUpdate
	for _, f := range frames {
		if u, ok := f.(protocol.AllTabsUpdate); ok {
			out = append(out, u)
		}
	}
	return out
}

var alice = &credential.Credential{ID: "u1", Token: "tok"}

func TestTabCreateEmitsOneFullInventory(t *testing.T) {
	_, tr, b, s := newTestPublisher(t, true, alice)

	tr.Apply(TabEvent{Kind: bus.KindTabSnapshot, Tabs: []Tab{
		{ID: 1, WindowID: 1, Title: "A"},
		{ID: 2, WindowID: 1, Title: "B"},
	}})
	emit(tr, b, TabEvent{Kind: bus.KindTabCreated, Tab: Tab{ID: 3, WindowID: 1, Title: "C"}})

	frames := allTabsFrames(waitFrames(t, s, 1))
	if len(frames) != 1 {
		t.Fatalf("got %d all_tabs_update frames, want exactly 1", len(frames))
	}
	got := frames[0]
	if got.UserID != "u1" || len(got.Tabs) != 3 {
		t.Fatalf("frame = %+v, want userId u1 with 3 tabs", got)
	}
	for i, title := range []string{"A", "B", "C"} {
		if got.Tabs[i].Title != title {
			t.Errorf("tabs[%d] = %q, want %q", i, got.Tabs[i].Title, title)
		}
	}
}

func TestEventRouting(t *testing.T) {
	tests := []struct {
		name       string
		ev         TabEvent
		wantAll    int
		wantActive int
	}{
		{"removed", TabEvent{Kind: bus.KindTabRemoved, TabID: 2}, 1, 0},
		{"updated loading", TabEvent{Kind: bus.KindTabUpdated, Tab: Tab{ID: 1, WindowID: 1}, Status: "loading"}, 0, 0},
		{"updated complete", TabEvent{Kind: bus.KindTabUpdated, Tab: Tab{ID: 1, WindowID: 1}, Status: StatusComplete}, 1, 1},
		{"activated", TabEvent{Kind: bus.KindTabActivated, TabID: 1, WindowID: 1}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, tr, b, s := newTestPublisher(t, true, alice)
			tr.Apply(TabEvent{Kind: bus.KindTabSnapshot, Tabs: []Tab{{ID: 1, WindowID: 1}, {ID: 2, WindowID: 1}}, TabID: 1, WindowID: 1})

			emit(tr, b, tt.ev)
			// A trailing activation marks the end of this event's frames.
			emit(tr, b, TabEvent{Kind: bus.KindTabActivated, TabID: 1, WindowID: 1})
			frames := waitFrames(t, s, tt.wantAll+tt.wantActive+1)

			var all, active int
			for _, f := range frames {
				switch f.(type) {
				case protocol.AllTabsUpdate:
					all++
				case protocol.ActiveTabUpdate:
					active++
				}
			}
			if all != tt.wantAll || active != tt.wantActive+1 {
				t.Errorf("all=%d active=%d, want all=%d active=%d", all, active, tt.wantAll, tt.wantActive+1)
			}
		})
	}
}

func TestPublishIsNoopWhenNotReady(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		cred      *credential.Credential
	}{
		{"disconnected", false, alice},
		{"no credential", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, tr, _, s := newTestPublisher(t, tt.connected, tt.cred)
			tr.Apply(TabEvent{Kind: bus.KindTabSnapshot, Tabs: []Tab{{ID: 1, WindowID: 1}}, TabID: 1, WindowID: 1})

			if err := p.PublishAllTabs(context.Background()); err != nil {
				t.Errorf("PublishAllTabs() error = %v", err)
			}
			if err := p.PublishActiveTab(context.Background()); err != nil {
				t.Errorf("PublishActiveTab() error = %v", err)
			}
			if n := len(s.sent()); n != 0 {
				t.Errorf("sent %d frames, want 0", n)
			}
		})
	}
}

func TestPublishActiveTabOnDemand(t *testing.T) {
	p, tr, _, s := newTestPublisher(t, true, alice)
	tr.Apply(TabEvent{Kind: bus.KindTabSnapshot, Tabs: []Tab{{ID: 5, WindowID: 1, Title: "Docs", URL: "https://docs"}}, TabID: 5, WindowID: 1})

	if err := p.PublishActiveTab(context.Background()); err != nil {
		t.Fatal(err)
	}
	frames := s.sent()
	if len(frames) != 1 {
		t.Fatalf("sent %d frames, want 1", len(frames))
	}
	u := frames[0].(protocol.ActiveTabUpdate)
	if u.Tab.ID != 5 || u.Tab.UserID != "u1" || u.Tab.URL != "https://docs" {
		t.Errorf("frame = %+v", u)
	}
}
