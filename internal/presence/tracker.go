// Package presence tracks local browser tabs, publishes them to the backend
// and caches what friends are browsing.
package presence

import (
	"slices"
	"sync"

	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/protocol"
)

// StatusComplete is the tab status reported once a page finished loading.
const StatusComplete = "complete"

// Tab is one open browser tab.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Status   string `json:"status,omitempty"`
}

// Wire converts t to its protocol form.
func (t Tab) Wire() protocol.Tab {
	return protocol.Tab{ID: t.ID, Title: t.Title, URL: t.URL}
}

// TabEvent is a browser tab lifecycle change. Kind is one of the bus "tab."
// kinds; the other fields are set as the kind requires.
type TabEvent struct {
	Kind     string
	Tab      Tab
	Tabs     []Tab
	TabID    int
	WindowID int
	Status   string
}

// Tracker is the local tab inventory, kept current by Apply.
type Tracker struct {
	mu       sync.RWMutex
	tabs     map[int]Tab
	active   map[int]int // window id -> tab id
	focused  int
	hasFocus bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		tabs:   make(map[int]Tab),
		active: make(map[int]int),
	}
}

// Apply folds one tab event into the inventory.
func (t *Tracker) Apply(ev TabEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Kind {
	case bus.KindTabSnapshot:
		t.tabs = make(map[int]Tab, len(ev.Tabs))
		t.active = make(map[int]int)
		for _, tab := range ev.Tabs {
			t.tabs[tab.ID] = tab
		}
		if _, ok := t.tabs[ev.TabID]; ok {
			w := ev.WindowID
			if w == 0 {
				w = t.tabs[ev.TabID].WindowID
			}
			t.active[w] = ev.TabID
			t.focus(w)
		}
	case bus.KindTabCreated:
		t.tabs[ev.Tab.ID] = ev.Tab
		if !t.hasFocus {
			t.focus(ev.Tab.WindowID)
		}
	case bus.KindTabUpdated:
		tab := ev.Tab
		if ev.Status != "" {
			tab.Status = ev.Status
		}
		t.tabs[tab.ID] = tab
	case bus.KindTabRemoved:
		if tab, ok := t.tabs[ev.TabID]; ok {
			if t.active[tab.WindowID] == ev.TabID {
				delete(t.active, tab.WindowID)
			}
			delete(t.tabs, ev.TabID)
		}
	case bus.KindTabActivated:
		w := ev.WindowID
		if tab, ok := t.tabs[ev.TabID]; ok && w == 0 {
			w = tab.WindowID
		}
		t.active[w] = ev.TabID
		if !t.hasFocus {
			t.focus(w)
		}
	case bus.KindWindowFocused:
		// Browsers report a negative id when no window has focus.
		if ev.WindowID >= 0 {
			t.focus(ev.WindowID)
		}
	}
}

func (t *Tracker) focus(windowID int) {
	t.focused = windowID
	t.hasFocus = true
}

// Tabs returns every open tab ordered by id.
func (t *Tracker) Tabs() []Tab {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Tab, 0, len(t.tabs))
	for _, tab := range t.tabs {
		out = append(out, tab)
	}
	slices.SortFunc(out, func(a, b Tab) int { return a.ID - b.ID })
	return out
}

// ActiveTab returns the active tab of the focused window.
func (t *Tracker) ActiveTab() (Tab, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.hasFocus {
		return Tab{}, false
	}
	id, ok := t.active[t.focused]
	if !ok {
		return Tab{}, false
	}
	tab, ok := t.tabs[id]
	return tab, ok
}
