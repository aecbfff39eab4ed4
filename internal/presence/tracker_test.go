package presence

import (
	"testing"

	"github.com/matheus3301/tabsync/internal/bus"
)

func TestTrackerSnapshotAndActive(t *testing.T) {
	tr := NewTracker()
	tr.Apply(TabEvent{
		Kind: bus.KindTabSnapshot,
		Tabs: []Tab{
			{ID: 3, WindowID: 1, Title: "C"},
			{ID: 1, WindowID: 1, Title: "A"},
			{ID: 2, WindowID: 2, Title: "B"},
		},
		TabID:    3,
		WindowID: 1,
	})

	tabs := tr.Tabs()
	if len(tabs) != 3 || tabs[0].ID != 1 || tabs[2].ID != 3 {
		t.Errorf("Tabs() = %+v, want ids 1,2,3", tabs)
	}
	active, ok := tr.ActiveTab()
	if !ok || active.ID != 3 {
		t.Errorf("ActiveTab() = %+v, %v, want tab 3", active, ok)
	}
}

func TestTrackerFocusFollowsWindow(t *testing.T) {
	tr := NewTracker()
	tr.Apply(TabEvent{Kind: bus.KindTabCreated, Tab: Tab{ID: 1, WindowID: 10}})
	tr.Apply(TabEvent{Kind: bus.KindTabCreated, Tab: Tab{ID: 2, WindowID: 20}})
	tr.Apply(TabEvent{Kind: bus.KindTabActivated, TabID: 1, WindowID: 10})
	tr.Apply(TabEvent{Kind: bus.KindTabActivated, TabID: 2, WindowID: 20})

	if a, _ := tr.ActiveTab(); a.ID != 1 {
		t.Errorf("active = %d, want 1 (window 10 focused first)", a.ID)
	}

	tr.Apply(TabEvent{Kind: bus.KindWindowFocused, WindowID: 20})
	if a, _ := tr.ActiveTab(); a.ID != 2 {
		t.Errorf("active = %d after focusing window 20, want 2", a.ID)
	}

	tr.Apply(TabEvent{Kind: bus.KindWindowFocused, WindowID: -1})
	if a, _ := tr.ActiveTab(); a.ID != 2 {
		t.Errorf("no-window focus changed active tab to %d", a.ID)
	}
}

func TestTrackerUpdateAndRemove(t *testing.T) {
	tr := NewTracker()
	tr.Apply(TabEvent{Kind: bus.KindTabCreated, Tab: Tab{ID: 1, WindowID: 1, URL: "about:blank"}})
	tr.Apply(TabEvent{Kind: bus.KindTabActivated, TabID: 1, WindowID: 1})
	tr.Apply(TabEvent{Kind: bus.KindTabUpdated, Tab: Tab{ID: 1, WindowID: 1, URL: "https://go.dev", Title: "Go"}, Status: StatusComplete})

	a, ok := tr.ActiveTab()
	if !ok || a.URL != "https://go.dev" || a.Status != StatusComplete {
		t.Errorf("active = %+v, want updated tab", a)
	}

	tr.Apply(TabEvent{Kind: bus.KindTabRemoved, TabID: 1})
	if len(tr.Tabs()) != 0 {
		t.Errorf("Tabs() = %+v after remove", tr.Tabs())
	}
	if _, ok := tr.ActiveTab(); ok {
		t.Error("removed tab still active")
	}

	// Unknown ids are ignored.
	tr.Apply(TabEvent{Kind: bus.KindTabRemoved, TabID: 99})
}
