package presence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/protocol"
	"github.com/matheus3301/tabsync/internal/realtime"
	"github.com/matheus3301/tabsync/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCacheStoresFriendEvents(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	c := NewCache(db, b, nil)
	c.Start(context.Background())
	defer c.Stop()

	b.Publish(bus.Event{Kind: bus.KindFriendTabUpdate, Payload: realtime.FriendTabs{
		FriendID: "f1",
		Tabs:     []protocol.Tab{{ID: 1, Title: "A", URL: "https://a"}},
	}})
	b.Publish(bus.Event{Kind: bus.KindFriendActiveTabUpdate, Payload: realtime.FriendActiveTab{
		FriendID: "f1",
		Tab:      protocol.Tab{ID: 1, Title: "A", URL: "https://a"},
	}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f, err := db.GetFriendPresence("f1")
		if err != nil {
			t.Fatal(err)
		}
		if f != nil && f.ActiveTab != nil && len(f.Tabs) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("friend presence not cached")
}

func TestCacheSeedAndClear(t *testing.T) {
	db := testDB(t)
	c := NewCache(db, bus.New(), nil)

	if err := c.Seed([]store.FriendPresence{
		{FriendID: "f1", Username: "bob", Online: true, Tabs: []store.TabRef{{ID: 1}}},
		{FriendID: "f2", Username: "carol"},
	}); err != nil {
		t.Fatal(err)
	}
	friends, err := c.Friends()
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 2 {
		t.Fatalf("got %d friends, want 2", len(friends))
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	friends, _ = c.Friends()
	if len(friends) != 0 {
		t.Errorf("got %d friends after Clear, want 0", len(friends))
	}
}
