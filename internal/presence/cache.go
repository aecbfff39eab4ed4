package presence

import (
	"context"

	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/protocol"
	"github.com/matheus3301/tabsync/internal/realtime"
	"github.com/matheus3301/tabsync/internal/store"
	"go.uber.org/zap"
)

// Cache persists friend presence received over the realtime connection.
// It subscribes to "presence." events on the bus.
type Cache struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCache creates a friend presence cache.
func NewCache(db *store.DB, b *bus.Bus, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{db: db, bus: b, logger: logger}
}

// Start subscribes to friend presence events.
func (c *Cache) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	ch, unsub := c.bus.Subscribe("presence.", 256)

	go func() {
		defer close(c.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				c.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the cache.
func (c *Cache) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

func (c *Cache) handleEvent(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case realtime.FriendTabs:
		if err := c.db.UpsertFriendTabs(p.FriendID, toRefs(p.Tabs)); err != nil {
			c.logger.Error("failed to store friend tabs", zap.Error(err), zap.String("friend_id", p.FriendID))
		}
	case realtime.FriendActiveTab:
		if err := c.db.UpsertFriendActiveTab(p.FriendID, toRef(p.Tab)); err != nil {
			c.logger.Error("failed to store friend active tab", zap.Error(err), zap.String("friend_id", p.FriendID))
		}
	}
}

// Seed replaces the cache with a friends-with-status snapshot. Tab data is
// kept only for friends reported online.
func (c *Cache) Seed(friends []store.FriendPresence) error {
	if err := c.db.ReplaceFriends(friends); err != nil {
		return err
	}
	c.logger.Info("friend presence seeded", zap.Int("friends", len(friends)))
	return nil
}

// Friends lists cached friend presence.
func (c *Cache) Friends() ([]store.FriendPresence, error) {
	return c.db.ListFriendPresence()
}

// Clear drops all cached presence.
func (c *Cache) Clear() error {
	return c.db.ClearFriendPresence()
}

func toRef(t protocol.Tab) store.TabRef {
	return store.TabRef{ID: t.ID, Title: t.Title, URL: t.URL}
}

func toRefs(tabs []protocol.Tab) []store.TabRef {
	out := make([]store.TabRef, 0, len(tabs))
	for _, t := range tabs {
		out = append(out, toRef(t))
	}
	return out
}
