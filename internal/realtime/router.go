package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/protocol"
	"go.uber.org/zap"
)

// HandlerFunc handles one parsed inbound frame.
type HandlerFunc func(ctx context.Context, in protocol.Inbound) error

// FriendTabs is the bus payload for presence.friend_tab_update.
type FriendTabs struct {
	FriendID string         `json:"friendId"`
	Tabs     []protocol.Tab `json:"tabs"`
}

// FriendActiveTab is the bus payload for presence.friend_active_tab_update.
type FriendActiveTab struct {
	FriendID string       `json:"friendId"`
	Tab      protocol.Tab `json:"tab"`
}

// Router demultiplexes inbound frames by type tag. Handlers run in
// registration order on the reading goroutine, so frames are processed in
// arrival order. A failing or panicking handler is logged and does not stop
// the remaining handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates a router that re-emits friend presence frames on b.
func NewRouter(b *bus.Bus, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		handlers: make(map[string][]HandlerFunc),
		logger:   logger,
	}
	if b != nil {
		r.Handle(protocol.TypeFriendTabUpdate, func(_ context.Context, in protocol.Inbound) error {
			b.Publish(bus.Event{
				Kind:    bus.KindFriendTabUpdate,
				Payload: FriendTabs{FriendID: in.FriendID, Tabs: in.Tabs},
			})
			return nil
		})
		r.Handle(protocol.TypeFriendActiveTabUpdate, func(_ context.Context, in protocol.Inbound) error {
			b.Publish(bus.Event{
				Kind:    bus.KindFriendActiveTabUpdate,
				Payload: FriendActiveTab{FriendID: in.FriendID, Tab: *in.Tab},
			})
			return nil
		})
	}
	return r
}

// Handle registers h for frames tagged frameType.
func (r *Router) Handle(frameType string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[frameType] = append(r.handlers[frameType], h)
}

// Dispatch parses data and delivers it to every handler registered for its
// type. Malformed frames are logged and dropped.
func (r *Router) Dispatch(ctx context.Context, data []byte) {
	in, err := protocol.Parse(data)
	if err != nil {
		r.logger.Warn("dropping malformed frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}

	r.mu.RLock()
	handlers := r.handlers[in.Type]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.Debug("no handler for frame", zap.String("type", in.Type))
		return
	}
	for _, h := range handlers {
		if err := r.invoke(ctx, h, in); err != nil {
			r.logger.Warn("frame handler failed", zap.String("type", in.Type), zap.Error(err))
		}
	}
}

func (r *Router) invoke(ctx context.Context, h HandlerFunc, in protocol.Inbound) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, in)
}
