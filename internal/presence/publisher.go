package presence

import (
	"context"
	"fmt"

	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/protocol"
	"go.uber.org/zap"
)

// Sender writes frames on the realtime connection.
type Sender interface {
	Send(ctx context.Context, v any) error
	IsConnected() bool
}

// Publisher turns local tab changes into outbound presence frames. Frames
// are never queued: while disconnected or logged out, publishing does nothing.
type Publisher struct {
	tracker *Tracker
	sender  Sender
	creds   credential.Source
	bus     *bus.Bus
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPublisher creates a presence publisher.
func NewPublisher(tracker *Tracker, sender Sender, creds credential.Source, b *bus.Bus, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		tracker: tracker,
		sender:  sender,
		creds:   creds,
		bus:     b,
		logger:  logger,
	}
}

// Start subscribes to tab events on the bus. Events are handled one at a
// time in publish order.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	ch, unsub := p.bus.Subscribe("tab.", 256)

	go func() {
		defer close(p.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				p.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription.
func (p *Publisher) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Publisher) handleEvent(ctx context.Context, evt bus.Event) {
	var all, active bool
	switch evt.Kind {
	case bus.KindTabSnapshot:
		all, active = true, true
	case bus.KindTabCreated, bus.KindTabRemoved:
		all = true
	case bus.KindTabUpdated:
		if ev, ok := evt.Payload.(TabEvent); ok && ev.Status == StatusComplete {
			all, active = true, true
		}
	case bus.KindTabActivated, bus.KindWindowFocused:
		active = true
	}

	if all {
		if err := p.PublishAllTabs(ctx); err != nil {
			p.logger.Warn("publish all tabs failed", zap.Error(err))
		}
	}
	if active {
		if err := p.PublishActiveTab(ctx); err != nil {
			p.logger.Warn("publish active tab failed", zap.Error(err))
		}
	}
}

// PublishAllTabs sends the full tab inventory.
func (p *Publisher) PublishAllTabs(ctx context.Context) error {
	userID, ok := p.ready()
	if !ok {
		return nil
	}
	tabs := p.tracker.Tabs()
	wire := make([]protocol.Tab, 0, len(tabs))
	for _, t := range tabs {
		wire = append(wire, t.Wire())
	}
	if err := p.sender.Send(ctx, protocol.NewAllTabsUpdate(userID, wire)); err != nil {
		return fmt.Errorf("send all_tabs_update: %w", err)
	}
	p.logger.Debug("published all tabs", zap.Int("tabs", len(wire)))
	return nil
}

// PublishActiveTab sends the focused tab. It returns once the frame is
// written, so callers can sequence follow-up work after it.
func (p *Publisher) PublishActiveTab(ctx context.Context) error {
	userID, ok := p.ready()
	if !ok {
		return nil
	}
	tab, ok := p.tracker.ActiveTab()
	if !ok {
		return nil
	}
	if err := p.sender.Send(ctx, protocol.NewActiveTabUpdate(userID, tab.Wire())); err != nil {
		return fmt.Errorf("send active_tab_update: %w", err)
	}
	p.logger.Debug("published active tab", zap.Int("tab_id", tab.ID))
	return nil
}

func (p *Publisher) ready() (string, bool) {
	if !p.sender.IsConnected() {
		return "", false
	}
	cred, err := p.creds.Load()
	if err != nil || cred.ID == "" {
		return "", false
	}
	return cred.ID, true
}
