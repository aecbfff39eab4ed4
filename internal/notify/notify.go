// Package notify turns incoming chat messages into user notifications.
package notify

import (
	"context"
	"unicode/utf8"

	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/credential"
	"go.uber.org/zap"
)

const maxBodyRunes = 80

// Notification is the payload of notify.message. Rendering it is up to the
// consumer (browser extension, terminal UI).
type Notification struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Body           string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// Notifier subscribes to chat.new_message and publishes notify.message for
// messages sent by someone other than the current user.
type Notifier struct {
	creds  credential.Source
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a notifier.
func New(creds credential.Source, b *bus.Bus, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{creds: creds, bus: b, logger: logger}
}

// Start subscribes to new messages.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	ch, unsub := n.bus.Subscribe(bus.KindNewMessage, 64)

	go func() {
		defer close(n.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if msg, ok := evt.Payload.(backend.Message); ok {
					n.Handle(msg)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
}

// Handle publishes a notification for msg unless the user sent it or is
// logged out.
func (n *Notifier) Handle(msg backend.Message) {
	cred, err := n.creds.Load()
	if err != nil || msg.SenderID == cred.ID {
		return
	}
	note := Build(msg)
	n.bus.Publish(bus.Event{Kind: bus.KindNotification, Payload: note})
	n.logger.Debug("notification published", zap.String("id", note.ID))
}

// Build renders msg as a notification.
func Build(msg backend.Message) Notification {
	sender := msg.Sender.Name()
	if sender == "" {
		sender = msg.SenderID
	}
	return Notification{
		ID:             "message-" + msg.ID,
		Title:          "New message \n" + sender,
		Body:           Truncate(msg.Content, maxBodyRunes),
		ConversationID: msg.ConversationID,
	}
}

// Truncate cuts s to limit runes and appends "..." when it was longer.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
