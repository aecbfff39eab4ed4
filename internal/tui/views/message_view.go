package views

import (
	"fmt"

	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageView displays messages for a single conversation.
type MessageView struct {
	*tview.TextView
}

// NewMessageView creates a new message view.
func NewMessageView(theme *ui.Theme) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	tv.SetBorderColor(theme.BorderColor)
	tv.SetTitleColor(theme.TitleColor)
	return &MessageView{TextView: tv}
}

// SetConversationName updates the title.
func (mv *MessageView) SetConversationName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", clean(name)))
}

// Update renders msgs oldest first.
func (mv *MessageView) Update(msgs []backend.Message, selfID string) {
	mv.Clear()
	for _, m := range msgs {
		sender := m.Sender.Name()
		if sender == "" {
			sender = m.SenderID
		}
		if m.SenderID == selfID {
			sender = "You"
		}
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s %s[-:-:-]\n%s\n\n",
			clean(sender),
			formatTimestamp(m.CreatedAt),
			deliveryMark(m.Status),
			clean(m.Content))
		_, _ = fmt.Fprint(mv, line)
	}
	mv.ScrollToEnd()
}

func deliveryMark(s backend.DeliveryStatus) string {
	switch s {
	case backend.Sending:
		return "…"
	case backend.Seen:
		return "✓✓"
	case backend.Delivered, backend.Sent:
		return "✓"
	}
	return ""
}
