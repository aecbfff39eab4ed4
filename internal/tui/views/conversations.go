package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the inbox table.
type ConversationList struct {
	*tview.Table
	theme *ui.Theme
	convs []backend.Conversation
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable()
	theme.Table(table, "Conversations")
	return &ConversationList{Table: table, theme: theme}
}

// Update refreshes the list.
func (cl *ConversationList) Update(convs []backend.Conversation, selfID string) {
	cl.convs = convs
	cl.Clear()
	cl.theme.Header(cl.Table, "Name", "Last Message", "Time")

	for i, c := range convs {
		row := i + 1
		name := clean(c.Title(selfID))
		if c.Status == backend.Pending {
			name += " (request)"
		}
		nameCell := tview.NewTableCell(" " + name).SetMaxWidth(30).SetExpansion(1)
		if c.UnreadCount > 0 {
			nameCell.SetText(fmt.Sprintf(" * %s (%d)", name, c.UnreadCount)).SetTextColor(cl.theme.UnreadColor)
		}

		preview, ts := "", ""
		if last := c.Conversation.LastMessage; last != nil {
			preview = clean(last.Content)
			ts = formatTimestamp(last.CreatedAt)
		}
		cl.SetCell(row, 0, nameCell)
		cl.SetCell(row, 1, tview.NewTableCell(" "+preview).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+ts).SetMaxWidth(12))
	}
}

// Selected returns the conversation under the cursor.
func (cl *ConversationList) Selected() (backend.Conversation, bool) {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(cl.convs) {
		return backend.Conversation{}, false
	}
	return cl.convs[idx], true
}

func formatTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
