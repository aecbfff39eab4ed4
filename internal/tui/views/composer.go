package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const historySize = 50

// Composer is the message input line. Up and Down walk through what was
// sent earlier in this session.
type Composer struct {
	*tview.InputField
	onSend  func(text string)
	history []string
	cursor  int
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	c := &Composer{
		InputField: tview.NewInputField().
			SetLabel(" > ").
			SetPlaceholder("press i to write, Enter to send").
			SetFieldWidth(0),
	}
	c.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			c.submit()
		}
	})
	c.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp:
			c.recall(-1)
			return nil
		case tcell.KeyDown:
			c.recall(1)
			return nil
		}
		return ev
	})
	return c
}

// SetOnSend sets the callback when a message is sent.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

func (c *Composer) submit() {
	text := strings.TrimSpace(c.GetText())
	if text == "" || c.onSend == nil {
		return
	}
	c.onSend(text)
	c.history = append(c.history, text)
	if len(c.history) > historySize {
		c.history = c.history[1:]
	}
	c.cursor = len(c.history)
	c.SetText("")
}

func (c *Composer) recall(step int) {
	next := c.cursor + step
	switch {
	case next < 0 || len(c.history) == 0:
		return
	case next >= len(c.history):
		c.cursor = len(c.history)
		c.SetText("")
	default:
		c.cursor = next
		c.SetText(c.history[next])
	}
}
