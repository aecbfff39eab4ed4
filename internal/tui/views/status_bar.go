package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/tabsync/internal/api"
	"github.com/rivo/tview"
)

// StatusBar displays the session, connection state and the latest flash.
type StatusBar struct {
	*tview.TextView
	session string
	status  *api.StatusResponse
	hints   []string
	flash   string
	flashOK bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar(session string) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	sb := &StatusBar{TextView: tv, session: session}
	sb.render()
	return sb
}

// SetStatus updates the connection display.
func (sb *StatusBar) SetStatus(st *api.StatusResponse) {
	sb.status = st
	sb.render()
}

// SetHints shows the key hints of the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message; errors render red.
func (sb *StatusBar) SetFlash(msg string, isErr bool) {
	sb.flash = msg
	sb.flashOK = !isErr
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, StatusLine(sb.session, sb.status, time.Now())+sb.tail())
}

func (sb *StatusBar) tail() string {
	var b strings.Builder
	if len(sb.hints) > 0 {
		b.WriteString(" | [::d]" + strings.Join(sb.hints, " ") + "[-:-:-]")
	}
	if sb.flash != "" {
		color := "red"
		if sb.flashOK {
			color = "yellow"
		}
		b.WriteString(" | [" + color + "]" + clean(sb.flash) + "[-]")
	}
	return b.String()
}

// StatusLine renders the fixed part of the status bar.
func StatusLine(session string, st *api.StatusResponse, now time.Time) string {
	state, user := "[gray]no daemon[-]", "logged out"
	if st != nil {
		switch {
		case st.Connected:
			state = "[green]" + st.State + "[-]"
		case st.State != "":
			state = "[red]" + st.State + "[-]"
		}
		if st.LoggedIn {
			user = clean(st.Username)
		}
	}
	return fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s | %s", clean(session), user, state, now.Format("15:04"))
}
