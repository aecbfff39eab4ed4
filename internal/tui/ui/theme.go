package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TableHeaderFg    tcell.Color
	TableCursorFg    tcell.Color
	TableCursorBg    tcell.Color
	TitleColor       tcell.Color
	OnlineColor      tcell.Color
	OfflineColor     tcell.Color
	UnreadColor      tcell.Color
	FlashInfoColor   tcell.Color
	FlashErrColor    tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TableHeaderFg:    tcell.ColorWhite,
		TableCursorFg:    tcell.ColorBlack,
		TableCursorBg:    tcell.ColorAqua,
		TitleColor:       tcell.ColorFuchsia,
		OnlineColor:      tcell.ColorLimeGreen,
		OfflineColor:     tcell.ColorGray,
		UnreadColor:      tcell.ColorOrange,
		FlashInfoColor:   tcell.ColorNavajoWhite,
		FlashErrColor:    tcell.ColorOrangeRed,
	}
}

// Table applies the theme to a selectable table with a fixed header row.
func (t *Theme) Table(table *tview.Table, title string) {
	table.SetSelectable(true, false).SetBorders(false).SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(t.BorderColor)
	table.SetBackgroundColor(t.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.Foreground(t.TableCursorFg).Background(t.TableCursorBg))
	table.SetTitle(" " + title + " ")
	table.SetTitleColor(t.TitleColor)
}

// Header writes a header row to table.
func (t *Theme) Header(table *tview.Table, cols ...string) {
	for i, c := range cols {
		table.SetCell(0, i, tview.NewTableCell(" "+c).
			SetSelectable(false).
			SetTextColor(t.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}
}
