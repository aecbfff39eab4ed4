package views

import (
	"fmt"
	"strconv"

	"github.com/matheus3301/tabsync/internal/store"
	"github.com/matheus3301/tabsync/internal/tui/ui"
	"github.com/rivo/tview"
)

// FriendsTable lists friends with what they are browsing.
type FriendsTable struct {
	*tview.Table
	theme   *ui.Theme
	friends []store.FriendPresence
}

// NewFriendsTable creates the friends presence table.
func NewFriendsTable(theme *ui.Theme) *FriendsTable {
	table := tview.NewTable()
	theme.Table(table, "Friends")
	return &FriendsTable{Table: table, theme: theme}
}

// Update re-renders the table, online friends first.
func (ft *FriendsTable) Update(friends []store.FriendPresence) {
	ft.friends = SortFriends(friends)
	ft.Clear()
	ft.theme.Header(ft.Table, "Friend", "Status", "Active tab", "Tabs")

	for i, f := range ft.friends {
		row := i + 1
		name := f.DisplayName
		if name == "" {
			name = f.Username
		}
		if name == "" {
			name = f.FriendID
		}
		state, color := "offline", ft.theme.OfflineColor
		if f.Online {
			state, color = "online", ft.theme.OnlineColor
		} else if f.LastSeen != "" {
			state = "seen " + f.LastSeen
		}
		active := ""
		if f.ActiveTab != nil {
			active = TabLabel(f.ActiveTab.Title, f.ActiveTab.URL)
		}

		ft.SetCell(row, 0, tview.NewTableCell(" "+clean(name)).SetMaxWidth(24).SetExpansion(1))
		ft.SetCell(row, 1, tview.NewTableCell(" "+state).SetTextColor(color).SetMaxWidth(24))
		ft.SetCell(row, 2, tview.NewTableCell(" "+clean(active)).SetExpansion(3))
		ft.SetCell(row, 3, tview.NewTableCell(" "+strconv.Itoa(len(f.Tabs))).SetAlign(tview.AlignRight))
	}
}

// SelectedFriend returns the friend under the cursor.
func (ft *FriendsTable) SelectedFriend() (store.FriendPresence, bool) {
	row, _ := ft.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(ft.friends) {
		return store.FriendPresence{}, false
	}
	return ft.friends[idx], true
}

// TabLabel renders a tab as its title, falling back to the URL.
func TabLabel(title, url string) string {
	if title == "" {
		return url
	}
	if url == "" {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, url)
}
