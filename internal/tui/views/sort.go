package views

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matheus3301/tabsync/internal/store"
)

// SortFriends orders online friends first, then by name.
func SortFriends(friends []store.FriendPresence) []store.FriendPresence {
	out := slices.Clone(friends)
	slices.SortStableFunc(out, func(a, b store.FriendPresence) int {
		if a.Online != b.Online {
			if a.Online {
				return -1
			}
			return 1
		}
		return cmp.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
	return out
}
