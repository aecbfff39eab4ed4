package keys

import (
	"slices"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestPageBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'r', Description: "r:refresh", Visible: true, Handler: func() { got = "global" }})
	r.AddPage("chat", &Action{Key: tcell.KeyRune, Rune: 'r', Description: "r:reply", Visible: true, Handler: func() { got = "page" }})

	if !r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)) || got != "page" {
		t.Errorf("chat page: got %q, want page", got)
	}
	if !r.HandleEvent("friends", tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)) || got != "global" {
		t.Errorf("friends page: got %q, want global", got)
	}
	if r.HandleEvent("friends", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unbound key should not match")
	}
}

func TestSpecialKeyMatch(t *testing.T) {
	a := &Action{Key: tcell.KeyEnter}
	if !a.Matches(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)) {
		t.Error("enter should match")
	}
	if a.Matches(tcell.NewEventKey(tcell.KeyRune, 'e', tcell.ModNone)) {
		t.Error("rune should not match a special key")
	}
}

func TestHintsOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Description: "q:quit", Visible: true})
	r.AddGlobal(&Action{Description: "hidden"})
	r.AddPage("chats", &Action{Description: "enter:open", Visible: true})

	want := []string{"enter:open", "q:quit"}
	if got := r.Hints("chats"); !slices.Equal(got, want) {
		t.Errorf("Hints = %v, want %v", got, want)
	}
}
