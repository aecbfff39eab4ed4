package model

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/tabsync/internal/api"
	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/chat"
	"github.com/matheus3301/tabsync/internal/store"
)

type fakeDaemon struct {
	status  api.StatusResponse
	friends []store.FriendPresence
	sent    []api.SendMessageRequest
	events  []*api.Event
}

func (f *fakeDaemon) Status(context.Context) (*api.StatusResponse, error) {
	s := f.status
	return &s, nil
}

func (f *fakeDaemon) Login(_ context.Context, identifier, _ string) (*api.LoginResponse, error) {
	f.status.LoggedIn = true
	return &api.LoginResponse{UserID: "u1", Username: identifier}, nil
}

func (f *fakeDaemon) Logout(context.Context) (*api.Ack, error) {
	f.status.LoggedIn = false
	return &api.Ack{Success: true}, nil
}

func (f *fakeDaemon) PublishActiveTab(context.Context) (*api.Ack, error) {
	return &api.Ack{Success: true}, nil
}

func (f *fakeDaemon) ListFriends(context.Context, bool) (*api.ListFriendsResponse, error) {
	return &api.ListFriendsResponse{Friends: f.friends}, nil
}

func (f *fakeDaemon) ListConversations(context.Context, bool) (*api.ListConversationsResponse, error) {
	return &api.ListConversationsResponse{Result: chat.Result{Success: true}}, nil
}

func (f *fakeDaemon) LoadMessages(_ context.Context, id string, _ bool) (*api.LoadMessagesResponse, error) {
	return &api.LoadMessagesResponse{
		Result:   chat.Result{Success: true},
		Messages: []backend.Message{{ID: "m1", ConversationID: id}},
	}, nil
}

func (f *fakeDaemon) SendMessage(_ context.Context, req api.SendMessageRequest) (*chat.Result, error) {
	f.sent = append(f.sent, req)
	return &chat.Result{Success: false, Message: "Conversation not accepted"}, nil
}

func (f *fakeDaemon) Watch(_ context.Context, _ []string, fn func(*api.Event) error) error {
	for _, e := range f.events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func event(t *testing.T, typ string, payload any) *api.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &api.Event{Type: typ, Payload: data}
}

func TestApplyFriendUpdates(t *testing.T) {
	d := &fakeDaemon{friends: []store.FriendPresence{{FriendID: "f1", Username: "bob"}}}
	vm := NewViewModel(d)
	if err := vm.LoadFriends(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	c := vm.Apply(event(t, api.EventFriendTabUpdate, map[string]any{
		"friendId": "f1",
		"tabs":     []map[string]any{{"id": 3, "title": "Go", "url": "https://go.dev"}},
	}))
	if c != ChangeFriends {
		t.Fatalf("change = %v, want ChangeFriends", c)
	}
	vm.Apply(event(t, api.EventFriendActiveTabUpdate, map[string]any{
		"friendId": "f2",
		"tab":      map[string]any{"id": 9, "title": "News", "url": "https://n"},
	}))

	friends := vm.Friends()
	if len(friends) != 2 {
		t.Fatalf("friends = %+v", friends)
	}
	if !friends[0].Online || len(friends[0].Tabs) != 1 || friends[0].Tabs[0].Title != "Go" {
		t.Errorf("f1 = %+v", friends[0])
	}
	if friends[1].FriendID != "f2" || friends[1].ActiveTab == nil || friends[1].ActiveTab.ID != 9 {
		t.Errorf("f2 = %+v", friends[1])
	}
}

func TestApplyConnectionState(t *testing.T) {
	d := &fakeDaemon{status: api.StatusResponse{State: "DISCONNECTED"}}
	vm := NewViewModel(d)
	if err := vm.LoadStatus(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c := vm.Apply(event(t, api.EventConnectionState, map[string]string{"from": "CONNECTING", "to": "AUTHENTICATED"})); c != ChangeStatus {
		t.Fatalf("change = %v", c)
	}
	if st := vm.Status(); st.State != "AUTHENTICATED" || !st.Connected {
		t.Errorf("status = %+v", st)
	}
}

func TestApplyChatEvents(t *testing.T) {
	vm := NewViewModel(&fakeDaemon{})
	if err := vm.OpenConversation(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		evt  *api.Event
		want Change
	}{
		{"message in open conversation", event(t, api.EventNewMessage, backend.Message{ID: "m2", ConversationID: "c1"}), ChangeMessages},
		{"message elsewhere", event(t, api.EventNewMessage, backend.Message{ID: "m3", ConversationID: "c9"}), ChangeConversations},
		{"open conversation changed", event(t, api.EventMessagesChanged, chat.ConversationChange{ConversationID: "c1"}), ChangeMessages},
		{"other conversation changed", event(t, api.EventMessagesChanged, chat.ConversationChange{ConversationID: "c2"}), ChangeNone},
		{"list changed", event(t, api.EventConversationsChanged, nil), ChangeConversations},
		{"unknown", &api.Event{Type: "SOMETHING"}, ChangeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vm.Apply(tt.evt); got != tt.want {
				t.Errorf("Apply = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotificationFlash(t *testing.T) {
	vm := NewViewModel(&fakeDaemon{})
	vm.Apply(event(t, api.EventNotification, map[string]string{"title": "New message \nbob", "message": "hi"}))
	if got := vm.Flash.Get(); got != "New message bob: hi" {
		t.Errorf("flash = %q", got)
	}
}

func TestSendFailureFlashes(t *testing.T) {
	d := &fakeDaemon{}
	vm := NewViewModel(d)
	ctx := context.Background()

	if err := vm.Send(ctx, "ignored"); err != nil || len(d.sent) != 0 {
		t.Fatalf("send without open conversation: err=%v sent=%d", err, len(d.sent))
	}
	if err := vm.OpenConversation(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if err := vm.Send(ctx, "hi"); err != nil {
		t.Fatal(err)
	}
	if len(d.sent) != 1 || d.sent[0].ConversationID != "c1" {
		t.Errorf("sent = %+v", d.sent)
	}
	if !strings.Contains(vm.Flash.Get(), "Conversation not accepted") {
		t.Errorf("flash = %q", vm.Flash.Get())
	}
}

func TestWatchReportsChanges(t *testing.T) {
	d := &fakeDaemon{events: []*api.Event{
		{Type: api.EventConversationsChanged},
		{Type: "IGNORED"},
	}}
	vm := NewViewModel(d)
	var got []Change
	if err := vm.Watch(context.Background(), func(c Change) { got = append(got, c) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != ChangeConversations {
		t.Errorf("changes = %v", got)
	}
}

func TestFlashExpires(t *testing.T) {
	var f Flash
	f.Set("hello", 20*time.Millisecond)
	if f.Get() != "hello" {
		t.Fatal("flash should be visible")
	}
	time.Sleep(40 * time.Millisecond)
	if f.Get() != "" {
		t.Error("flash should have expired")
	}
}

func TestFlashErrorAndClear(t *testing.T) {
	var f Flash
	f.Error("Friends", nil)
	if f.Get() != "" {
		t.Fatalf("nil error should not flash, got %q", f.Get())
	}
	f.Error("Friends", errors.New("boom"))
	if f.Get() != "Friends: boom" || !f.IsError() {
		t.Errorf("flash = %q, isErr = %v", f.Get(), f.IsError())
	}
	f.Info("ok")
	if f.IsError() {
		t.Error("info flash reported as error")
	}
	f.Clear()
	if f.Get() != "" {
		t.Error("flash should be cleared")
	}
}
