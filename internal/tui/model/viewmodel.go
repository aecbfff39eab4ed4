package model

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/tabsync/internal/api"
	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/chat"
	"github.com/matheus3301/tabsync/internal/notify"
	"github.com/matheus3301/tabsync/internal/realtime"
	"github.com/matheus3301/tabsync/internal/status"
	"github.com/matheus3301/tabsync/internal/store"
)

// Daemon is the control-plane surface the TUI uses.
type Daemon interface {
	Status(ctx context.Context) (*api.StatusResponse, error)
	Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error)
	Logout(ctx context.Context) (*api.Ack, error)
	PublishActiveTab(ctx context.Context) (*api.Ack, error)
	ListFriends(ctx context.Context, refresh bool) (*api.ListFriendsResponse, error)
	ListConversations(ctx context.Context, refresh bool) (*api.ListConversationsResponse, error)
	LoadMessages(ctx context.Context, conversationID string, markAsSeen bool) (*api.LoadMessagesResponse, error)
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*chat.Result, error)
	Watch(ctx context.Context, types []string, fn func(*api.Event) error) error
}

// Change tells the UI which part of the model an event touched.
type Change int

const (
	ChangeNone Change = iota
	ChangeStatus
	ChangeFriends
	ChangeConversations
	ChangeMessages
	ChangeFlash
)

// ViewModel caches daemon state and folds the event stream into it.
type ViewModel struct {
	mu sync.RWMutex

	daemon        Daemon
	status        *api.StatusResponse
	friends       []store.FriendPresence
	conversations []backend.Conversation
	messages      []backend.Message
	active        string
	Flash         Flash
}

// NewViewModel creates a view model backed by the daemon client.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{daemon: d}
}

// LoadStatus fetches the session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.Status(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return nil
}

// LoadFriends fetches friend presence, asking the daemon to refetch it from
// the backend when refresh is set.
func (vm *ViewModel) LoadFriends(ctx context.Context, refresh bool) error {
	resp, err := vm.daemon.ListFriends(ctx, refresh)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.friends = resp.Friends
	vm.mu.Unlock()
	return nil
}

// LoadConversations fetches the conversation list.
func (vm *ViewModel) LoadConversations(ctx context.Context, refresh bool) error {
	resp, err := vm.daemon.ListConversations(ctx, refresh)
	if err != nil {
		return err
	}
	if !resp.Result.Success {
		vm.Flash.Set(resp.Result.Message, 5*time.Second)
	}
	vm.mu.Lock()
	vm.conversations = resp.Conversations
	vm.mu.Unlock()
	return nil
}

// OpenConversation loads a conversation's messages and marks it seen.
func (vm *ViewModel) OpenConversation(ctx context.Context, conversationID string) error {
	resp, err := vm.daemon.LoadMessages(ctx, conversationID, true)
	if err != nil {
		return err
	}
	if !resp.Result.Success {
		vm.Flash.Set(resp.Result.Message, 5*time.Second)
	}
	vm.mu.Lock()
	vm.active = conversationID
	vm.messages = resp.Messages
	vm.mu.Unlock()
	return nil
}

// CloseConversation forgets the open conversation.
func (vm *ViewModel) CloseConversation() {
	vm.mu.Lock()
	vm.active = ""
	vm.messages = nil
	vm.mu.Unlock()
}

// Send sends text to the open conversation and reloads it.
func (vm *ViewModel) Send(ctx context.Context, text string) error {
	id := vm.ActiveConversation()
	if id == "" {
		return nil
	}
	res, err := vm.daemon.SendMessage(ctx, api.SendMessageRequest{ConversationID: id, Content: text})
	if err != nil {
		return err
	}
	if !res.Success {
		vm.Flash.Set("Send failed: "+res.Message, 5*time.Second)
	}
	return vm.OpenConversation(ctx, id)
}

func (vm *ViewModel) Login(ctx context.Context, identifier, password string) error {
	resp, err := vm.daemon.Login(ctx, identifier, password)
	if err != nil {
		return err
	}
	vm.Flash.Info("Logged in as " + resp.Username)
	return vm.LoadStatus(ctx)
}

func (vm *ViewModel) Logout(ctx context.Context) error {
	if _, err := vm.daemon.Logout(ctx); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.friends = nil
	vm.conversations = nil
	vm.messages = nil
	vm.active = ""
	vm.mu.Unlock()
	vm.Flash.Info("Logged out")
	return vm.LoadStatus(ctx)
}

func (vm *ViewModel) PublishActiveTab(ctx context.Context) error {
	_, err := vm.daemon.PublishActiveTab(ctx)
	return err
}

// Watch streams daemon events, folding each into the model and reporting
// the resulting change to onChange.
func (vm *ViewModel) Watch(ctx context.Context, onChange func(Change)) error {
	return vm.daemon.Watch(ctx, nil, func(e *api.Event) error {
		if c := vm.Apply(e); c != ChangeNone {
			onChange(c)
		}
		return nil
	})
}

// Apply folds one event into the model. Chat events only report which list
// is stale; the caller reloads it.
func (vm *ViewModel) Apply(e *api.Event) Change {
	switch e.Type {
	case api.EventFriendTabUpdate:
		var p realtime.FriendTabs
		if json.Unmarshal(e.Payload, &p) != nil {
			return ChangeNone
		}
		vm.updateFriend(p.FriendID, func(f *store.FriendPresence) {
			f.Tabs = make([]store.TabRef, 0, len(p.Tabs))
			for _, t := range p.Tabs {
				f.Tabs = append(f.Tabs, store.TabRef{ID: t.ID, Title: t.Title, URL: t.URL})
			}
		})
		return ChangeFriends
	case api.EventFriendActiveTabUpdate:
		var p realtime.FriendActiveTab
		if json.Unmarshal(e.Payload, &p) != nil {
			return ChangeNone
		}
		vm.updateFriend(p.FriendID, func(f *store.FriendPresence) {
			f.ActiveTab = &store.TabRef{ID: p.Tab.ID, Title: p.Tab.Title, URL: p.Tab.URL}
		})
		return ChangeFriends
	case api.EventConnectionState:
		var p status.StatusChange
		if json.Unmarshal(e.Payload, &p) != nil {
			return ChangeNone
		}
		vm.mu.Lock()
		if vm.status != nil {
			vm.status.State = string(p.To)
			vm.status.Connected = p.To == status.Authenticated
		}
		vm.mu.Unlock()
		return ChangeStatus
	case api.EventNotification:
		var n notify.Notification
		if json.Unmarshal(e.Payload, &n) != nil {
			return ChangeNone
		}
		title := strings.Join(strings.Fields(n.Title), " ")
		vm.Flash.Set(title+": "+n.Body, 5*time.Second)
		return ChangeFlash
	case api.EventMessagesChanged:
		var p chat.ConversationChange
		if json.Unmarshal(e.Payload, &p) == nil && p.ConversationID != "" && p.ConversationID == vm.ActiveConversation() {
			return ChangeMessages
		}
		return ChangeNone
	case api.EventNewMessage:
		var m backend.Message
		if json.Unmarshal(e.Payload, &m) == nil && m.ConversationID == vm.ActiveConversation() {
			return ChangeMessages
		}
		return ChangeConversations
	case api.EventConversationsChanged:
		return ChangeConversations
	}
	return ChangeNone
}

func (vm *ViewModel) updateFriend(id string, fn func(*store.FriendPresence)) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	i := slices.IndexFunc(vm.friends, func(f store.FriendPresence) bool { return f.FriendID == id })
	if i < 0 {
		vm.friends = append(vm.friends, store.FriendPresence{FriendID: id})
		i = len(vm.friends) - 1
	}
	f := &vm.friends[i]
	f.Online = true
	fn(f)
}

// Status returns a snapshot of the session status, or nil before the first load.
func (vm *ViewModel) Status() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.status == nil {
		return nil
	}
	s := *vm.status
	return &s
}

func (vm *ViewModel) Friends() []store.FriendPresence {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.friends)
}

func (vm *ViewModel) Conversations() []backend.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.conversations)
}

func (vm *ViewModel) Messages() []backend.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return slices.Clone(vm.messages)
}

// ActiveConversation returns the open conversation id, or "".
func (vm *ViewModel) ActiveConversation() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// SelfID returns the logged-in user's id, or "".
func (vm *ViewModel) SelfID() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.status == nil {
		return ""
	}
	return vm.status.UserID
}
