// Package chat caches conversations and messages, applies optimistic sends
// and reconciles them against the backend and realtime events.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/credential"
	"go.uber.org/zap"
)

// API is the subset of the REST client the store needs.
type API interface {
	Conversations(ctx context.Context) ([]backend.Conversation, error)
	Messages(ctx context.Context, conversationID string, q backend.MessageQuery) ([]backend.Message, error)
	SendMessage(ctx context.Context, req backend.SendRequest) (*backend.SendResult, error)
	MarkSeen(ctx context.Context, conversationID string) error
	AcceptConversation(ctx context.Context, conversationID string) error
	RejectConversation(ctx context.Context, conversationID string) error
}

// Result is the outcome of a store operation. Failures are reported here,
// never as panics.
type Result struct {
	Success           bool             `json:"success"`
	Message           string           `json:"message,omitempty"`
	ConversationID    string           `json:"conversationId,omitempty"`
	IsNewConversation bool             `json:"isNewConversation,omitempty"`
	Data              *backend.Message `json:"data,omitempty"`
}

// SendInput addresses a message to a known conversation or to a user.
type SendInput struct {
	ConversationID string
	ReceiverID     string
	Content        string
}

// ConversationChange is the payload of chat.messages_changed.
type ConversationChange struct {
	ConversationID string `json:"conversationId"`
}

const (
	msgNotAuthenticated = "User not authenticated"
	msgNetworkError     = "Network error occurred"
)

// Store is the sole owner of conversation and message state. Network calls
// run without the lock held; every patch is keyed by id so late completions
// are harmless.
type Store struct {
	api    API
	creds  credential.Source
	bus    *bus.Bus
	logger *zap.Logger

	mu            sync.Mutex
	conversations []backend.Conversation
	messages      map[string][]backend.Message
	open          string
}

// NewStore creates an empty store.
func NewStore(api API, creds credential.Source, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:      api,
		creds:    creds,
		bus:      b,
		logger:   logger,
		messages: make(map[string][]backend.Message),
	}
}

// LoadConversations replaces the conversation list with the server's.
// On failure the current list is kept.
func (s *Store) LoadConversations(ctx context.Context) Result {
	if _, ok := s.user(); !ok {
		return failure(msgNotAuthenticated)
	}
	convs, err := s.api.Conversations(ctx)
	if err != nil {
		s.logger.Warn("load conversations failed", zap.Error(err))
		return failureFrom(err, "Failed to load conversations")
	}
	if convs == nil {
		convs = []backend.Conversation{}
	}

	s.mu.Lock()
	s.conversations = convs
	s.mu.Unlock()

	s.publish(bus.KindConversationsChanged, nil)
	return Result{Success: true}
}

// LoadMessages replaces one conversation's messages with the server's and
// marks the conversation open. With markAsSeen, unread messages from others
// are acknowledged.
func (s *Store) LoadMessages(ctx context.Context, conversationID string, markAsSeen bool) Result {
	if _, ok := s.user(); !ok {
		return failure(msgNotAuthenticated)
	}
	msgs, err := s.api.Messages(ctx, conversationID, backend.MessageQuery{})
	if err != nil {
		s.logger.Warn("load messages failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return failureFrom(err, "Failed to load messages")
	}
	if msgs == nil {
		msgs = []backend.Message{}
	}

	s.mu.Lock()
	s.messages[conversationID] = msgs
	s.open = conversationID
	s.mu.Unlock()
	s.publish(bus.KindMessagesChanged, ConversationChange{ConversationID: conversationID})

	if markAsSeen {
		if res := s.MarkAsSeen(ctx, conversationID, false); !res.Success {
			return res
		}
	}
	return Result{Success: true, ConversationID: conversationID}
}

// SendMessage appends an optimistic record, sends it, and replaces or
// removes that record before returning.
func (s *Store) SendMessage(ctx context.Context, in SendInput) Result {
	me, ok := s.user()
	if !ok {
		return failure(msgNotAuthenticated)
	}

	tempID := fmt.Sprintf("temp-%s-%s", me.ID, uuid.NewString())
	if in.ConversationID != "" {
		optimistic := backend.Message{
			ID:             tempID,
			ConversationID: in.ConversationID,
			SenderID:       me.ID,
			Content:        in.Content,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339Nano),
			Status:         backend.Sending,
			Sender:         backend.User{ID: me.ID, Username: me.Username, DisplayName: displayName(me)},
		}
		s.mu.Lock()
		s.messages[in.ConversationID] = append(s.messages[in.ConversationID], optimistic)
		s.mu.Unlock()
		s.publish(bus.KindMessagesChanged, ConversationChange{ConversationID: in.ConversationID})
	}

	res, err := s.api.SendMessage(ctx, backend.SendRequest{
		ConversationID: in.ConversationID,
		ReceiverID:     in.ReceiverID,
		Content:        in.Content,
	})
	if err != nil {
		if in.ConversationID != "" {
			s.removeMessage(in.ConversationID, tempID)
		}
		s.logger.Warn("send message failed", zap.String("conversation_id", in.ConversationID), zap.Error(err))
		return failureFrom(err, "Failed to send message")
	}

	if in.ConversationID != "" {
		s.reconcile(in.ConversationID, tempID, res.Message)
	}

	if res.IsNewConversation && res.ConversationID != "" {
		s.LoadConversations(ctx)
		s.LoadMessages(ctx, res.ConversationID, false)
	}

	return Result{
		Success:           true,
		ConversationID:    res.ConversationID,
		IsNewConversation: res.IsNewConversation,
		Data:              res.Message,
	}
}

// reconcile swaps the temporary record for the server's. If the server
// record already arrived over the realtime connection, the temporary record
// is simply dropped.
func (s *Store) reconcile(conversationID, tempID string, real *backend.Message) {
	s.mu.Lock()
	msgs := s.messages[conversationID]
	idx := slices.IndexFunc(msgs, func(m backend.Message) bool { return m.ID == tempID })
	switch {
	case idx < 0:
	case real == nil || containsID(msgs, real.ID):
		msgs = slices.Delete(msgs, idx, idx+1)
	default:
		m := *real
		m.Status = backend.Sent
		msgs[idx] = m
	}
	s.messages[conversationID] = msgs
	if real != nil {
		s.setLastMessage(conversationID, *real)
	}
	s.mu.Unlock()
	s.publish(bus.KindMessagesChanged, ConversationChange{ConversationID: conversationID})
}

func (s *Store) removeMessage(conversationID, id string) {
	s.mu.Lock()
	s.messages[conversationID] = slices.DeleteFunc(s.messages[conversationID], func(m backend.Message) bool {
		return m.ID == id
	})
	s.mu.Unlock()
	s.publish(bus.KindMessagesChanged, ConversationChange{ConversationID: conversationID})
}

// MarkAsSeen acknowledges unread messages from others. Without force the
// network call is skipped when nothing is unread. The unread count is reset
// only after the server confirms.
func (s *Store) MarkAsSeen(ctx context.Context, conversationID string, force bool) Result {
	me, ok := s.user()
	if !ok {
		return failure(msgNotAuthenticated)
	}

	s.mu.Lock()
	unread := s.unreadLocked(conversationID, me.ID)
	s.mu.Unlock()
	if len(unread) == 0 && !force {
		return Result{Success: true, ConversationID: conversationID}
	}

	if err := s.api.MarkSeen(ctx, conversationID); err != nil {
		s.logger.Warn("mark seen failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return failureFrom(err, "Failed to mark messages as seen")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	s.mu.Lock()
	group := s.typeLocked(conversationID) == backend.Group
	msgs := s.messages[conversationID]
	for i := range msgs {
		m := &msgs[i]
		if m.SenderID == me.ID {
			continue
		}
		if group {
			if !readBy(*m, me.ID) {
				m.ReadBy = append(m.ReadBy, backend.ReadReceipt{
					UserID: me.ID,
					User:   &backend.User{ID: me.ID, Username: me.Username, DisplayName: displayName(me)},
					ReadAt: now,
				})
			}
		} else if m.SeenAt == "" {
			m.SeenAt = now
		}
		m.Status = backend.Seen
	}
	if i := s.indexLocked(conversationID); i >= 0 {
		s.conversations[i].UnreadCount = 0
	}
	s.mu.Unlock()

	s.publish(bus.KindMessagesChanged, ConversationChange{ConversationID: conversationID})
	s.publish(bus.KindConversationsChanged, nil)
	return Result{Success: true, ConversationID: conversationID}
}

// AcceptRequest accepts a pending conversation and reloads the list.
func (s *Store) AcceptRequest(ctx context.Context, conversationID string) Result {
	if _, ok := s.user(); !ok {
		return failure(msgNotAuthenticated)
	}
	if err := s.api.AcceptConversation(ctx, conversationID); err != nil {
		return failureFrom(err, "Failed to accept message request")
	}
	s.LoadConversations(ctx)
	return Result{Success: true, ConversationID: conversationID}
}

// RejectRequest rejects a pending conversation and drops it locally.
func (s *Store) RejectRequest(ctx context.Context, conversationID string) Result {
	if _, ok := s.user(); !ok {
		return failure(msgNotAuthenticated)
	}
	if err := s.api.RejectConversation(ctx, conversationID); err != nil {
		return failureFrom(err, "Failed to reject message request")
	}

	s.mu.Lock()
	s.conversations = slices.DeleteFunc(s.conversations, func(c backend.Conversation) bool {
		return c.Conversation.ID == conversationID
	})
	delete(s.messages, conversationID)
	if s.open == conversationID {
		s.open = ""
	}
	s.mu.Unlock()

	s.publish(bus.KindConversationsChanged, nil)
	return Result{Success: true, ConversationID: conversationID}
}

// HandleIncoming merges a realtime message. Duplicates by id are ignored.
func (s *Store) HandleIncoming(msg backend.Message) {
	if msg.ID == "" || msg.ConversationID == "" {
		s.logger.Warn("dropping incoming message without id")
		return
	}
	me, _ := s.user()

	s.mu.Lock()
	if containsID(s.messages[msg.ConversationID], msg.ID) {
		s.mu.Unlock()
		return
	}
	msg.Status = backend.Delivered
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)

	if i := s.indexLocked(msg.ConversationID); i >= 0 {
		conv := &s.conversations[i]
		last := msg
		conv.Conversation.LastMessage = &last
		fromSelf := me != nil && msg.SenderID == me.ID
		viewing := s.open == msg.ConversationID && conv.UnreadCount == 0
		if !fromSelf && !viewing {
			conv.UnreadCount++
		}
	}
	s.mu.Unlock()

	s.publish(bus.KindNewMessage, msg)
	s.publish(bus.KindMessagesChanged, ConversationChange{ConversationID: msg.ConversationID})
	s.publish(bus.KindConversationsChanged, nil)
}

// HandleIncomingRaw decodes a NEW_MESSAGE body and merges it.
func (s *Store) HandleIncomingRaw(raw json.RawMessage) error {
	var msg backend.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if msg.ID == "" {
		// Some payloads use the document id.
		var alt struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(raw, &alt); err == nil {
			msg.ID = alt.ID
		}
	}
	s.HandleIncoming(msg)
	return nil
}

// Close marks no conversation as open.
func (s *Store) Close() {
	s.mu.Lock()
	s.open = ""
	s.mu.Unlock()
}

// Reset forgets all state, e.g. on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	s.conversations = nil
	s.messages = make(map[string][]backend.Message)
	s.open = ""
	s.mu.Unlock()
	s.publish(bus.KindConversationsChanged, nil)
}

// Conversations returns a copy of the conversation list.
func (s *Store) Conversations() []backend.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.conversations)
}

// Conversation returns one conversation by its conversation id.
func (s *Store) Conversation(conversationID string) (backend.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(conversationID); i >= 0 {
		return s.conversations[i], true
	}
	return backend.Conversation{}, false
}

// Messages returns a copy of one conversation's messages.
func (s *Store) Messages(conversationID string) []backend.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages[conversationID])
}

// PendingCount is the number of conversation invites awaiting a decision.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.conversations {
		if c.Status == backend.Pending {
			n++
		}
	}
	return n
}

// Unread returns the messages from others not yet acknowledged by the user.
func (s *Store) Unread(conversationID string) []backend.Message {
	me, ok := s.user()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked(conversationID, me.ID)
}

func (s *Store) unreadLocked(conversationID, selfID string) []backend.Message {
	group := s.typeLocked(conversationID) == backend.Group
	var out []backend.Message
	for _, m := range s.messages[conversationID] {
		if m.SenderID == selfID {
			continue
		}
		if (group && !readBy(m, selfID)) || (!group && m.SeenAt == "") {
			out = append(out, m)
		}
	}
	return out
}

// typeLocked defaults to Direct for conversations not in the list.
func (s *Store) typeLocked(conversationID string) backend.ConversationType {
	if i := s.indexLocked(conversationID); i >= 0 && s.conversations[i].Conversation.Type == backend.Group {
		return backend.Group
	}
	return backend.Direct
}

func (s *Store) indexLocked(conversationID string) int {
	return slices.IndexFunc(s.conversations, func(c backend.Conversation) bool {
		return c.Conversation.ID == conversationID
	})
}

func (s *Store) setLastMessage(conversationID string, m backend.Message) {
	if i := s.indexLocked(conversationID); i >= 0 {
		s.conversations[i].Conversation.LastMessage = &m
	}
}

func (s *Store) user() (*credential.Credential, bool) {
	cred, err := s.creds.Load()
	if err != nil {
		return nil, false
	}
	return cred, true
}

func (s *Store) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.Publish(bus.Event{Kind: kind, Payload: payload})
	}
}

func readBy(m backend.Message, userID string) bool {
	return slices.ContainsFunc(m.ReadBy, func(r backend.ReadReceipt) bool { return r.Reader() == userID })
}

func containsID(msgs []backend.Message, id string) bool {
	return slices.ContainsFunc(msgs, func(m backend.Message) bool { return m.ID == id })
}

func displayName(c *credential.Credential) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Username
}

func failure(msg string) Result {
	return Result{Success: false, Message: msg}
}

// failureFrom maps an error to a user-facing result: the backend's own
// message when it sent one, fallback otherwise, and a generic network
// message for transport failures.
func failureFrom(err error, fallback string) Result {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return failure(apiErr.Message)
		}
		return failure(fallback)
	}
	if errors.Is(err, backend.ErrUnauthenticated) {
		return failure(msgNotAuthenticated)
	}
	return failure(msgNetworkError)
}
