package api

import (
	"encoding/json"

	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/chat"
	"github.com/matheus3301/tabsync/internal/presence"
	"github.com/matheus3301/tabsync/internal/store"
)

type Empty struct{}

type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type StatusResponse struct {
	Session           string `json:"session"`
	State             string `json:"state"`
	Connected         bool   `json:"connected"`
	HeartbeatActive   bool   `json:"heartbeatActive"`
	SupervisorRunning bool   `json:"supervisorRunning"`
	LoggedIn          bool   `json:"loggedIn"`
	UserID            string `json:"userId,omitempty"`
	Username          string `json:"username,omitempty"`
	BrowserClients    int    `json:"browserClients"`
	PendingMessages   int    `json:"pendingMessages"`
	UptimeMs          int64  `json:"uptimeMs"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type LoginResponse struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

type DispatchRequest struct {
	Type string `json:"type"`
}

type ListTabsResponse struct {
	Tabs        []presence.Tab `json:"tabs"`
	ActiveTabID *int           `json:"activeTabId,omitempty"`
}

type ListFriendsRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

type ListFriendsResponse struct {
	Friends []store.FriendPresence `json:"friends"`
}

type ListConversationsRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

type ListConversationsResponse struct {
	Result        chat.Result            `json:"result"`
	Conversations []backend.Conversation `json:"conversations"`
}

type LoadMessagesRequest struct {
	ConversationID string `json:"conversationId"`
	MarkAsSeen     bool   `json:"markAsSeen,omitempty"`
}

type LoadMessagesResponse struct {
	Result   chat.Result       `json:"result"`
	Messages []backend.Message `json:"messages"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	ReceiverID     string `json:"receiverId,omitempty"`
	Content        string `json:"content"`
}

type MarkSeenRequest struct {
	ConversationID string `json:"conversationId"`
	Force          bool   `json:"force,omitempty"`
}

type ConversationRequest struct {
	ConversationID string `json:"conversationId"`
}

// WatchRequest optionally narrows the stream to the listed event types.
type WatchRequest struct {
	Types []string `json:"types,omitempty"`
}

// Event is one entry of the Watch stream.
type Event struct {
	ID               string          `json:"id"`
	Session          string          `json:"session"`
	OccurredAtUnixMs int64           `json:"occurredAtUnixMs"`
	Type             string          `json:"type"`
	Kind             string          `json:"kind"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

type SignupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type SearchUsersRequest struct {
	Username string `json:"username"`
}

type SearchUsersResponse struct {
	Users []backend.User `json:"users"`
}

type FriendRequestTarget struct {
	ReceiverID string `json:"receiverId"`
}

// ListFriendRequestsRequest selects a box: pending (received, the
// default), sent or ignored.
type ListFriendRequestsRequest struct {
	Box string `json:"box,omitempty"`
}

type ListFriendRequestsResponse struct {
	Box      string                  `json:"box"`
	Requests []backend.FriendRequest `json:"requests"`
}

type FriendRequestID struct {
	RequestID string `json:"requestId"`
}
