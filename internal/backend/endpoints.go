package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Login exchanges an identifier (username or email) and password for a
// user record carrying the session token.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	var out LoginResult
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/users/login",
		body:   map[string]string{"identifier": identifier, "password": password},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	_, err := c.do(ctx, call{method: http.MethodPost, path: "/api/users/signup", body: req}, nil)
	return err
}

// FriendsWithStatus lists friends with their online state and tabs.
func (c *Client) FriendsWithStatus(ctx context.Context) ([]Friend, error) {
	var out []Friend
	// The path spelling is the backend's.
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/api/friends/firends-with-status", auth: true}, &out)
	return out, err
}

// SearchUsers finds users by username.
func (c *Client) SearchUsers(ctx context.Context, username string) ([]User, error) {
	var out []User
	_, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/users/search",
		query:  url.Values{"username": {username}},
		auth:   true,
	}, &out)
	return out, err
}

// SendFriendRequest asks receiverID to become a friend.
func (c *Client) SendFriendRequest(ctx context.Context, receiverID string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/friends/request",
		body:   map[string]string{"receiverId": receiverID},
		auth:   true,
	}, nil)
	return err
}

// FriendRequests lists the requests in one box.
func (c *Client) FriendRequests(ctx context.Context, box RequestBox) ([]FriendRequest, error) {
	switch box {
	case Received, Outgoing, Ignored:
	default:
		return nil, fmt.Errorf("unknown request box %q", box)
	}
	var out []FriendRequest
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/api/friends/requests/" + string(box), auth: true}, &out)
	return out, err
}

// AcceptFriendRequest accepts a received request.
func (c *Client) AcceptFriendRequest(ctx context.Context, requestID string) error {
	return c.requestAction(ctx, http.MethodPatch, "/api/friends/accept/", requestID)
}

// IgnoreFriendRequest moves a received request to the ignored box.
func (c *Client) IgnoreFriendRequest(ctx context.Context, requestID string) error {
	return c.requestAction(ctx, http.MethodPatch, "/api/friends/ignore/", requestID)
}

// CancelFriendRequest withdraws a request the current user sent.
func (c *Client) CancelFriendRequest(ctx context.Context, requestID string) error {
	return c.requestAction(ctx, http.MethodDelete, "/api/friends/request/", requestID)
}

func (c *Client) requestAction(ctx context.Context, method, prefix, requestID string) error {
	_, err := c.do(ctx, call{method: method, path: prefix + url.PathEscape(requestID), auth: true}, nil)
	return err
}

// Conversations lists the current user's conversations.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/api/conversation", auth: true}, &out)
	return out, err
}

// Messages fetches one page of a conversation's messages.
func (c *Client) Messages(ctx context.Context, conversationID string, q MessageQuery) ([]Message, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	query := url.Values{"limit": {strconv.Itoa(q.Limit)}}
	if q.Cursor != "" {
		query.Set("cursor", q.Cursor)
	}
	if q.MarkAsSeen {
		query.Set("markAsSeen", "true")
	}
	var out []Message
	_, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/api/conversation/" + url.PathEscape(conversationID) + "/messages",
		query:  query,
		auth:   true,
	}, &out)
	return out, err
}

// SendMessage posts a message.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	var msg Message
	env, err := c.do(ctx, call{method: http.MethodPost, path: "/api/conversation/send", body: req, auth: true}, &msg)
	if err != nil {
		return nil, err
	}
	res := &SendResult{ConversationID: env.ConversationID, IsNewConversation: env.IsNewConversation}
	if msg.ID != "" {
		res.Message = &msg
	}
	if res.ConversationID == "" {
		res.ConversationID = req.ConversationID
	}
	return res, nil
}

// MarkSeen acknowledges every message in a conversation as seen.
func (c *Client) MarkSeen(ctx context.Context, conversationID string) error {
	return c.conversationAction(ctx, conversationID, "mark-seen")
}

// AcceptConversation accepts a pending conversation invite.
func (c *Client) AcceptConversation(ctx context.Context, conversationID string) error {
	return c.conversationAction(ctx, conversationID, "accept")
}

// RejectConversation rejects a pending conversation invite.
func (c *Client) RejectConversation(ctx context.Context, conversationID string) error {
	return c.conversationAction(ctx, conversationID, "reject")
}

func (c *Client) conversationAction(ctx context.Context, conversationID, action string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/conversation/" + url.PathEscape(conversationID) + "/" + action,
		auth:   true,
	}, nil)
	return err
}
