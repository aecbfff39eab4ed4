// Package client is the typed control-plane client used by tabsyncctl and
// the terminal UI.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/tabsync/internal/api"
	"github.com/matheus3301/tabsync/internal/chat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps a gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewFromConn wraps an existing connection. The connection must use the
// api JSON codec.
func NewFromConn(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, service, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+service+"/"+method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

const (
	sessionService  = api.SessionServiceName
	presenceService = api.PresenceServiceName
	chatService     = api.ChatServiceName
	friendsService  = api.FriendsServiceName
)

func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	return invoke[api.StatusResponse](ctx, c, sessionService, "GetStatus", &api.Empty{})
}

func (c *Client) Login(ctx context.Context, identifier, password string) (*api.LoginResponse, error) {
	return invoke[api.LoginResponse](ctx, c, sessionService, "Login", &api.LoginRequest{Identifier: identifier, Password: password})
}

func (c *Client) Logout(ctx context.Context) (*api.Ack, error) {
	return invoke[api.Ack](ctx, c, sessionService, "Logout", &api.Empty{})
}

// Dispatch sends a background message such as POPUP_OPENED.
func (c *Client) Dispatch(ctx context.Context, msgType string) (*api.Ack, error) {
	return invoke[api.Ack](ctx, c, sessionService, "Dispatch", &api.DispatchRequest{Type: msgType})
}

func (c *Client) PublishActiveTab(ctx context.Context) (*api.Ack, error) {
	return invoke[api.Ack](ctx, c, presenceService, "PublishActiveTab", &api.Empty{})
}

func (c *Client) ListTabs(ctx context.Context) (*api.ListTabsResponse, error) {
	return invoke[api.ListTabsResponse](ctx, c, presenceService, "ListTabs", &api.Empty{})
}

func (c *Client) ListFriends(ctx context.Context, refresh bool) (*api.ListFriendsResponse, error) {
	return invoke[api.ListFriendsResponse](ctx, c, presenceService, "ListFriends", &api.ListFriendsRequest{Refresh: refresh})
}

func (c *Client) ListConversations(ctx context.Context, refresh bool) (*api.ListConversationsResponse, error) {
	return invoke[api.ListConversationsResponse](ctx, c, chatService, "ListConversations", &api.ListConversationsRequest{Refresh: refresh})
}

func (c *Client) LoadMessages(ctx context.Context, conversationID string, markAsSeen bool) (*api.LoadMessagesResponse, error) {
	return invoke[api.LoadMessagesResponse](ctx, c, chatService, "LoadMessages", &api.LoadMessagesRequest{ConversationID: conversationID, MarkAsSeen: markAsSeen})
}

func (c *Client) SendMessage(ctx context.Context, req api.SendMessageRequest) (*chat.Result, error) {
	return invoke[chat.Result](ctx, c, chatService, "SendMessage", &req)
}

func (c *Client) MarkSeen(ctx context.Context, conversationID string, force bool) (*chat.Result, error) {
	return invoke[chat.Result](ctx, c, chatService, "MarkSeen", &api.MarkSeenRequest{ConversationID: conversationID, Force: force})
}

func (c *Client) AcceptRequest(ctx context.Context, conversationID string) (*chat.Result, error) {
	return invoke[chat.Result](ctx, c, chatService, "AcceptRequest", &api.ConversationRequest{ConversationID: conversationID})
}

func (c *Client) RejectRequest(ctx context.Context, conversationID string) (*chat.Result, error) {
	return invoke[chat.Result](ctx, c, chatService, "RejectRequest", &api.ConversationRequest{ConversationID: conversationID})
}

func (c *Client) Signup(ctx context.Context, req api.SignupRequest) (*api.Ack, error) {
	return invoke[api.Ack](ctx, c, friendsService, "Signup", &req)
}

func (c *Client) SearchUsers(ctx context.Context, username string) (*api.SearchUsersResponse, error) {
	return invoke[api.SearchUsersResponse](ctx, c, friendsService, "SearchUsers", &api.SearchUsersRequest{Username: username})
}

func (c *Client) SendFriendRequest(ctx context.Context, receiverID string) (*api.Ack, error) {
	return invoke[api.Ack](ctx, c, friendsService, "SendFriendRequest", &api.FriendRequestTarget{ReceiverID: receiverID})
}

// FriendRequests lists one box: "pending" (received), "sent" or "ignored".
// An empty box means pending.
func (c *Client) FriendRequests(ctx context.Context, box string) (*api.ListFriendRequestsResponse, error) {
	return invoke[api.ListFriendRequestsResponse](ctx, c, friendsService, "ListFriendRequests", &api.ListFriendRequestsRequest{Box: box})
}

func (c *Client) AcceptFriendRequest(ctx context.Context, requestID string) (*api.Ack, error) {
	return invoke[api.Ack](ctx, c, friendsService, "AcceptFriendRequest", &api.FriendRequestID{RequestID: requestID})
}

func (c *Client) IgnoreFriendRequest(ctx context.Context, requestID string) (*api.Ack, error) {
	return invoke[api.Ack](ctx, c, friendsService, "IgnoreFriendRequest", &api.FriendRequestID{RequestID: requestID})
}

func (c *Client) CancelFriendRequest(ctx context.Context, requestID string) (*api.Ack, error) {
	return invoke[api.Ack](ctx, c, friendsService, "CancelFriendRequest", &api.FriendRequestID{RequestID: requestID})
}

// Watch streams daemon events to fn until ctx is cancelled, the stream
// ends, or fn returns an error.
func (c *Client) Watch(ctx context.Context, types []string, fn func(*api.Event) error) error {
	stream, err := c.conn.NewStream(ctx, &api.EventServiceDesc.Streams[0], api.WatchMethod)
	if err != nil {
		return fmt.Errorf("open watch stream: %w", err)
	}
	if err := stream.SendMsg(&api.WatchRequest{Types: types}); err != nil {
		return fmt.Errorf("send watch request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("close send: %w", err)
	}
	for {
		evt := new(api.Event)
		if err := stream.RecvMsg(evt); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
}
