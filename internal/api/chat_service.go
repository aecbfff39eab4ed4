package api

import (
	"context"
	"strings"

	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/chat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ChatService exposes the conversation store. Backend failures come back as
// an unsuccessful Result, not as a gRPC error.
type ChatService struct {
	store *chat.Store
}

// NewChatService creates a new chat service.
func NewChatService(store *chat.Store) *ChatService {
	return &ChatService{store: store}
}

func (s *ChatService) ListConversations(ctx context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	res := chat.Result{Success: true}
	if req.Refresh {
		res = s.store.LoadConversations(ctx)
	}
	convs := s.store.Conversations()
	if convs == nil {
		convs = []backend.Conversation{}
	}
	return &ListConversationsResponse{Result: res, Conversations: convs}, nil
}

func (s *ChatService) LoadMessages(ctx context.Context, req *LoadMessagesRequest) (*LoadMessagesResponse, error) {
	if req.ConversationID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id is required")
	}
	res := s.store.LoadMessages(ctx, req.ConversationID, req.MarkAsSeen)
	msgs := s.store.Messages(req.ConversationID)
	if msgs == nil {
		msgs = []backend.Message{}
	}
	return &LoadMessagesResponse{Result: res, Messages: msgs}, nil
}

func (s *ChatService) SendMessage(ctx context.Context, req *SendMessageRequest) (*chat.Result, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "content is required")
	}
	if req.ConversationID == "" && req.ReceiverID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id or receiver id is required")
	}
	res := s.store.SendMessage(ctx, chat.SendInput{
		ConversationID: req.ConversationID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
	})
	return &res, nil
}

func (s *ChatService) MarkSeen(ctx context.Context, req *MarkSeenRequest) (*chat.Result, error) {
	if req.ConversationID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id is required")
	}
	res := s.store.MarkAsSeen(ctx, req.ConversationID, req.Force)
	return &res, nil
}

func (s *ChatService) AcceptRequest(ctx context.Context, req *ConversationRequest) (*chat.Result, error) {
	if req.ConversationID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id is required")
	}
	res := s.store.AcceptRequest(ctx, req.ConversationID)
	return &res, nil
}

func (s *ChatService) RejectRequest(ctx context.Context, req *ConversationRequest) (*chat.Result, error) {
	if req.ConversationID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id is required")
	}
	res := s.store.RejectRequest(ctx, req.ConversationID)
	return &res, nil
}

// ChatServer is the server API for the tabsync.v1.ChatService service.
type ChatServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	LoadMessages(context.Context, *LoadMessagesRequest) (*LoadMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*chat.Result, error)
	MarkSeen(context.Context, *MarkSeenRequest) (*chat.Result, error)
	AcceptRequest(context.Context, *ConversationRequest) (*chat.Result, error)
	RejectRequest(context.Context, *ConversationRequest) (*chat.Result, error)
}

const ChatServiceName = "tabsync.v1.ChatService"

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ChatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListConversations", Handler: unary(ChatServiceName, "ListConversations", ChatServer.ListConversations)},
		{MethodName: "LoadMessages", Handler: unary(ChatServiceName, "LoadMessages", ChatServer.LoadMessages)},
		{MethodName: "SendMessage", Handler: unary(ChatServiceName, "SendMessage", ChatServer.SendMessage)},
		{MethodName: "MarkSeen", Handler: unary(ChatServiceName, "MarkSeen", ChatServer.MarkSeen)},
		{MethodName: "AcceptRequest", Handler: unary(ChatServiceName, "AcceptRequest", ChatServer.AcceptRequest)},
		{MethodName: "RejectRequest", Handler: unary(ChatServiceName, "RejectRequest", ChatServer.RejectRequest)},
	},
}

func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}
