package api

import (
	"context"
	"strings"

	"github.com/matheus3301/tabsync/internal/backend"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// FriendsAPI is the social part of the backend client.
type FriendsAPI interface {
	Signup(ctx context.Context, req backend.SignupRequest) error
	SearchUsers(ctx context.Context, username string) ([]backend.User, error)
	SendFriendRequest(ctx context.Context, receiverID string) error
	FriendRequests(ctx context.Context, box backend.RequestBox) ([]backend.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID string) error
	IgnoreFriendRequest(ctx context.Context, requestID string) error
	CancelFriendRequest(ctx context.Context, requestID string) error
}

// FriendsService serves account signup, user search and the friend-request
// workflow.
type FriendsService struct {
	backend FriendsAPI
	control Controller
	logger  *zap.Logger
}

// NewFriendsService creates a new friends service.
func NewFriendsService(b FriendsAPI, control Controller, logger *zap.Logger) *FriendsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FriendsService{backend: b, control: control, logger: logger}
}

func (s *FriendsService) Signup(ctx context.Context, req *SignupRequest) (*Ack, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "username and password are required")
	}
	err := s.backend.Signup(ctx, backend.SignupRequest{
		Username:    strings.TrimSpace(req.Username),
		Password:    req.Password,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return nil, ToStatus(err)
	}
	return &Ack{Success: true, Message: "account created"}, nil
}

func (s *FriendsService) SearchUsers(ctx context.Context, req *SearchUsersRequest) (*SearchUsersResponse, error) {
	q := strings.TrimSpace(req.Username)
	if q == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "username is required")
	}
	users, err := s.backend.SearchUsers(ctx, q)
	if err != nil {
		return nil, ToStatus(err)
	}
	if users == nil {
		users = []backend.User{}
	}
	return &SearchUsersResponse{Users: users}, nil
}

func (s *FriendsService) SendFriendRequest(ctx context.Context, req *FriendRequestTarget) (*Ack, error) {
	if req.ReceiverID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "receiverId is required")
	}
	if err := s.backend.SendFriendRequest(ctx, req.ReceiverID); err != nil {
		return nil, ToStatus(err)
	}
	return &Ack{Success: true, Message: "request sent"}, nil
}

func (s *FriendsService) ListFriendRequests(ctx context.Context, req *ListFriendRequestsRequest) (*ListFriendRequestsResponse, error) {
	box := backend.RequestBox(req.Box)
	switch box {
	case "":
		box = backend.Received
	case backend.Received, backend.Outgoing, backend.Ignored:
	default:
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown box %q (want pending, sent or ignored)", req.Box)
	}
	reqs, err := s.backend.FriendRequests(ctx, box)
	if err != nil {
		return nil, ToStatus(err)
	}
	if reqs == nil {
		reqs = []backend.FriendRequest{}
	}
	return &ListFriendRequestsResponse{Box: string(box), Requests: reqs}, nil
}

// AcceptFriendRequest accepts a request and refreshes the friends cache so
// the new friend's presence shows up without a restart.
func (s *FriendsService) AcceptFriendRequest(ctx context.Context, req *FriendRequestID) (*Ack, error) {
	if req.RequestID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "requestId is required")
	}
	if err := s.backend.AcceptFriendRequest(ctx, req.RequestID); err != nil {
		return nil, ToStatus(err)
	}
	if err := s.control.RefreshFriends(ctx); err != nil {
		s.logger.Warn("refresh friends after accept", zap.Error(err))
	}
	return &Ack{Success: true, Message: "request accepted"}, nil
}

func (s *FriendsService) IgnoreFriendRequest(ctx context.Context, req *FriendRequestID) (*Ack, error) {
	if req.RequestID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "requestId is required")
	}
	if err := s.backend.IgnoreFriendRequest(ctx, req.RequestID); err != nil {
		return nil, ToStatus(err)
	}
	return &Ack{Success: true, Message: "request ignored"}, nil
}

func (s *FriendsService) CancelFriendRequest(ctx context.Context, req *FriendRequestID) (*Ack, error) {
	if req.RequestID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "requestId is required")
	}
	if err := s.backend.CancelFriendRequest(ctx, req.RequestID); err != nil {
		return nil, ToStatus(err)
	}
	return &Ack{Success: true, Message: "request cancelled"}, nil
}

// FriendsServer is the server API for the tabsync.v1.FriendsService service.
type FriendsServer interface {
	Signup(context.Context, *SignupRequest) (*Ack, error)
	SearchUsers(context.Context, *SearchUsersRequest) (*SearchUsersResponse, error)
	SendFriendRequest(context.Context, *FriendRequestTarget) (*Ack, error)
	ListFriendRequests(context.Context, *ListFriendRequestsRequest) (*ListFriendRequestsResponse, error)
	AcceptFriendRequest(context.Context, *FriendRequestID) (*Ack, error)
	IgnoreFriendRequest(context.Context, *FriendRequestID) (*Ack, error)
	CancelFriendRequest(context.Context, *FriendRequestID) (*Ack, error)
}

const FriendsServiceName = "tabsync.v1.FriendsService"

var FriendsServiceDesc = grpc.ServiceDesc{
	ServiceName: FriendsServiceName,
	HandlerType: (*FriendsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Signup", Handler: unary(FriendsServiceName, "Signup", FriendsServer.Signup)},
		{MethodName: "SearchUsers", Handler: unary(FriendsServiceName, "SearchUsers", FriendsServer.SearchUsers)},
		{MethodName: "SendFriendRequest", Handler: unary(FriendsServiceName, "SendFriendRequest", FriendsServer.SendFriendRequest)},
		{MethodName: "ListFriendRequests", Handler: unary(FriendsServiceName, "ListFriendRequests", FriendsServer.ListFriendRequests)},
		{MethodName: "AcceptFriendRequest", Handler: unary(FriendsServiceName, "AcceptFriendRequest", FriendsServer.AcceptFriendRequest)},
		{MethodName: "IgnoreFriendRequest", Handler: unary(FriendsServiceName, "IgnoreFriendRequest", FriendsServer.IgnoreFriendRequest)},
		{MethodName: "CancelFriendRequest", Handler: unary(FriendsServiceName, "CancelFriendRequest", FriendsServer.CancelFriendRequest)},
	},
}

func RegisterFriendsServer(s grpc.ServiceRegistrar, srv FriendsServer) {
	s.RegisterService(&FriendsServiceDesc, srv)
}
