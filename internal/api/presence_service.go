package api

import (
	"context"

	"github.com/matheus3301/tabsync/internal/control"
	"github.com/matheus3301/tabsync/internal/presence"
	"github.com/matheus3301/tabsync/internal/store"
	"google.golang.org/grpc"
)

// FriendSource lists cached friend presence.
type FriendSource interface {
	Friends() ([]store.FriendPresence, error)
}

// PresenceService serves local tab state and the friends presence cache.
type PresenceService struct {
	tracker *presence.Tracker
	friends FriendSource
	control Controller
}

// NewPresenceService creates a new presence service.
func NewPresenceService(tracker *presence.Tracker, friends FriendSource, control Controller) *PresenceService {
	return &PresenceService{
		tracker: tracker,
		friends: friends,
		control: control,
	}
}

// PublishActiveTab sends the focused tab immediately. It is a no-op while
// the connection is down.
func (s *PresenceService) PublishActiveTab(ctx context.Context, _ *Empty) (*Ack, error) {
	if err := s.control.Dispatch(ctx, control.PublishActiveTab); err != nil {
		return nil, ToStatus(err)
	}
	return &Ack{Success: true}, nil
}

func (s *PresenceService) ListTabs(_ context.Context, _ *Empty) (*ListTabsResponse, error) {
	resp := &ListTabsResponse{Tabs: s.tracker.Tabs()}
	if resp.Tabs == nil {
		resp.Tabs = []presence.Tab{}
	}
	if active, ok := s.tracker.ActiveTab(); ok {
		id := active.ID
		resp.ActiveTabID = &id
	}
	return resp, nil
}

func (s *PresenceService) ListFriends(ctx context.Context, req *ListFriendsRequest) (*ListFriendsResponse, error) {
	if req.Refresh {
		if err := s.control.RefreshFriends(ctx); err != nil {
			return nil, ToStatus(err)
		}
	}
	friends, err := s.friends.Friends()
	if err != nil {
		return nil, ToStatus(err)
	}
	if friends == nil {
		friends = []store.FriendPresence{}
	}
	return &ListFriendsResponse{Friends: friends}, nil
}

// PresenceServer is the server API for the tabsync.v1.PresenceService service.
type PresenceServer interface {
	PublishActiveTab(context.Context, *Empty) (*Ack, error)
	ListTabs(context.Context, *Empty) (*ListTabsResponse, error)
	ListFriends(context.Context, *ListFriendsRequest) (*ListFriendsResponse, error)
}

const PresenceServiceName = "tabsync.v1.PresenceService"

var PresenceServiceDesc = grpc.ServiceDesc{
	ServiceName: PresenceServiceName,
	HandlerType: (*PresenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PublishActiveTab", Handler: unary(PresenceServiceName, "PublishActiveTab", PresenceServer.PublishActiveTab)},
		{MethodName: "ListTabs", Handler: unary(PresenceServiceName, "ListTabs", PresenceServer.ListTabs)},
		{MethodName: "ListFriends", Handler: unary(PresenceServiceName, "ListFriends", PresenceServer.ListFriends)},
	},
}

func RegisterPresenceServer(s grpc.ServiceRegistrar, srv PresenceServer) {
	s.RegisterService(&PresenceServiceDesc, srv)
}
