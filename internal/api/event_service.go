package api

import (
	"encoding/json"
	"slices"

	"github.com/google/uuid"
	"github.com/matheus3301/tabsync/internal/bus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Watch event types.
const (
	EventFriendTabUpdate       = "FRIEND_TAB_UPDATE"
	EventFriendActiveTabUpdate = "FRIEND_ACTIVE_TAB_UPDATE"
	EventNewMessage            = "NEW_MESSAGE"
	EventNotification          = "NOTIFICATION"
	EventConnectionState       = "CONNECTION_STATE"
	EventConversationsChanged  = "CONVERSATIONS_CHANGED"
	EventMessagesChanged       = "MESSAGES_CHANGED"
)

// eventTypes maps bus kinds to the types clients see. Kinds not listed
// here (local tab events) are not streamed.
var eventTypes = map[string]string{
	bus.KindFriendTabUpdate:       EventFriendTabUpdate,
	bus.KindFriendActiveTabUpdate: EventFriendActiveTabUpdate,
	bus.KindNewMessage:            EventNewMessage,
	bus.KindNotification:          EventNotification,
	bus.KindConnStateChanged:      EventConnectionState,
	bus.KindConversationsChanged:  EventConversationsChanged,
	bus.KindMessagesChanged:       EventMessagesChanged,
}

// EventService streams bus events to control-plane clients.
type EventService struct {
	bus         *bus.Bus
	sessionName string
	logger      *zap.Logger
}

// NewEventService creates a new event service.
func NewEventService(b *bus.Bus, sessionName string, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{bus: b, sessionName: sessionName, logger: logger}
}

// EventStream is the server side of a Watch call.
type EventStream interface {
	Send(*Event) error
	grpc.ServerStream
}

func (s *EventService) Watch(req *WatchRequest, stream EventStream) error {
	ch, unsub := s.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			typ, ok := eventTypes[evt.Kind]
			if !ok || (len(req.Types) > 0 && !slices.Contains(req.Types, typ)) {
				continue
			}
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				s.logger.Warn("dropping unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(&Event{
				ID:               uuid.New().String(),
				Session:          s.sessionName,
				OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
				Type:             typ,
				Kind:             evt.Kind,
				Payload:          payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// EventServer is the server API for the tabsync.v1.EventService service.
type EventServer interface {
	Watch(*WatchRequest, EventStream) error
}

type eventStream struct {
	grpc.ServerStream
}

func (x *eventStream) Send(e *Event) error {
	return x.ServerStream.SendMsg(e)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(EventServer).Watch(in, &eventStream{stream})
}

const EventServiceName = "tabsync.v1.EventService"

var EventServiceDesc = grpc.ServiceDesc{
	ServiceName: EventServiceName,
	HandlerType: (*EventServer)(nil),
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
}

func RegisterEventServer(s grpc.ServiceRegistrar, srv EventServer) {
	s.RegisterService(&EventServiceDesc, srv)
}

// WatchMethod is the full method name of EventService.Watch.
const WatchMethod = "/" + EventServiceName + "/Watch"
