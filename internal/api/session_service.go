package api

import (
	"context"
	"time"

	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Controller is the login/logout and message-dispatch surface.
type Controller interface {
	Login(ctx context.Context, identifier, password string) (*credential.Credential, error)
	Logout(ctx context.Context) error
	Dispatch(ctx context.Context, msgType string) error
	RefreshFriends(ctx context.Context) error
}

// ConnState reports the realtime connection's liveness.
type ConnState interface {
	IsConnected() bool
	HeartbeatActive() bool
}

// SessionDeps groups what SessionService reports on and drives.
type SessionDeps struct {
	Session    string
	Machine    *status.Machine
	Conn       ConnState
	Supervisor interface{ Running() bool }
	Creds      credential.Source
	Control    Controller
	Browser    interface{ Clients() int }
	Pending    func() int
}

// SessionService exposes the daemon's session state and login lifecycle.
type SessionService struct {
	d         SessionDeps
	startedAt time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(d SessionDeps) *SessionService {
	return &SessionService{d: d, startedAt: time.Now()}
}

func (s *SessionService) GetStatus(_ context.Context, _ *Empty) (*StatusResponse, error) {
	resp := &StatusResponse{
		Session:  s.d.Session,
		State:    string(s.d.Machine.Current()),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.d.Conn != nil {
		resp.Connected = s.d.Conn.IsConnected()
		resp.HeartbeatActive = s.d.Conn.HeartbeatActive()
	}
	if s.d.Supervisor != nil {
		resp.SupervisorRunning = s.d.Supervisor.Running()
	}
	if s.d.Creds != nil {
		if cred, err := s.d.Creds.Load(); err == nil {
			resp.LoggedIn = true
			resp.UserID = cred.ID
			resp.Username = cred.Username
		}
	}
	if s.d.Browser != nil {
		resp.BrowserClients = s.d.Browser.Clients()
	}
	if s.d.Pending != nil {
		resp.PendingMessages = s.d.Pending()
	}
	return resp, nil
}

func (s *SessionService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if req.Identifier == "" || req.Password == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "identifier and password are required")
	}
	cred, err := s.d.Control.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &LoginResponse{UserID: cred.ID, Username: cred.Username, DisplayName: cred.DisplayName}, nil
}

func (s *SessionService) Logout(ctx context.Context, _ *Empty) (*Ack, error) {
	if err := s.d.Control.Logout(ctx); err != nil {
		return nil, ToStatus(err)
	}
	return &Ack{Success: true, Message: "logged out"}, nil
}

func (s *SessionService) Dispatch(ctx context.Context, req *DispatchRequest) (*Ack, error) {
	if err := s.d.Control.Dispatch(ctx, req.Type); err != nil {
		return nil, ToStatus(err)
	}
	return &Ack{Success: true}, nil
}

// SessionServer is the server API for the tabsync.v1.SessionService service.
type SessionServer interface {
	GetStatus(context.Context, *Empty) (*StatusResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *Empty) (*Ack, error)
	Dispatch(context.Context, *DispatchRequest) (*Ack, error)
}

const SessionServiceName = "tabsync.v1.SessionService"

// SessionServiceDesc describes SessionService for grpc.Server registration.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: unary(SessionServiceName, "GetStatus", SessionServer.GetStatus)},
		{MethodName: "Login", Handler: unary(SessionServiceName, "Login", SessionServer.Login)},
		{MethodName: "Logout", Handler: unary(SessionServiceName, "Logout", SessionServer.Logout)},
		{MethodName: "Dispatch", Handler: unary(SessionServiceName, "Dispatch", SessionServer.Dispatch)},
	},
}

// RegisterSessionServer registers srv on s.
func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}
