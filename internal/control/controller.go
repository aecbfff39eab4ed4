// Package control implements the daemon's background message contract:
// starting and stopping the realtime connection around login state and
// serving on-demand presence publishes.
package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/chat"
	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/presence"
	"github.com/matheus3301/tabsync/internal/store"
	"go.uber.org/zap"
)

// Message types accepted by Dispatch.
const (
	LoginSuccess     = "LOGIN_SUCCESS"
	Logout           = "LOGOUT"
	PopupOpened      = "POPUP_OPENED"
	PublishActiveTab = "PUBLISH_ACTIVE_TAB"
)

// ErrUnknownMessage is returned by Dispatch for an unrecognised type.
var ErrUnknownMessage = errors.New("unknown message type")

// Connection is the realtime connection lifecycle.
type Connection interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// Supervisor is the reconnect loop.
type Supervisor interface {
	Start() bool
	Stop()
}

// ActiveTabPublisher publishes the focused tab on demand.
type ActiveTabPublisher interface {
	PublishActiveTab(ctx context.Context) error
}

// Credentials reads and writes the stored session credential.
type Credentials interface {
	Load() (*credential.Credential, error)
	Save(c *credential.Credential) error
	Clear() error
}

// Backend is the REST surface used by login and friend refresh.
type Backend interface {
	Login(ctx context.Context, identifier, password string) (*backend.LoginResult, error)
	FriendsWithStatus(ctx context.Context) ([]backend.Friend, error)
}

// Controller ties login state to the connection, supervisor, chat store and
// presence cache.
type Controller struct {
	conn   Connection
	sup    Supervisor
	pub    ActiveTabPublisher
	creds  Credentials
	api    Backend
	chat   *chat.Store
	cache  *presence.Cache
	logger *zap.Logger
}

// Deps groups the Controller's collaborators.
type Deps struct {
	Conn       Connection
	Supervisor Supervisor
	Publisher  ActiveTabPublisher
	Creds      Credentials
	API        Backend
	Chat       *chat.Store
	Cache      *presence.Cache
	Logger     *zap.Logger
}

// New creates a controller.
func New(d Deps) *Controller {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		conn:   d.Conn,
		sup:    d.Supervisor,
		pub:    d.Publisher,
		creds:  d.Creds,
		api:    d.API,
		chat:   d.Chat,
		cache:  d.Cache,
		logger: logger,
	}
}

// Dispatch handles one background message. PUBLISH_ACTIVE_TAB returns once
// the frame has been written.
func (c *Controller) Dispatch(ctx context.Context, msgType string) error {
	c.logger.Debug("dispatch", zap.String("type", msgType))
	switch msgType {
	case LoginSuccess, PopupOpened:
		c.start(ctx)
		return nil
	case Logout:
		c.stop()
		return nil
	case PublishActiveTab:
		return c.pub.PublishActiveTab(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msgType)
	}
}

// Startup runs at daemon start, like a browser startup: connect if a
// credential is stored and keep the supervisor running. It does not wait
// for the dial.
func (c *Controller) Startup(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	c.sup.Start()
	go func() {
		if err := c.conn.Connect(ctx); err != nil {
			c.logger.Warn("startup connect failed, supervisor will retry", zap.Error(err))
		}
	}()
	if _, err := c.creds.Load(); err != nil {
		return
	}
	go c.refresh(ctx)
}

// Login authenticates against the backend, stores the credential and
// brings the connection up.
func (c *Controller) Login(ctx context.Context, identifier, password string) (*credential.Credential, error) {
	res, err := c.api.Login(ctx, identifier, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	cred := &credential.Credential{
		ID:          res.ID,
		Token:       res.Token,
		Username:    res.Username,
		DisplayName: res.DisplayName,
	}
	if err := c.creds.Save(cred); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}
	c.logger.Info("logged in", zap.String("user_id", cred.ID), zap.String("username", cred.Username))

	if err := c.Dispatch(ctx, LoginSuccess); err != nil {
		return nil, err
	}
	c.refresh(ctx)
	return cred, nil
}

// Logout tears down the connection and forgets the credential and every
// cached conversation and presence record.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.Dispatch(ctx, Logout); err != nil {
		return err
	}
	if err := c.creds.Clear(); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	c.chat.Reset()
	if err := c.cache.Clear(); err != nil {
		c.logger.Warn("failed to clear presence cache", zap.Error(err))
	}
	c.logger.Info("logged out")
	return nil
}

// RefreshFriends reseeds the presence cache from the friends-with-status listing.
func (c *Controller) RefreshFriends(ctx context.Context) error {
	friends, err := c.api.FriendsWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetch friends: %w", err)
	}
	return c.cache.Seed(ToPresence(friends))
}

func (c *Controller) start(ctx context.Context) {
	if err := c.conn.Connect(ctx); err != nil {
		c.logger.Warn("connect failed, supervisor will retry", zap.Error(err))
	}
	c.sup.Start()
}

// stop halts the supervisor first so no tick can redial between the
// disconnect and the credential being cleared.
func (c *Controller) stop() {
	c.sup.Stop()
	c.conn.Disconnect()
}

func (c *Controller) refresh(ctx context.Context) {
	if res := c.chat.LoadConversations(ctx); !res.Success {
		c.logger.Warn("initial conversation load failed", zap.String("message", res.Message))
	}
	if err := c.RefreshFriends(ctx); err != nil {
		c.logger.Warn("initial friend load failed", zap.Error(err))
	}
}

// ToPresence converts the friends listing to presence cache records.
func ToPresence(friends []backend.Friend) []store.FriendPresence {
	out := make([]store.FriendPresence, 0, len(friends))
	for _, f := range friends {
		p := store.FriendPresence{
			FriendID:    f.ID,
			Username:    f.Username,
			DisplayName: f.DisplayName,
			Online:      f.IsOnline,
			LastSeen:    f.LastSeen,
		}
		if f.ActiveTab != nil {
			p.ActiveTab = &store.TabRef{ID: f.ActiveTab.ID, Title: f.ActiveTab.Title, URL: f.ActiveTab.URL}
		}
		for _, t := range f.AllTabs {
			p.Tabs = append(p.Tabs, store.TabRef{ID: t.ID, Title: t.Title, URL: t.URL})
		}
		out = append(out, p)
	}
	return out
}
