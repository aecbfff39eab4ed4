package daemon

import (
	"context"

	"github.com/matheus3301/tabsync/internal/api"
	"github.com/matheus3301/tabsync/internal/backend"
	"github.com/matheus3301/tabsync/internal/browserhost"
	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/chat"
	"github.com/matheus3301/tabsync/internal/config"
	"github.com/matheus3301/tabsync/internal/control"
	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/lock"
	"github.com/matheus3301/tabsync/internal/logging"
	"github.com/matheus3301/tabsync/internal/notify"
	"github.com/matheus3301/tabsync/internal/presence"
	"github.com/matheus3301/tabsync/internal/protocol"
	"github.com/matheus3301/tabsync/internal/realtime"
	"github.com/matheus3301/tabsync/internal/session"
	"github.com/matheus3301/tabsync/internal/status"
	"github.com/matheus3301/tabsync/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string         // optional override for testing; empty = use default
	Config      *config.Config // optional override; nil = load config.toml
	Quiet       bool           // log to the session file only
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideCredentials,
			provideBackend,
			provideChatStore,
			provideRouter,
			provideManager,
			provideSupervisor,
			presence.NewTracker,
			providePublisher,
			provideCache,
			provideNotifier,
			provideBrowserHost,
			provideController,
			provideSessionService,
			providePresenceService,
			api.NewChatService,
			provideFriendsService,
			provideEventService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Path:    session.LogPath(p.SessionName),
		Session: p.SessionName,
		Level:   cfg.LogLevel,
		Quiet:   p.Quiet,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), p.SessionName)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is never opened by a second daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCredentials(db *store.DB) *credential.Store {
	return credential.NewStore(db)
}

func provideBackend(cfg *config.Config, creds *credential.Store, logger *zap.Logger) *backend.Client {
	return backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.RequestTimeout.Duration,
	}, creds, logger.Named("backend"))
}

func provideChatStore(client *backend.Client, creds *credential.Store, b *bus.Bus, logger *zap.Logger) *chat.Store {
	return chat.NewStore(client, creds, b, logger.Named("chat"))
}

// provideRouter wires realtime NEW_MESSAGE frames into the chat store.
// Friend presence frames are re-emitted on the bus by the router itself.
func provideRouter(b *bus.Bus, chats *chat.Store, logger *zap.Logger) *realtime.Router {
	r := realtime.NewRouter(b, logger.Named("router"))
	r.Handle(protocol.TypeNewMessage, func(_ context.Context, in protocol.Inbound) error {
		return chats.HandleIncomingRaw(in.Message)
	})
	return r
}

func provideManager(cfg *config.Config, creds *credential.Store, m *status.Machine, r *realtime.Router, logger *zap.Logger) *realtime.Manager {
	return realtime.NewManager(realtime.Options{
		URL:               cfg.RealtimeURL(),
		HeartbeatInterval: cfg.HeartbeatInterval.Duration,
		DialTimeout:       cfg.DialTimeout.Duration,
	}, creds, m, r, logger.Named("realtime"))
}

func provideSupervisor(cfg *config.Config, mgr *realtime.Manager, logger *zap.Logger) *realtime.Supervisor {
	return realtime.NewSupervisor(mgr, cfg.ReconnectInterval.Duration, logger.Named("supervisor"))
}

func providePublisher(t *presence.Tracker, mgr *realtime.Manager, creds *credential.Store, b *bus.Bus, logger *zap.Logger) *presence.Publisher {
	return presence.NewPublisher(t, mgr, creds, b, logger.Named("publisher"))
}

func provideCache(db *store.DB, b *bus.Bus, logger *zap.Logger) *presence.Cache {
	return presence.NewCache(db, b, logger.Named("presence"))
}

func provideNotifier(creds *credential.Store, b *bus.Bus, logger *zap.Logger) *notify.Notifier {
	return notify.New(creds, b, logger.Named("notify"))
}

func provideBrowserHost(cfg *config.Config, t *presence.Tracker, b *bus.Bus, logger *zap.Logger) *browserhost.Server {
	return browserhost.New(browserhost.Options{
		Addr:           cfg.BrowserListen,
		OriginPatterns: cfg.BrowserOrigins,
	}, t, b, logger.Named("browserhost"))
}

type controllerDeps struct {
	fx.In

	Manager    *realtime.Manager
	Supervisor *realtime.Supervisor
	Publisher  *presence.Publisher
	Creds      *credential.Store
	API        *backend.Client
	Chat       *chat.Store
	Cache      *presence.Cache
	Logger     *zap.Logger
}

func provideController(d controllerDeps) *control.Controller {
	return control.New(control.Deps{
		Conn:       d.Manager,
		Supervisor: d.Supervisor,
		Publisher:  d.Publisher,
		Creds:      d.Creds,
		API:        d.API,
		Chat:       d.Chat,
		Cache:      d.Cache,
		Logger:     d.Logger.Named("control"),
	})
}

type sessionServiceDeps struct {
	fx.In

	Params     Params
	Machine    *status.Machine
	Manager    *realtime.Manager
	Supervisor *realtime.Supervisor
	Creds      *credential.Store
	Controller *control.Controller
	Host       *browserhost.Server
	Chat       *chat.Store
}

func provideSessionService(d sessionServiceDeps) *api.SessionService {
	return api.NewSessionService(api.SessionDeps{
		Session:    d.Params.SessionName,
		Machine:    d.Machine,
		Conn:       d.Manager,
		Supervisor: d.Supervisor,
		Creds:      d.Creds,
		Control:    d.Controller,
		Browser:    d.Host,
		Pending:    d.Chat.PendingCount,
	})
}

func provideFriendsService(client *backend.Client, c *control.Controller, logger *zap.Logger) *api.FriendsService {
	return api.NewFriendsService(client, c, logger)
}

func providePresenceService(t *presence.Tracker, cache *presence.Cache, c *control.Controller) *api.PresenceService {
	return api.NewPresenceService(t, cache, c)
}

func provideEventService(p Params, b *bus.Bus, logger *zap.Logger) *api.EventService {
	return api.NewEventService(b, p.SessionName, logger.Named("events"))
}

type lifecycleDeps struct {
	fx.In

	Server     *Server
	Lock       *lock.Lock
	DB         *store.DB
	Manager    *realtime.Manager
	Supervisor *realtime.Supervisor
	Publisher  *presence.Publisher
	Cache      *presence.Cache
	Notifier   *notify.Notifier
	Host       *browserhost.Server
	Controller *control.Controller
	Logger     *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	logger := d.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Bus consumers first, so nothing published during startup is missed.
			bg := context.Background()
			d.Cache.Start(bg)
			d.Notifier.Start(bg)
			d.Publisher.Start(bg)

			go func() {
				if err := d.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if err := d.Host.Start(bg); err != nil {
				return err
			}

			d.Controller.Startup(bg)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Supervisor.Stop()
			d.Manager.Disconnect()
			d.Publisher.Stop()
			d.Notifier.Stop()
			d.Cache.Stop()
			if err := d.Host.Stop(ctx); err != nil {
				logger.Warn("error stopping browser host", zap.Error(err))
			}
			d.Server.Stop(ctx)
			if err := d.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := d.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
