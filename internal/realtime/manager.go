// Package realtime owns the single persistent connection to the presence
// backend: authentication, heartbeats, inbound dispatch and reconnection.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/matheus3301/tabsync/internal/credential"
	"github.com/matheus3301/tabsync/internal/protocol"
	"github.com/matheus3301/tabsync/internal/status"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send when no authenticated connection exists.
var ErrNotConnected = errors.New("realtime connection not open")

const (
	defaultHeartbeat   = 10 * time.Second
	defaultDialTimeout = 10 * time.Second
	writeTimeout       = 5 * time.Second
	readLimit          = 1 << 20
)

// Options configures a Manager.
type Options struct {
	URL               string
	HeartbeatInterval time.Duration
	DialTimeout       time.Duration
}

// Manager holds at most one live connection. Connection state lives in the
// status machine; the transport handle never leaves this type.
type Manager struct {
	opts    Options
	creds   credential.Source
	machine *status.Machine
	router  *Router
	logger  *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	gen      uint64
	hbCancel context.CancelFunc
}

// NewManager creates a connection manager and registers the auth result
// handler on router.
func NewManager(opts Options, creds credential.Source, machine *status.Machine, router *Router, logger *zap.Logger) *Manager {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeat
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		opts:    opts,
		creds:   creds,
		machine: machine,
		router:  router,
		logger:  logger,
	}
	router.Handle(protocol.TypeAuth, m.handleAuth)
	return m
}

// Connect opens and authenticates the connection. It is a no-op unless the
// manager is disconnected, and silently does nothing when no credential is
// stored. A dial failure leaves the manager disconnected and is returned.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if !m.machine.Is(status.Disconnected) {
		m.mu.Unlock()
		return nil
	}
	cred, err := m.creds.Load()
	if err != nil {
		m.mu.Unlock()
		m.logger.Info("no credential, not connecting", zap.Error(err))
		return nil
	}
	if err := m.machine.Transition(status.Connecting); err != nil {
		m.mu.Unlock()
		return err
	}
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.logger.Info("connecting", zap.String("url", m.opts.URL))
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, m.opts.URL, nil)
	cancel()

	m.mu.Lock()
	if gen != m.gen {
		// Disconnected while dialing.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.CloseNow()
		}
		return nil
	}
	if err != nil {
		_ = m.machine.Transition(status.Disconnected)
		m.mu.Unlock()
		m.logger.Warn("dial failed", zap.Error(err))
		return fmt.Errorf("dial %s: %w", m.opts.URL, err)
	}
	m.mu.Unlock()
	conn.SetReadLimit(readLimit)

	// The auth write runs unlocked; the state stays Connecting until it lands.
	if err := writeFrame(ctx, conn, protocol.NewAuth(cred.Token)); err != nil {
		_ = conn.CloseNow()
		m.mu.Lock()
		if gen == m.gen {
			_ = m.machine.Transition(status.Disconnected)
		}
		m.mu.Unlock()
		m.logger.Warn("send auth failed", zap.Error(err))
		return fmt.Errorf("send auth: %w", err)
	}
	m.logger.Info("auth frame sent", zap.String("user_id", cred.ID))

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		_ = conn.CloseNow()
		return nil
	}
	m.conn = conn
	if err := m.machine.Transition(status.Authenticated); err != nil {
		m.conn = nil
		_ = conn.CloseNow()
		_ = m.machine.Transition(status.Disconnected)
		return err
	}
	m.startHeartbeat(conn)
	go m.readLoop(conn, gen)
	return nil
}

// Disconnect closes the connection. The handle and heartbeat are cleared
// before it returns, so an immediate Connect is safe.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	state := m.machine.Current()
	if state != status.Connecting && state != status.Authenticated {
		m.mu.Unlock()
		return
	}
	_ = m.machine.Transition(status.Closing)
	m.gen++
	m.stopHeartbeat()
	conn := m.conn
	m.conn = nil
	_ = m.machine.Transition(status.Disconnected)
	m.mu.Unlock()

	m.logger.Info("disconnected")
	if conn != nil {
		go func() { _ = conn.Close(websocket.StatusNormalClosure, "logout") }()
	}
}

// IsConnected reports whether an authenticated connection is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.machine.Is(status.Authenticated)
}

// HeartbeatActive reports whether the heartbeat timer is running.
func (m *Manager) HeartbeatActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hbCancel != nil
}

// State returns the current connection state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// Send writes v as a JSON text frame.
func (m *Manager) Send(ctx context.Context, v any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return writeFrame(ctx, conn, v)
}

func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	ctx := context.Background()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			m.reset(gen, err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		m.router.Dispatch(ctx, data)
	}
}

// reset is the single place a dropped connection returns the manager to
// Disconnected.
func (m *Manager) reset(gen uint64, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.gen++
	m.stopHeartbeat()
	m.conn = nil
	_ = m.machine.Transition(status.Disconnected)

	if websocket.CloseStatus(cause) == websocket.StatusNormalClosure {
		m.logger.Info("connection closed by server")
	} else {
		m.logger.Warn("connection lost", zap.Error(cause))
	}
}

func (m *Manager) handleAuth(_ context.Context, in protocol.Inbound) error {
	if !in.AuthFailed {
		return nil
	}
	m.logger.Warn("authentication rejected by server")
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		// The read loop observes the close and resets state.
		return conn.CloseNow()
	}
	return nil
}

// startHeartbeat must be called with mu held.
func (m *Manager) startHeartbeat(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	m.hbCancel = cancel
	interval := m.opts.HeartbeatInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !m.IsConnected() {
					continue
				}
				if err := writeFrame(ctx, conn, protocol.NewPing()); err != nil {
					m.logger.Debug("heartbeat failed", zap.Error(err))
				}
			}
		}
	}()
}

// stopHeartbeat must be called with mu held.
func (m *Manager) stopHeartbeat() {
	if m.hbCancel != nil {
		m.hbCancel()
		m.hbCancel = nil
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
