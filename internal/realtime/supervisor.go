package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultReconnect = 15 * time.Second

// Connector is the part of Manager the supervisor drives.
type Connector interface {
	Connect(ctx context.Context) error
	IsConnected() bool
}

// Supervisor periodically reconnects a dropped connection. At most one
// ticker runs at a time; Start while running is a no-op.
type Supervisor struct {
	conn     Connector
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSupervisor creates a supervisor ticking every interval.
func NewSupervisor(conn Connector, interval time.Duration, logger *zap.Logger) *Supervisor {
	if interval <= 0 {
		interval = defaultReconnect
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{conn: conn, interval: interval, logger: logger}
}

// Start begins the reconnect loop. It reports whether a new loop was started.
func (s *Supervisor) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Debug("reconnect supervisor started", zap.Duration("interval", s.interval))
	return true
}

// Stop ends the reconnect loop and waits for it to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Debug("reconnect supervisor stopped")
}

// Running reports whether the loop is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.conn.IsConnected() {
				continue
			}
			s.logger.Info("connection down, reconnecting")
			if err := s.conn.Connect(ctx); err != nil {
				s.logger.Warn("reconnect failed", zap.Error(err))
			}
		}
	}
}
