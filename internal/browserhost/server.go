// Package browserhost is the local websocket endpoint the browser extension
// connects to. The extension forwards tab lifecycle events here and receives
// notifications to render.
package browserhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/matheus3301/tabsync/internal/bus"
	"github.com/matheus3301/tabsync/internal/notify"
	"github.com/matheus3301/tabsync/internal/presence"
	"go.uber.org/zap"
)

// Path is the websocket endpoint.
const Path = "/tabs"

// Options configures a Server.
type Options struct {
	Addr           string
	OriginPatterns []string
}

// Server accepts extension connections.
type Server struct {
	opts    Options
	tracker *presence.Tracker
	bus     *bus.Bus
	logger  *zap.Logger

	httpSrv *http.Server
	ln      net.Listener
	cancel  context.CancelFunc

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

// New creates a browser host server.
func New(opts Options, tracker *presence.Tracker, b *bus.Bus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		opts:    opts,
		tracker: tracker,
		bus:     b,
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler serving Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	return mux
}

// Start listens on the configured address and begins forwarding
// notifications to connected extensions.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.ln = ln
	s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("browser host stopped", zap.Error(err))
		}
	}()
	s.StartForwarding(ctx)
	s.logger.Info("browser host listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// StartForwarding relays notify.message events to every connected extension.
func (s *Server) StartForwarding(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ch, unsub := s.bus.Subscribe("notify.", 64)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if note, ok := evt.Payload.(notify.Notification); ok {
					s.broadcast(ctx, outbound{Type: "notification", Notification: &note})
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop closes every extension connection and the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	for _, c := range s.snapshotClients() {
		_ = c.Close(websocket.StatusGoingAway, "daemon shutting down")
	}
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Clients returns the number of connected extensions.
func (s *Server) Clients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.OriginPatterns,
	})
	if err != nil {
		s.logger.Warn("extension websocket accept failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(1 << 20)

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()
	s.logger.Info("extension connected", zap.String("remote", r.RemoteAddr))

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Info("extension disconnected")
	}()

	// r.Context() ends when the handler returns, so reads use Background.
	for {
		typ, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if err := s.HandleFrame(data); err != nil {
			s.logger.Warn("skipping malformed extension frame", zap.Error(err))
		}
	}
}

func (s *Server) broadcast(ctx context.Context, msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	for _, c := range s.snapshotClients() {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := c.Write(wctx, websocket.MessageText, data); err != nil {
			s.logger.Debug("extension write failed", zap.Error(err))
		}
		cancel()
	}
}

func (s *Server) snapshotClients() []*websocket.Conn {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}
