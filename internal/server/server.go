// Package server is the WebSocket transport. It upgrades HTTP connections,
// registers a session for each client, and feeds inbound messages to the
// protocol dispatcher in arrival order.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/protrack-edu/protrack-server/internal/config"
	"github.com/protrack-edu/protrack-server/internal/logger"
	"github.com/protrack-edu/protrack-server/internal/protocol"
	"github.com/protrack-edu/protrack-server/internal/session"
)

// Server accepts WebSocket connections and owns the set of live clients
type Server struct {
	cfg        *config.Config
	dispatcher *protocol.Dispatcher
	sessions   *session.Registry
	log        *logger.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	connMu  sync.RWMutex
	clients map[string]*Client

	mu      sync.Mutex
	running bool
}

// New creates a server over the given dispatcher and session registry
func New(cfg *config.Config, dispatcher *protocol.Dispatcher, sessions *session.Registry, log *logger.Logger) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		sessions:   sessions,
		log:        log,
		clients:    make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The protocol is authenticated by login, not by origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start begins listening for WebSocket connections
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Listen.Addr(),
		Handler:      mux,
		ReadTimeout:  0, // connections are long-lived; deadlines live on the socket
		WriteTimeout: 0,
	}

	go func() {
		s.log.Info("Server listening on ws://%s/ws", s.cfg.Listen.Addr())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down, closing every live connection
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("Stopping server...")

	s.connMu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.connMu.RUnlock()

	for _, c := range clients {
		c.Stop()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
	}

	s.log.Info("Server stopped")
	return nil
}

// handleWebSocket upgrades one HTTP request into a client connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxConnections > 0 && s.ClientCount() >= s.cfg.MaxConnections {
		s.log.Warn("Connection limit reached, rejecting %s", r.RemoteAddr)
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	client := newClient(conn, s)

	s.trackClient(client)
	s.sessions.Register(client)

	s.log.Info("Client connected: %s (%s, total: %d)", client.ID, r.RemoteAddr, s.ClientCount())

	client.start()
}

// removeClient tears down a client's registration on disconnect
func (s *Server) removeClient(c *Client) {
	s.sessions.Remove(c)

	s.connMu.Lock()
	delete(s.clients, c.ID)
	s.connMu.Unlock()

	s.log.Info("Client disconnected: %s (total: %d)", c.ID, s.ClientCount())
}

func (s *Server) trackClient(c *Client) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.clients[c.ID] = c
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.clients)
}

// maxMessageSize returns the configured inbound message limit
func (s *Server) maxMessageSize() int64 {
	if s.cfg.MaxMessageSize > 0 {
		return s.cfg.MaxMessageSize
	}
	return 64 * 1024
}

// Handler exposes the server's HTTP handler for tests
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// pump timing shared by all clients
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)
