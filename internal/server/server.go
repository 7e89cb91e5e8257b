package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gravitas-games/sortshift/internal/config"
	"github.com/gravitas-games/sortshift/internal/game"
	"github.com/gravitas-games/sortshift/internal/logging"
)

// Game accepts commands from connections.
type Game interface {
	Enqueue(cmd game.Command) error
}

// Server represents the game server
type Server struct {
	config    *config.Config
	session   *Session
	game      Game
	validator TokenValidator
	upgrader  websocket.Upgrader
	httpSrv   *http.Server
	logger    *slog.Logger

	// Connection tracking
	connections map[*Connection]bool
	connMu      sync.RWMutex

	// Shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config, session *Session, g Game, validator TokenValidator, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config:      cfg,
		session:     session,
		game:        g,
		validator:   validator,
		logger:      logging.OrDiscard(logger),
		connections: make(map[*Connection]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{"access_token"},
		CheckOrigin:     srv.checkOrigin,
	}
	return srv
}

// checkOrigin allows every origin unless server.allowed_origins is set.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.config.Server.AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range allowed {
		if o == origin {
			return true
		}
	}
	return false
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start begins listening for connections
func (s *Server) Start(addr string) error {
	log.Printf("Starting WebSocket server on %s", addr)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("WebSocket endpoint: ws://%s/ws", addr)
	log.Printf("Health endpoint: http://%s/health", addr)
	log.Printf("Metrics endpoint: http://%s/metrics", addr)

	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	log.Println("Shutting down server...")

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	s.connMu.RLock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.connMu.RUnlock()
	for _, conn := range conns {
		conn.Close()
	}

	log.Println("Server shutdown complete")
	return nil
}

// ConnectionCount returns the number of open websocket connections
func (s *Server) ConnectionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

// handleWebSocket handles WebSocket connection requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := extractTokenFromHeader(r)
	if tokenString == "" {
		s.logger.Info("missing token", "remote", r.RemoteAddr)
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}

	player, err := s.validator.ValidateToken(r.Context(), tokenString)
	if err != nil {
		s.logger.Info("invalid token", "remote", r.RemoteAddr, "error", err)
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := NewConnection(ws, s, player)

	s.connMu.Lock()
	s.connections[conn] = true
	s.connMu.Unlock()

	s.logger.Info("connection established", "player_id", player.ID, "username", player.Username, "remote", r.RemoteAddr)

	conn.Handle()

	s.connMu.Lock()
	delete(s.connections, conn)
	s.connMu.Unlock()

	s.logger.Info("connection closed", "player_id", player.ID, "remote", r.RemoteAddr)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","players":%d}`, s.session.GetStatus().PlayerCount)
}
