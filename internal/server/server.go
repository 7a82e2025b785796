// Package server accepts websocket connections, authorizes them and streams
// differential frames to viewers while relaying input from controllers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lmittmann/tint"

	"remotedesk/internal/capture"
	"remotedesk/internal/clients"
	"remotedesk/internal/config"
	"remotedesk/internal/frame"
	"remotedesk/internal/input"
	"remotedesk/internal/session"
)

// Routes.
const (
	PathCombined = "/connect_ws"
	PathInput    = "/connect_input_ws"
	PathView     = "/connect_view_ws"
	PathHealth   = "/healthz"
)

// CloseUnauthorized is the close code sent when the handshake secret is refused.
const CloseUnauthorized = 4001

const (
	readLimit    = 8 << 20
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Deps are the host facilities the server drives.
type Deps struct {
	Capturer capture.Capturer
	Encoder  capture.Encoder
	Injector input.Injector
	Logger   *slog.Logger
}

// Server is the remote desktop endpoint.
type Server struct {
	cfg config.Config
	log *slog.Logger

	capturer   capture.Capturer
	injector   input.Injector
	differ     *frame.Differ
	dispatcher *input.Dispatcher
	clients    *clients.Manager

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	started  bool

	// ctx ends every session when cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

// New validates cfg and returns a Server.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if deps.Capturer == nil || deps.Encoder == nil || deps.Injector == nil {
		return nil, errors.New("capturer, encoder and injector are required")
	}
	c := *cfg
	c.Clamp()
	if err := config.Validate(&c); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctx:        ctx,
		cancel:     cancel,
		cfg:        c,
		log:        log,
		capturer:   deps.Capturer,
		injector:   deps.Injector,
		differ:     frame.NewDiffer(deps.Encoder, c.Thresholds()),
		dispatcher: input.NewDispatcher(deps.Injector, log),
		clients:    clients.NewManager(),
	}, nil
}

// Handler returns the routes for the configured topology.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.cfg.Topology == config.TopologyCombined {
		mux.HandleFunc(PathCombined, s.handleWS(session.RoleCombined))
	} else {
		mux.HandleFunc(PathInput, s.handleWS(session.RoleInput))
		mux.HandleFunc(PathView, s.handleWS(session.RoleView))
	}
	mux.HandleFunc(PathHealth, s.handleHealth)
	return mux
}

// Start listens and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.started = true
	s.mu.Unlock()
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	s.log.Info("listening", "addr", listener.Addr().String(),
		"topology", s.cfg.Topology, "model", s.cfg.Model)

	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop shuts the listener down, closes every live connection and waits for
// their sessions to finish cleanup.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.started && s.server != nil {
		err = s.server.Shutdown(ctx)
		s.started = false
	}
	s.cancel()
	s.clients.CloseAll()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, fmt.Errorf("waiting for sessions: %w", ctx.Err()))
	}
	if err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// ListenAddr returns the address the server is listening on, or "" if it
// has not started.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients exposes the live connection registry.
func (s *Server) Clients() *clients.Manager { return s.clients }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients, conns := s.clients.Count()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"clients":     clients,
		"connections": conns,
	})
}

func (s *Server) handleWS(role session.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		clientID := q.Get("clientId")
		if clientID == "" {
			clientID = clients.DefaultID
		}
		log := s.log.With("remote", r.RemoteAddr, "client", clientID)

		// Counted before the hijack so Shutdown still tracks the request.
		s.conns.Add(1)
		defer s.conns.Done()

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade failed", tint.Err(err))
			return
		}

		secrets := session.Secrets{Control: s.cfg.ControlSecret, View: s.cfg.ViewSecret}
		sess, err := session.Handshake(q.Get("password"), secrets, role, s.injector, log)
		if err != nil {
			log.Warn("connection rejected", "role", role.String(), tint.Err(err))
			reject(ws)
			return
		}

		newConn(s, ws, sess, clientID).serve(s.ctx)
	}
}

func reject(ws *websocket.Conn) {
	msg := websocket.FormatCloseMessage(CloseUnauthorized, "unauthorized")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	_ = ws.Close()
}
