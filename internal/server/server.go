// Package server exposes a session to remote observers over HTTP.
//
// Endpoints:
//   - GET /ws: WebSocket stream of snapshots and deltas; accepts commands
//   - GET /healthz: session status as JSON
//   - GET /scrollback?offset=&count=: scrollback rows as JSON
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trybotster/seshterm/internal/relay"
	"github.com/trybotster/seshterm/internal/session"
)

// Config holds configuration for the server.
type Config struct {
	SendQueue      int           // outbound messages buffered per connection
	WriteTimeout   time.Duration // deadline for one websocket write
	PongWait       time.Duration // read deadline, extended by each pong
	MaxMessageSize int64         // largest accepted client message

	// CheckOrigin is passed to the websocket upgrader. Nil accepts any
	// origin.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		SendQueue:      64,
		WriteTimeout:   10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendQueue <= 0 {
		c.SendQueue = d.SendQueue
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// pingPeriod must be shorter than PongWait.
func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Server serves one session.
type Server struct {
	sess     *session.Session
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// New creates a server for sess. A nil logger uses slog.Default().
func New(sess *session.Session, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	s := &Server{
		sess:  sess,
		cfg:   cfg,
		log:   logger.With("component", "server"),
		conns: make(map[*conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     cfg.CheckOrigin,
	}
	if s.upgrader.CheckOrigin == nil {
		s.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /scrollback", s.handleScrollback)
	return s
}

// Handler returns the HTTP handler for all endpoints.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. It also forwards the
// session's notifications to every connected client.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go s.ForwardNotifications(ctx)

	s.log.Info("Listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("Shutdown failed", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ForwardNotifications sends every session notification to all connected
// clients until ctx is done or the session closes. Clients whose queue is
// full miss the notification.
func (s *Server) ForwardNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.sess.Done():
			return
		case n := <-s.sess.Notifications():
			s.log.Debug("Forwarding notification", "type", n.Type)
			for _, c := range s.connections() {
				if err := c.out.Send(relay.NotificationMessage(n)); err != nil {
					c.log.Debug("Dropped notification", "error", err)
				}
			}
		}
	}
}

// Connections returns the number of open websocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) connections() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) track(c *conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Health is the response from GET /healthz.
type Health struct {
	Status      string `json:"status"`
	Session     string `json:"session"`
	Generation  uint64 `json:"generation"`
	Rows        int    `json:"rows"`
	Cols        int    `json:"cols"`
	Subscribers int    `json:"subscribers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.sess.Snapshot()
	h := Health{
		Status:      "ok",
		Session:     s.sess.ID.String(),
		Generation:  snap.Generation,
		Rows:        snap.Rows,
		Cols:        snap.Cols,
		Subscribers: s.sess.Subscribers(),
	}
	status := http.StatusOK
	select {
	case <-s.sess.Done():
		h.Status = "closed"
		status = http.StatusServiceUnavailable
	default:
	}
	writeJSON(w, status, h)
}

func (s *Server) handleScrollback(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, relay.ErrorMessage(err.Error()))
		return
	}
	count, err := queryInt(r, "count", relay.DefaultScrollbackCount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, relay.ErrorMessage(err.Error()))
		return
	}

	lines, total, err := s.sess.Scrollback(r.Context(), offset, count)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, relay.ScrollbackMessage(offset, total, lines))
	case errors.Is(err, session.ErrOutOfRange):
		writeJSON(w, http.StatusRequestedRangeNotSatisfiable, relay.ErrorMessage(err.Error()))
	case errors.Is(err, session.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, relay.ErrorMessage(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, relay.ErrorMessage(err.Error()))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Warn("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	s.serveConn(r.Context(), ws, r.RemoteAddr)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New("invalid " + key + ": " + v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
