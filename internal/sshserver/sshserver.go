// Package sshserver lets SSH clients attach to a session.
//
// Each SSH connection gets its own subscription. The screen is drawn as
// ANSI from a full snapshot, then kept current with deltas. Keystrokes are
// injected into the session and window changes resize it. Connecting as
// user "view" attaches read-only.
package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gliderlabs/ssh"
	"github.com/google/uuid"

	"github.com/trybotster/seshterm/internal/relay"
	"github.com/trybotster/seshterm/internal/render"
	"github.com/trybotster/seshterm/internal/session"
	"github.com/trybotster/seshterm/internal/vt100"
)

// ViewOnlyUser is the SSH user name for read-only attach.
const ViewOnlyUser = "view"

// Config holds configuration for the SSH server.
type Config struct {
	// HostKeyFile is a PEM private key. Empty generates a key per run.
	HostKeyFile string
}

// Server is an SSH server for terminal attach.
type Server struct {
	listener net.Listener
	sess     *session.Session
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*client // SSH session ID -> client
}

type client struct {
	id       string
	user     string
	viewOnly bool
	ssh      ssh.Session
}

// New creates a new SSH server.
func New(listener net.Listener, sess *session.Session, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		listener: listener,
		sess:     sess,
		cfg:      cfg,
		logger:   logger.With("component", "ssh"),
		clients:  make(map[string]*client),
	}
}

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	server := &ssh.Server{
		Handler: s.handleSession,
		PtyCallback: func(ctx ssh.Context, pty ssh.Pty) bool {
			return true // Allow PTY allocation
		},
		SubsystemHandlers: map[string]ssh.SubsystemHandler{
			"sftp": nil, // Disable SFTP
		},
	}
	if s.cfg.HostKeyFile != "" {
		if err := server.SetOption(ssh.HostKeyFile(s.cfg.HostKeyFile)); err != nil {
			return fmt.Errorf("loading host key: %w", err)
		}
	}

	// Accept connections until context is cancelled
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	s.logger.Info("SSH server starting", "addr", s.listener.Addr())

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("Accept error", "error", err)
			continue
		}

		go server.HandleConn(conn)
	}
}

// Clients returns the number of attached SSH sessions.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleSession(sshSess ssh.Session) {
	c := &client{
		id:       uuid.NewString(),
		user:     sshSess.User(),
		viewOnly: sshSess.User() == ViewOnlyUser,
		ssh:      sshSess,
	}
	log := s.logger.With("user", c.user, "client", c.id, "view_only", c.viewOnly)
	log.Info("SSH session started", "remote", sshSess.RemoteAddr())
	defer log.Info("SSH session ended")

	ptyReq, winCh, isPty := sshSess.Pty()
	if !isPty {
		fmt.Fprintln(sshSess, "seshterm needs a terminal; connect with ssh -t")
		sshSess.Exit(1)
		return
	}

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(sshSess.Context())
	defer cancel()

	if !c.viewOnly {
		s.resize(ctx, log, ptyReq.Window)
		go func() {
			for win := range winCh {
				s.resize(ctx, log, win)
			}
		}()
		go func() {
			s.copyInput(ctx, log, sshSess)
			// The client closed stdin or went away.
			cancel()
		}()
	}

	sub := s.sess.Subscribe()
	defer sub.Close()

	err := s.stream(ctx, sub, sshSess)
	switch {
	case errors.Is(err, session.ErrClosed):
		io.WriteString(sshSess, "\x1b[0m\r\n[session closed]\r\n")
		sshSess.Exit(0)
	case err != nil && ctx.Err() == nil:
		log.Warn("SSH stream failed", "error", err)
		sshSess.Exit(1)
	default:
		sshSess.Exit(0)
	}
}

func (s *Server) resize(ctx context.Context, log *slog.Logger, win ssh.Window) {
	if err := s.sess.Resize(ctx, win.Height, win.Width); err != nil {
		log.Warn("Failed to resize session", "rows", win.Height, "cols", win.Width, "error", err)
	}
}

// copyInput injects keystrokes until the client stops sending.
func (s *Server) copyInput(ctx context.Context, log *slog.Logger, r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ierr := s.sess.Inject(ctx, buf[:n]); ierr != nil {
				if errors.Is(ierr, session.ErrClosed) || ctx.Err() != nil {
					return
				}
				log.Warn("Dropped SSH input", "bytes", n, "error", ierr)
			}
		}
		if err != nil {
			return
		}
	}
}

// stream renders subscription updates to w until ctx is done or the
// session closes.
func (s *Server) stream(ctx context.Context, sub *session.Subscription, w io.Writer) error {
	id := s.sess.ID.String()
	mirror := relay.NewMirror()
	for {
		u, err := sub.Next(ctx)
		if err != nil {
			return err
		}
		prev := mirror.Snapshot()
		msg := relay.UpdateMessage(id, u)
		if _, err := mirror.Apply(&msg); err != nil {
			return err
		}
		if _, err := w.Write(frame(prev, mirror.Snapshot(), msg)); err != nil {
			return err
		}
	}
}

// frame renders one update. A new snapshot or a size change redraws the
// whole screen.
func frame(prev, cur *vt100.Snapshot, msg relay.ServerMessage) []byte {
	var out []byte
	if msg.Type == relay.TypeSnapshot || prev == nil || prev.Rows != cur.Rows || prev.Cols != cur.Cols {
		out = render.Snapshot(cur)
	} else {
		out = render.Delta(*msg.Delta)
		if cur.Title != prev.Title {
			out = append(out, render.Title(cur.Title)...)
		}
	}
	if prev != nil && cur.Bells > prev.Bells {
		out = append(out, '\a')
	}
	return out
}
