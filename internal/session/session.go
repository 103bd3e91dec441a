// Package session owns one emulated terminal and makes its state
// observable and controllable from other goroutines.
//
// A Session has exactly one writer: the goroutine calling Process (usually
// Run). Everything else talks to it through queued commands and
// subscriptions. Commands are applied by the writer at the end of the
// current batch. Subscribers receive immutable snapshots and deltas keyed
// by generation and can never block the writer; a subscriber that falls
// too far behind is resynchronized with a full snapshot.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/trybotster/seshterm/internal/interp"
	"github.com/trybotster/seshterm/internal/notification"
	"github.com/trybotster/seshterm/internal/vt100"
)

var (
	// ErrInvalidSize is returned by Resize for zero or negative dimensions.
	ErrInvalidSize = vt100.ErrInvalidSize
	// ErrOutOfRange is returned by scrollback queries outside the history.
	ErrOutOfRange = vt100.ErrOutOfRange
	// ErrClosed is returned once the session or subscription is closed.
	ErrClosed = errors.New("session closed")
	// ErrInputFull is returned when injected input cannot be queued.
	ErrInputFull = errors.New("input queue full")
)

// Config holds the session limits.
type Config struct {
	Rows       int
	Cols       int
	Scrollback int
	// History is the number of deltas kept for Resume.
	History int
	// QueueSize bounds the undelivered deltas per subscriber.
	QueueSize int
	// InputQueue bounds the pending writes toward the child.
	InputQueue int
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		Rows:       vt100.DefaultRows,
		Cols:       vt100.DefaultCols,
		Scrollback: vt100.DefaultScrollback,
		History:    256,
		QueueSize:  64,
		InputQueue: 256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Rows <= 0 {
		c.Rows = d.Rows
	}
	if c.Cols <= 0 {
		c.Cols = d.Cols
	}
	if c.Scrollback < 0 {
		c.Scrollback = 0
	}
	if c.History <= 0 {
		c.History = d.History
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.InputQueue <= 0 {
		c.InputQueue = d.InputQueue
	}
	return c
}

// Option configures a Session.
type Option func(*Session)

// WithInputSink sets where injected input and device replies are written,
// normally the child's pty.
func WithInputSink(w io.Writer) Option {
	return func(s *Session) {
		s.sink = w
	}
}

// WithResizer registers a function called after every successful resize,
// normally to resize the child's pty.
func WithResizer(fn func(rows, cols int) error) Option {
	return func(s *Session) {
		s.resizer = fn
	}
}

// Session is one emulated terminal and its observers.
type Session struct {
	// ID is the unique identifier for this session.
	ID uuid.UUID

	cfg     Config
	log     *slog.Logger
	sink    io.Writer
	resizer func(rows, cols int) error

	// emu is owned by the writer.
	emu *interp.Emulator

	// mu guards the published state.
	mu      sync.Mutex
	snap    *vt100.Snapshot
	history []vt100.Delta

	// cmdMu guards pending; wake signals an idle writer.
	cmdMu   sync.Mutex
	pending []pendingCommand
	wake    chan struct{}

	// subs is replaced, never modified, so the writer can range over it
	// without holding a lock.
	subsMu sync.Mutex
	subs   atomic.Pointer[[]*Subscription]

	input         chan []byte
	notifications chan notification.Notification

	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a session. A nil logger uses slog.Default().
func New(cfg Config, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	s := &Session{
		ID:            uuid.New(),
		cfg:           cfg,
		sink:          io.Discard,
		wake:          make(chan struct{}, 1),
		input:         make(chan []byte, cfg.InputQueue),
		notifications: make(chan notification.Notification, 100),
		closed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.With("session", s.ID.String())
	s.emu = interp.NewEmulator(cfg.Rows, cfg.Cols, cfg.Scrollback, s.log, interp.WithReplier(replier{s}))
	s.snap, _ = s.emu.Terminal().Commit(nil)
	empty := []*Subscription{}
	s.subs.Store(&empty)

	go s.pumpInput()
	return s
}

// Config returns the effective configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Process feeds child output to the terminal, applies queued commands and
// publishes the result. It must only be called from the writer goroutine.
// Process(nil) just reaches a safe point.
func (s *Session) Process(data []byte) {
	if len(data) > 0 {
		s.emu.Process(data)
	}
	s.applyCommands()
	s.publish()
}

// Run is the writer loop for a live byte source. Chunks read from src are
// processed in arrival order; queued commands are applied between chunks
// or as soon as they arrive while src is idle. Run returns nil when src
// reaches EOF and ErrClosed once the session is closed.
func (s *Session) Run(ctx context.Context, src io.Reader) error {
	if s.isClosed() {
		return ErrClosed
	}
	chunks := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		buf := make([]byte, 32*1024)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case chunks <- data:
				case <-ctx.Done():
					return
				case <-s.closed:
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return ErrClosed
		case <-s.wake:
			s.Process(nil)
		case data, ok := <-chunks:
			if !ok {
				if s.isClosed() {
					return ErrClosed
				}
				s.Process(nil)
				select {
				case err := <-readErr:
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				default:
					return ctx.Err()
				}
			}
			s.Process(data)
		}
	}
}

// publish commits the terminal if anything changed since the last
// snapshot and offers the delta to every subscriber.
func (s *Session) publish() {
	term := s.emu.Terminal()
	for _, n := range term.TakeNotifications() {
		select {
		case s.notifications <- n:
		default:
			s.log.Debug("notification dropped", "type", n.Type)
		}
	}

	s.mu.Lock()
	prev := s.snap
	if term.Generation() == prev.Generation {
		s.mu.Unlock()
		return
	}
	snap, d := term.Commit(prev)
	s.snap = snap
	s.history = append(s.history, d)
	if len(s.history) > s.cfg.History {
		s.history = s.history[len(s.history)-s.cfg.History:]
	}
	s.mu.Unlock()

	for _, sub := range *s.subs.Load() {
		sub.offer(d)
	}
}

// Snapshot returns the latest published snapshot.
func (s *Session) Snapshot() *vt100.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Generation returns the generation of the latest published snapshot.
func (s *Session) Generation() uint64 {
	return s.Snapshot().Generation
}

// Notifications delivers OSC 9/777 notifications and bells. Notifications
// are dropped when nobody drains the channel.
func (s *Session) Notifications() <-chan notification.Notification {
	return s.notifications
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Close stops the session. Pending commands fail with ErrClosed and every
// subscription ends.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cmdMu.Lock()
		pending := s.pending
		s.pending = nil
		s.cmdMu.Unlock()
		for _, p := range pending {
			p.done <- Result{Err: ErrClosed}
		}
	})
	return nil
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
