package session

import (
	"context"
	"fmt"

	"github.com/trybotster/seshterm/internal/vt100"
)

// CommandKind identifies a control command.
type CommandKind int

const (
	// CommandResize changes the terminal dimensions.
	CommandResize CommandKind = iota
	// CommandInject forwards bytes to the child's input.
	CommandInject
	// CommandScrollback reads historical rows.
	CommandScrollback
)

func (k CommandKind) String() string {
	switch k {
	case CommandResize:
		return "resize"
	case CommandInject:
		return "inject"
	case CommandScrollback:
		return "scrollback"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a control request applied by the writer.
type Command struct {
	Kind CommandKind

	// Rows and Cols are used by CommandResize.
	Rows, Cols int

	// Data is used by CommandInject.
	Data []byte

	// Offset and Count are used by CommandScrollback. Offset 0 is the
	// most recent row.
	Offset, Count int
}

// Result is the outcome of a Command.
type Result struct {
	// Lines holds the rows of a scrollback query, oldest first.
	Lines []vt100.Line
	// Total is the scrollback length at the time of the query.
	Total int
	Err   error
}

type pendingCommand struct {
	cmd  Command
	done chan Result
}

// Submit queues cmd for the writer and returns a channel that receives
// exactly one Result.
func (s *Session) Submit(cmd Command) <-chan Result {
	done := make(chan Result, 1)
	s.cmdMu.Lock()
	if s.isClosed() {
		s.cmdMu.Unlock()
		done <- Result{Err: ErrClosed}
		return done
	}
	s.pending = append(s.pending, pendingCommand{cmd: cmd, done: done})
	s.cmdMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return done
}

func (s *Session) await(ctx context.Context, cmd Command) (Result, error) {
	select {
	case r := <-s.Submit(cmd):
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-s.closed:
		return Result{}, ErrClosed
	}
}

// Resize changes the terminal dimensions and waits for the writer to apply
// it.
func (s *Session) Resize(ctx context.Context, rows, cols int) error {
	_, err := s.await(ctx, Command{Kind: CommandResize, Rows: rows, Cols: cols})
	return err
}

// Inject queues data for the child's input.
func (s *Session) Inject(ctx context.Context, data []byte) error {
	_, err := s.await(ctx, Command{Kind: CommandInject, Data: data})
	return err
}

// Scrollback returns up to count historical rows ending offset rows before
// the most recent one, oldest first, along with the scrollback length.
func (s *Session) Scrollback(ctx context.Context, offset, count int) ([]vt100.Line, int, error) {
	r, err := s.await(ctx, Command{Kind: CommandScrollback, Offset: offset, Count: count})
	return r.Lines, r.Total, err
}

func (s *Session) applyCommands() {
	s.cmdMu.Lock()
	pending := s.pending
	s.pending = nil
	s.cmdMu.Unlock()

	for _, p := range pending {
		p.done <- s.apply(p.cmd)
	}
}

func (s *Session) apply(cmd Command) Result {
	term := s.emu.Terminal()
	switch cmd.Kind {
	case CommandResize:
		if err := s.emu.Resize(cmd.Rows, cmd.Cols); err != nil {
			return Result{Err: err}
		}
		if s.resizer != nil {
			if err := s.resizer(cmd.Rows, cmd.Cols); err != nil {
				s.log.Warn("resize hook failed", "rows", cmd.Rows, "cols", cmd.Cols, "error", err)
			}
		}
		s.log.Debug("resized", "rows", cmd.Rows, "cols", cmd.Cols)
		return Result{}
	case CommandInject:
		return Result{Err: s.enqueueInput(cmd.Data)}
	case CommandScrollback:
		lines, err := term.Scrollback().Query(cmd.Offset, cmd.Count)
		return Result{Lines: lines, Total: term.Scrollback().Len(), Err: err}
	default:
		return Result{Err: fmt.Errorf("unknown command %s", cmd.Kind)}
	}
}
