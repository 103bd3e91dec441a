// Package pty runs the child program of a session on a pseudo-terminal.
//
// The child's output is copied, in order, to the Output writer given at
// spawn time (normally the session feed). Input, device replies and
// resizes flow back through Write and Resize.
package pty

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// ErrNotSpawned is returned by operations that need a running child.
var ErrNotSpawned = errors.New("pty: process not spawned")

// ErrInvalidSize is returned by Resize for zero dimensions.
var ErrInvalidSize = errors.New("pty: invalid size")

// Process is a child program attached to a PTY.
type Process struct {
	// ptyFile is the master PTY file descriptor.
	ptyFile *os.File

	// cmd is the running command.
	cmd *exec.Cmd

	// rows and cols are the current terminal dimensions.
	mu   sync.Mutex
	rows uint16
	cols uint16

	output io.Writer

	// done is closed once the reader has delivered all output.
	done chan struct{}

	// exited is closed when the child has been reaped; exitErr is its
	// wait status.
	exited  chan struct{}
	exitErr error

	killOnce sync.Once
	logger   *slog.Logger
}

// New creates an unspawned process with the specified dimensions.
func New(rows, cols uint16, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		rows:   rows,
		cols:   cols,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logger,
	}
}

// SpawnConfig holds configuration for spawning a process in the PTY.
type SpawnConfig struct {
	// Command is the program to run. A command line containing spaces is
	// run through /bin/sh -c. Empty runs $SHELL, or /bin/sh.
	Command string

	// Args are additional arguments.
	Args []string

	// Dir is the working directory.
	Dir string

	// Env are extra environment variables (key=value format).
	Env []string

	// Term is the TERM value given to the child.
	Term string

	// Output receives the child's output. Nil discards it.
	Output io.Writer

	// InitCommands are lines sent to the child after spawn.
	InitCommands []string
}

// DefaultShell returns $SHELL, or /bin/sh when unset.
func DefaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// Spawn starts the child and the output reader.
func (p *Process) Spawn(cfg SpawnConfig) error {
	if p.ptyFile != nil {
		return errors.New("pty: already spawned")
	}

	command, args := cfg.Command, cfg.Args
	switch {
	case command == "":
		command = DefaultShell()
	case len(args) == 0 && strings.ContainsAny(command, " \t"):
		args = []string{"-c", command}
		command = "/bin/sh"
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = cfg.Dir
	cmd.Env = os.Environ()
	if cfg.Term != "" {
		cmd.Env = append(cmd.Env, "TERM="+cfg.Term)
	}
	cmd.Env = append(cmd.Env, cfg.Env...)

	rows, cols := p.Size()
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return fmt.Errorf("starting %s: %w", command, err)
	}

	p.ptyFile = ptmx
	p.cmd = cmd
	p.output = cfg.Output
	if p.output == nil {
		p.output = io.Discard
	}

	go p.readerLoop()
	go p.wait()

	p.logger.Info("PTY spawned", "command", command, "dir", cfg.Dir, "pid", cmd.Process.Pid)

	for _, line := range cfg.InitCommands {
		if _, err := p.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("sending init command: %w", err)
		}
	}
	return nil
}

// readerLoop copies PTY output to the output writer.
func (p *Process) readerLoop() {
	defer close(p.done)

	buf := make([]byte, 32*1024)
	for {
		n, err := p.ptyFile.Read(buf)
		if n > 0 {
			if _, werr := p.output.Write(buf[:n]); werr != nil {
				p.logger.Warn("PTY output sink failed", "error", werr)
				return
			}
		}
		if err != nil {
			// Linux reports EIO on the master once the child side closes.
			if !errors.Is(err, io.EOF) && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
				p.logger.Error("PTY read error", "error", err)
			}
			return
		}
	}
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	p.exitErr = err
	close(p.exited)
	p.logger.Info("PTY child exited", "error", err)
}

// Write writes input bytes to the PTY.
func (p *Process) Write(b []byte) (int, error) {
	if p.ptyFile == nil {
		return 0, ErrNotSpawned
	}
	return p.ptyFile.Write(b)
}

// WriteString writes a string to the PTY.
func (p *Process) WriteString(s string) (int, error) {
	return p.Write([]byte(s))
}

// Resize changes the PTY dimensions; the child gets SIGWINCH.
func (p *Process) Resize(rows, cols int) error {
	if rows <= 0 || cols <= 0 || rows > 0xffff || cols > 0xffff {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, rows, cols)
	}
	p.mu.Lock()
	p.rows, p.cols = uint16(rows), uint16(cols)
	p.mu.Unlock()

	if p.ptyFile == nil {
		return nil
	}
	return pty.Setsize(p.ptyFile, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Size returns current dimensions.
func (p *Process) Size() (rows, cols uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows, p.cols
}

// Pid returns the child's process id, or 0 before spawn.
func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// IsSpawned returns true if a process was started.
func (p *Process) IsSpawned() bool {
	return p.ptyFile != nil
}

// Done is closed after the child's last output has been delivered.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the child exits and returns its wait error.
func (p *Process) Wait() error {
	if p.cmd == nil {
		return ErrNotSpawned
	}
	<-p.exited
	return p.exitErr
}

// Kill terminates the child process and releases the PTY. It is safe to
// call more than once.
func (p *Process) Kill() error {
	if p.ptyFile == nil {
		return nil
	}
	p.killOnce.Do(func() {
		select {
		case <-p.exited:
		default:
			p.logger.Info("Killing PTY child process")
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				p.logger.Warn("Failed to kill PTY child", "error", err)
			}
		}
		// Wait to prevent zombies.
		<-p.exited
		p.ptyFile.Close()
		<-p.done
	})
	return nil
}
