package sshserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/trybotster/seshterm/internal/interp"
	"github.com/trybotster/seshterm/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type harness struct {
	sess *session.Session
	srv  *Server
	addr string
	feed *io.PipeWriter
}

func newHarness(t *testing.T, cfg session.Config, opts ...session.Option) *harness {
	t.Helper()
	sess := session.New(cfg, testLogger(), opts...)
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	go sess.Run(ctx, pr)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln, sess, Config{}, testLogger())
	go srv.Serve(ctx)

	t.Cleanup(func() {
		cancel()
		sess.Close()
		pw.Close()
	})
	return &harness{sess: sess, srv: srv, addr: ln.Addr().String(), feed: pw}
}

func (h *harness) write(t *testing.T, s string) {
	t.Helper()
	if _, err := h.feed.Write([]byte(s)); err != nil {
		t.Fatalf("feed: %v", err)
	}
}

// screen is the client's view, rebuilt by parsing what the server sends.
type screen struct {
	mu  sync.Mutex
	emu *interp.Emulator
	raw bytes.Buffer
}

func (s *screen) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw.Write(p)
	return s.emu.Write(p)
}

func (s *screen) contents() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emu.Terminal().Contents()
}

func (s *screen) rawString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw.String()
}

type sshClient struct {
	conn  *gossh.Client
	sess  *gossh.Session
	stdin io.WriteCloser
	view  *screen
}

// attach connects as user with a rows×cols PTY and starts mirroring the
// output into a local emulator.
func attach(t *testing.T, h *harness, user string, rows, cols int) *sshClient {
	t.Helper()
	conn, err := gossh.Dial("tcp", h.addr, &gossh.ClientConfig{
		User:            user,
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         3 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	sess, err := conn.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := sess.RequestPty("xterm-256color", rows, cols, gossh.TerminalModes{}); err != nil {
		t.Fatalf("RequestPty: %v", err)
	}
	view := &screen{emu: interp.NewEmulator(rows, cols, 0, testLogger())}
	sess.Stdout = view
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell: %v", err)
	}
	t.Cleanup(func() {
		sess.Close()
		conn.Close()
	})
	return &sshClient{conn: conn, sess: sess, stdin: stdin, view: view}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type chanWriter chan []byte

func (c chanWriter) Write(p []byte) (int, error) {
	c <- bytes.Clone(p)
	return len(p), nil
}

func TestAttachDrawsScreen(t *testing.T) {
	h := newHarness(t, session.Config{Rows: 24, Cols: 80})
	h.write(t, "\x1b[1mbold\x1b[0m prompt$ ")

	c := attach(t, h, "dev", 24, 80)
	waitFor(t, "initial screen", func() bool {
		return strings.Contains(c.view.contents(), "bold prompt$")
	})

	h.write(t, "\r\nnext line")
	waitFor(t, "delta", func() bool {
		return strings.Contains(c.view.contents(), "next line")
	})

	got := c.view.emu.Terminal()
	c.view.mu.Lock()
	cell := got.Cell(0, 0)
	c.view.mu.Unlock()
	if cell.Content != "b" || cell.Style().Attrs == 0 {
		t.Errorf("cell (0,0) = %+v, want bold b", cell)
	}
}

func TestAttachForwardsInput(t *testing.T) {
	sink := make(chanWriter, 10)
	h := newHarness(t, session.Config{}, session.WithInputSink(sink))
	c := attach(t, h, "dev", 24, 80)
	waitFor(t, "client", func() bool { return h.srv.Clients() == 1 })

	if _, err := c.stdin.Write([]byte("ls\r")); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-sink:
		if string(got) != "ls\r" {
			t.Errorf("sink got %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("input never reached the session")
	}
}

func TestAttachResizesSession(t *testing.T) {
	h := newHarness(t, session.Config{Rows: 24, Cols: 80})
	c := attach(t, h, "dev", 30, 100)

	waitFor(t, "initial size", func() bool {
		s := h.sess.Snapshot()
		return s.Rows == 30 && s.Cols == 100
	})

	if err := c.sess.WindowChange(20, 60); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "window change", func() bool {
		s := h.sess.Snapshot()
		return s.Rows == 20 && s.Cols == 60
	})
}

func TestViewOnlyUser(t *testing.T) {
	sink := make(chanWriter, 10)
	h := newHarness(t, session.Config{Rows: 24, Cols: 80}, session.WithInputSink(sink))
	h.write(t, "watch me")

	c := attach(t, h, ViewOnlyUser, 10, 40)
	waitFor(t, "screen", func() bool {
		return strings.Contains(c.view.contents(), "watch me")
	})

	c.stdin.Write([]byte("rm -rf /\r"))
	c.sess.WindowChange(5, 20)

	select {
	case got := <-sink:
		t.Errorf("view-only input reached the session: %q", got)
	case <-time.After(200 * time.Millisecond):
	}
	if s := h.sess.Snapshot(); s.Rows != 24 || s.Cols != 80 {
		t.Errorf("view-only client resized the session to %dx%d", s.Rows, s.Cols)
	}
}

func TestBellIsForwarded(t *testing.T) {
	h := newHarness(t, session.Config{})
	c := attach(t, h, "dev", 24, 80)
	waitFor(t, "first frame", func() bool { return c.view.rawString() != "" })

	h.write(t, "ding\a")
	waitFor(t, "bell", func() bool {
		return strings.Contains(c.view.rawString(), "\a")
	})
}

func TestTitleChangeIsSanitized(t *testing.T) {
	h := newHarness(t, session.Config{})
	c := attach(t, h, "dev", 24, 80)
	waitFor(t, "first frame", func() bool { return c.view.rawString() != "" })

	h.write(t, "\x1b]2;x\xc2\x9cy\x07")
	waitFor(t, "title", func() bool {
		return strings.Contains(c.view.rawString(), "\x1b]2;xy\a")
	})
	if raw := c.view.rawString(); strings.Contains(raw, "\u009c") {
		t.Errorf("C1 control reached the client: %q", raw)
	}
}

func TestSessionCloseEndsAttach(t *testing.T) {
	h := newHarness(t, session.Config{})
	c := attach(t, h, "dev", 24, 80)
	waitFor(t, "client", func() bool { return h.srv.Clients() == 1 })

	h.sess.Close()

	done := make(chan error, 1)
	go func() { done <- c.sess.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait = %v, want clean exit", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("SSH session did not end")
	}
	if !strings.Contains(c.view.rawString(), "[session closed]") {
		t.Errorf("output = %q, want closing notice", c.view.rawString())
	}
}

func TestRequiresPty(t *testing.T) {
	h := newHarness(t, session.Config{})
	conn, err := gossh.Dial("tcp", h.addr, &gossh.ClientConfig{
		User:            "dev",
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         3 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	sess, err := conn.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	out, err := sess.Output("")
	var exitErr *gossh.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitStatus() != 1 {
		t.Errorf("err = %v, want exit status 1", err)
	}
	if !strings.Contains(string(out), "ssh -t") {
		t.Errorf("output = %q", out)
	}
}
