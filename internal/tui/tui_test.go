package tui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/trybotster/seshterm/internal/interp"
	"github.com/trybotster/seshterm/internal/notification"
	"github.com/trybotster/seshterm/internal/relay"
	"github.com/trybotster/seshterm/internal/vt100"
)

// =============================================================================
// View Tests
// =============================================================================

func TestAppModeString(t *testing.T) {
	tests := []struct {
		mode     AppMode
		expected string
	}{
		{ModeNormal, "normal"},
		{ModeShare, "share"},
		{ModeHelp, "help"},
		{AppMode(99), "normal"}, // Unknown defaults to normal
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.mode.String(); got != tt.expected {
				t.Errorf("AppMode.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestConnStatusString(t *testing.T) {
	tests := []struct {
		status   ConnStatus
		expected string
	}{
		{StatusConnecting, "connecting"},
		{StatusConnected, "connected"},
		{StatusClosed, "closed"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("ConnStatus(%d).String() = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestNewViewState(t *testing.T) {
	vs := NewViewState()
	if vs.Mode != ModeNormal {
		t.Errorf("Mode = %v, want ModeNormal", vs.Mode)
	}
	if vs.Status != StatusConnecting {
		t.Errorf("Status = %v, want connecting", vs.Status)
	}
	if vs.IsModal() || vs.IsScrolled() {
		t.Error("new view should be live and without overlay")
	}
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name     string
		view     ViewState
		contains []string
		absent   []string
	}{
		{
			name:     "connecting",
			view:     ViewState{Status: StatusConnecting},
			contains: []string{"seshterm", "[connecting]", "Ctrl+Q:Quit"},
		},
		{
			name:     "connected with title",
			view:     ViewState{Status: StatusConnected, Title: "vim main.go"},
			contains: []string{"vim main.go"},
			absent:   []string{"[connected]"},
		},
		{
			name:     "view only and scrolled",
			view:     ViewState{Status: StatusConnected, ViewOnly: true, ScrollOffset: 12, ScrollbackLen: 340},
			contains: []string{"[view-only]", "[+12/340]"},
		},
		{
			name:     "modal hint",
			view:     ViewState{Status: StatusConnected, Mode: ModeShare},
			contains: []string{"Esc:Close"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := tt.view.StatusLine(100)
			if w := len([]rune(line)); w != 100 {
				t.Errorf("status line width = %d, want 100: %q", w, line)
			}
			for _, s := range tt.contains {
				if !strings.Contains(line, s) {
					t.Errorf("status line %q missing %q", line, s)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(line, s) {
					t.Errorf("status line %q should not contain %q", line, s)
				}
			}
		})
	}
}

func TestStatusLineTruncatesTitleFirst(t *testing.T) {
	v := ViewState{Status: StatusConnected, Title: strings.Repeat("x", 200)}
	line := v.StatusLine(60)

	if w := len([]rune(line)); w != 60 {
		t.Errorf("width = %d, want 60", w)
	}
	if !strings.HasSuffix(line, "Ctrl+Q:Quit F1:Help ") {
		t.Errorf("help hint should survive truncation: %q", line)
	}
	if !strings.Contains(line, "…") {
		t.Errorf("truncated title should end with an ellipsis: %q", line)
	}
}

func TestFormatNotification(t *testing.T) {
	tests := []struct {
		name string
		n    notification.Notification
		want string
	}{
		{"osc9", notification.Notification{Type: notification.TypeOSC9, Message: "build done"}, "build done"},
		{"osc777", notification.Notification{Type: notification.TypeOSC777, Title: "CI", Body: "passed"}, "CI: passed"},
		{"osc777 title only", notification.Notification{Type: notification.TypeOSC777, Title: "CI"}, "CI"},
		{"osc777 body only", notification.Notification{Type: notification.TypeOSC777, Body: "passed"}, "passed"},
		{"bell", notification.Notification{Type: notification.TypeBell}, "bell"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNotification(tt.n); got != tt.want {
				t.Errorf("FormatNotification() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestColorToTcell(t *testing.T) {
	tests := []struct {
		name string
		in   vt100.Color
		want tcell.Color
	}{
		{"default", vt100.DefaultColor, tcell.ColorDefault},
		{"indexed", vt100.IndexedColor(1), tcell.PaletteColor(1)},
		{"256", vt100.IndexedColor(208), tcell.PaletteColor(208)},
		{"rgb", vt100.RGBColor(0x12, 0x34, 0x56), tcell.NewRGBColor(0x12, 0x34, 0x56)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColorToTcell(tt.in); got != tt.want {
				t.Errorf("ColorToTcell() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCellStyle(t *testing.T) {
	cell := vt100.Cell{
		Content: "x",
		Width:   1,
		FG:      vt100.IndexedColor(2),
		BG:      vt100.RGBColor(1, 2, 3),
		Attrs:   vt100.AttrBold | vt100.AttrUnderline | vt100.AttrInverse,
	}
	fg, bg, attrs := CellStyle(cell).Decompose()

	if fg != tcell.PaletteColor(2) {
		t.Errorf("fg = %v, want palette 2", fg)
	}
	if bg != tcell.NewRGBColor(1, 2, 3) {
		t.Errorf("bg = %v, want rgb(1,2,3)", bg)
	}
	for _, want := range []tcell.AttrMask{tcell.AttrBold, tcell.AttrUnderline, tcell.AttrReverse} {
		if attrs&want == 0 {
			t.Errorf("attrs %v missing %v", attrs, want)
		}
	}
	if attrs&tcell.AttrItalic != 0 {
		t.Errorf("attrs %v should not include italic", attrs)
	}
}

func TestCellStyleInvisible(t *testing.T) {
	cell := vt100.Cell{Content: "s", Width: 1, FG: vt100.IndexedColor(7), BG: vt100.IndexedColor(4), Attrs: vt100.AttrInvisible}
	fg, bg, _ := CellStyle(cell).Decompose()
	if fg != bg {
		t.Errorf("hidden text fg = %v, want background %v", fg, bg)
	}
}

func TestCellRunes(t *testing.T) {
	tests := []struct {
		content string
		mainc   rune
		combLen int
	}{
		{"", ' ', 0},
		{"a", 'a', 0},
		{"é", 'e', 1},
	}
	for _, tt := range tests {
		m, comb := cellRunes(vt100.Cell{Content: tt.content, Width: 1})
		if m != tt.mainc || len(comb) != tt.combLen {
			t.Errorf("cellRunes(%q) = %q, %q", tt.content, m, comb)
		}
	}
}

// =============================================================================
// Key Encoding Tests
// =============================================================================

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		name      string
		ev        *tcell.EventKey
		appCursor bool
		want      string
	}{
		{"rune", tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone), false, "a"},
		{"unicode rune", tcell.NewEventKey(tcell.KeyRune, 'é', tcell.ModNone), false, "é"},
		{"alt rune", tcell.NewEventKey(tcell.KeyRune, 'b', tcell.ModAlt), false, "\x1bb"},
		{"enter", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), false, "\r"},
		{"tab", tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone), false, "\t"},
		{"backtab", tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone), false, "\x1b[Z"},
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), false, "\x1b"},
		{"backspace", tcell.NewEventKey(tcell.KeyBackspace2, 0, tcell.ModNone), false, "\x7f"},
		{"ctrl-c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), false, "\x03"},
		{"up", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), false, "\x1b[A"},
		{"up app cursor", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), true, "\x1bOA"},
		{"left app cursor", tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), true, "\x1bOD"},
		{"home", tcell.NewEventKey(tcell.KeyHome, 0, tcell.ModNone), false, "\x1b[H"},
		{"end app cursor", tcell.NewEventKey(tcell.KeyEnd, 0, tcell.ModNone), true, "\x1bOF"},
		{"delete", tcell.NewEventKey(tcell.KeyDelete, 0, tcell.ModNone), false, "\x1b[3~"},
		{"page up", tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModNone), false, "\x1b[5~"},
		{"f1", tcell.NewEventKey(tcell.KeyF1, 0, tcell.ModNone), false, "\x1bOP"},
		{"f5", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), false, "\x1b[15~"},
		{"f12", tcell.NewEventKey(tcell.KeyF12, 0, tcell.ModNone), false, "\x1b[24~"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeKey(tt.ev, tt.appCursor)
			if string(got) != tt.want {
				t.Errorf("EncodeKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCtrlCode(t *testing.T) {
	tests := []struct {
		r    rune
		want byte
		ok   bool
	}{
		{'a', 0x01, true},
		{'z', 0x1a, true},
		{'[', 0x1b, true},
		{' ', 0x00, true},
		{'1', 0, false},
	}
	for _, tt := range tests {
		got, ok := ctrlCode(tt.r)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ctrlCode(%q) = %#x, %v; want %#x, %v", tt.r, got, ok, tt.want, tt.ok)
		}
	}
}

// =============================================================================
// Viewer Tests
// =============================================================================

type fakeRemote struct {
	mu   sync.Mutex
	sent []relay.ClientCommand
	msgs chan *relay.ServerMessage
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{msgs: make(chan *relay.ServerMessage, 16)}
}

func (f *fakeRemote) Follow(ctx context.Context, m *relay.Mirror, fn func(*relay.ServerMessage)) error {
	for {
		select {
		case msg, ok := <-f.msgs:
			if !ok {
				return nil
			}
			if _, err := m.Apply(msg); err != nil {
				return err
			}
			fn(msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *fakeRemote) Send(cmd relay.ClientCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeRemote) commands() []relay.ClientCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relay.ClientCommand(nil), f.sent...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTUI(t *testing.T, opts Options) (*TUI, *fakeRemote, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init failed: %v", err)
	}
	s := &onceScreen{SimulationScreen: screen}
	t.Cleanup(s.Fini)

	opts.Logger = testLogger()
	remote := newFakeRemote()
	return newTUI(s, remote, opts), remote, screen
}

// onceScreen lets both Run and test cleanup finalize the screen.
type onceScreen struct {
	tcell.SimulationScreen
	once sync.Once
}

func (s *onceScreen) Fini() {
	s.once.Do(s.SimulationScreen.Fini)
}

// snapshotOf runs text through an emulator sized like the viewer's
// terminal area.
func snapshotOf(t *testing.T, tui *TUI, text string) *vt100.Snapshot {
	t.Helper()
	rows, cols := tui.termSize()
	emu := interp.NewEmulator(rows, cols, 1000, testLogger())
	emu.Process([]byte(text))
	snap, _ := emu.Terminal().Commit(nil)
	return snap
}

// deliver applies msg the way Follow does.
func deliver(t *testing.T, tui *TUI, msg relay.ServerMessage) {
	t.Helper()
	if _, err := tui.mirror.Apply(&msg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	tui.onMessage(&msg)
}

func screenRow(screen tcell.SimulationScreen, y int) string {
	cells, w, _ := screen.GetContents()
	var sb strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			sb.WriteByte(' ')
			continue
		}
		sb.WriteString(string(c.Runes))
	}
	return sb.String()
}

func screenText(screen tcell.SimulationScreen) string {
	_, _, h := screen.GetContents()
	rows := make([]string, h)
	for y := range rows {
		rows[y] = screenRow(screen, y)
	}
	return strings.Join(rows, "\n")
}

func TestRenderSnapshot(t *testing.T) {
	tui, _, screen := newTestTUI(t, Options{})
	deliver(t, tui, relay.SnapshotMessage("s1", snapshotOf(t, tui, "\x1b]2;build\x07hello\r\nworld")))
	tui.render()

	if got := screenRow(screen, 0); !strings.HasPrefix(got, "hello") {
		t.Errorf("row 0 = %q, want hello", got)
	}
	if got := screenRow(screen, 1); !strings.HasPrefix(got, "world") {
		t.Errorf("row 1 = %q, want world", got)
	}

	_, h := screen.Size()
	status := screenRow(screen, h-1)
	if !strings.Contains(status, "seshterm") || !strings.Contains(status, "build") {
		t.Errorf("status line = %q, want name and title", status)
	}
	if strings.Contains(status, "[connecting]") {
		t.Errorf("status line = %q, should be connected", status)
	}
}

func TestRenderKeepsStyles(t *testing.T) {
	tui, _, screen := newTestTUI(t, Options{})
	deliver(t, tui, relay.SnapshotMessage("s1", snapshotOf(t, tui, "\x1b[1;31mR\x1b[0m")))
	tui.render()

	cells, _, _ := screen.GetContents()
	fg, _, attrs := cells[0].Style.Decompose()
	if fg != tcell.PaletteColor(1) {
		t.Errorf("fg = %v, want palette 1", fg)
	}
	if attrs&tcell.AttrBold == 0 {
		t.Errorf("attrs = %v, want bold", attrs)
	}
}

func TestRenderAppliesDelta(t *testing.T) {
	tui, _, screen := newTestTUI(t, Options{})
	rows, cols := tui.termSize()
	emu := interp.NewEmulator(rows, cols, 100, testLogger())

	emu.Process([]byte("first"))
	snap, _ := emu.Terminal().Commit(nil)
	deliver(t, tui, relay.SnapshotMessage("s1", snap))

	emu.Process([]byte("\r\nsecond"))
	_, delta := emu.Terminal().Commit(snap)
	deliver(t, tui, relay.DeltaMessage(delta))
	tui.render()

	if got := screenRow(screen, 1); !strings.HasPrefix(got, "second") {
		t.Errorf("row 1 = %q, want second", got)
	}
}

func TestKeyForwarding(t *testing.T) {
	tui, remote, _ := newTestTUI(t, Options{})

	if quit := tui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)); quit {
		t.Fatal("rune should not quit")
	}
	tui.handleKey(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))

	want := []relay.ClientCommand{relay.InputCommand([]byte("x")), relay.InputCommand([]byte("\r"))}
	if diff := cmp.Diff(want, remote.commands()); diff != "" {
		t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyForwardingAppCursor(t *testing.T) {
	tui, remote, _ := newTestTUI(t, Options{})
	deliver(t, tui, relay.SnapshotMessage("s1", snapshotOf(t, tui, "\x1b[?1h")))

	tui.handleKey(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone))

	want := []relay.ClientCommand{relay.InputCommand([]byte("\x1bOA"))}
	if diff := cmp.Diff(want, remote.commands()); diff != "" {
		t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
	}
}

func TestCtrlQQuits(t *testing.T) {
	tui, remote, _ := newTestTUI(t, Options{})
	if !tui.handleKey(tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)) {
		t.Error("Ctrl+Q should quit")
	}
	if len(remote.commands()) != 0 {
		t.Errorf("Ctrl+Q should not be forwarded: %v", remote.commands())
	}
}

func TestViewOnlySendsNothing(t *testing.T) {
	tui, remote, _ := newTestTUI(t, Options{ViewOnly: true})

	tui.sendResize()
	tui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	tui.handlePaste(tcell.NewEventPaste(true))

	if cmds := remote.commands(); len(cmds) != 0 {
		t.Errorf("view-only viewer sent %v", cmds)
	}
}

func TestSendResizeUsesTerminalArea(t *testing.T) {
	tui, remote, screen := newTestTUI(t, Options{})
	w, h := screen.Size()

	tui.sendResize()

	want := []relay.ClientCommand{relay.ResizeCommand(uint16(h-1), uint16(w))}
	if diff := cmp.Diff(want, remote.commands()); diff != "" {
		t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
	}
}

func TestBracketedPaste(t *testing.T) {
	tui, remote, _ := newTestTUI(t, Options{})

	// Without the mode, paste markers are not forwarded.
	tui.handlePaste(tcell.NewEventPaste(true))
	if cmds := remote.commands(); len(cmds) != 0 {
		t.Fatalf("sent %v without bracketed paste mode", cmds)
	}

	deliver(t, tui, relay.SnapshotMessage("s1", snapshotOf(t, tui, "\x1b[?2004h")))
	tui.handlePaste(tcell.NewEventPaste(true))
	tui.handlePaste(tcell.NewEventPaste(false))

	want := []relay.ClientCommand{
		relay.InputCommand([]byte("\x1b[200~")),
		relay.InputCommand([]byte("\x1b[201~")),
	}
	if diff := cmp.Diff(want, remote.commands()); diff != "" {
		t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
	}
}

func TestModalKeys(t *testing.T) {
	tui, remote, screen := newTestTUI(t, Options{ShareURL: "http://10.0.0.5:7681/"})
	deliver(t, tui, relay.SnapshotMessage("s1", snapshotOf(t, tui, "$ ")))

	tui.handleKey(tcell.NewEventKey(tcell.KeyCtrlO, 0, tcell.ModCtrl))
	if tui.view.Mode != ModeShare {
		t.Fatalf("Mode = %v, want share", tui.view.Mode)
	}
	tui.render()
	if !strings.Contains(screenText(screen), "http://10.0.0.5:7681/") {
		t.Error("share overlay should show the URL")
	}

	// Keys go to the overlay, not the session.
	tui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone))
	if len(remote.commands()) != 0 {
		t.Errorf("overlay forwarded %v", remote.commands())
	}

	tui.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	if tui.view.Mode != ModeNormal {
		t.Errorf("Mode = %v after Esc, want normal", tui.view.Mode)
	}

	tui.handleKey(tcell.NewEventKey(tcell.KeyF1, 0, tcell.ModNone))
	if tui.view.Mode != ModeHelp {
		t.Fatalf("Mode = %v, want help", tui.view.Mode)
	}
	tui.render()
	if !strings.Contains(screenText(screen), "Scroll history") {
		t.Error("help overlay should list the keys")
	}
	tui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	if tui.view.Mode != ModeNormal {
		t.Errorf("Mode = %v after q, want normal", tui.view.Mode)
	}
}

func TestNotificationShownInStatus(t *testing.T) {
	tui, _, screen := newTestTUI(t, Options{})
	n := notification.Notification{Type: notification.TypeOSC9, Message: "tests passed"}
	deliver(t, tui, relay.NotificationMessage(n))
	tui.render()

	_, h := screen.Size()
	if status := screenRow(screen, h-1); !strings.Contains(status, "tests passed") {
		t.Errorf("status line = %q, want notification", status)
	}
}

func TestSessionClosedError(t *testing.T) {
	tui, _, _ := newTestTUI(t, Options{})
	deliver(t, tui, relay.ErrorMessage("session closed"))
	if tui.view.Status != StatusClosed {
		t.Errorf("Status = %v, want closed", tui.view.Status)
	}
}

// =============================================================================
// Scrollback Tests
// =============================================================================

func scrolledSnapshot(tui *TUI, history int) *vt100.Snapshot {
	rows, cols := tui.termSize()
	lines := make([]vt100.Line, rows)
	for i := range lines {
		lines[i] = vt100.NewLine(cols, vt100.Style{})
	}
	return &vt100.Snapshot{
		Generation:    1,
		Rows:          rows,
		Cols:          cols,
		Lines:         lines,
		Cursor:        vt100.CursorState{Visible: true},
		ScrollbackLen: history,
	}
}

func TestScrollRequestsHistory(t *testing.T) {
	tui, remote, _ := newTestTUI(t, Options{})
	deliver(t, tui, relay.SnapshotMessage("s1", scrolledSnapshot(tui, 100)))
	rows, _ := tui.termSize()

	tui.handleKey(tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModShift))
	tui.handleKey(tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModShift))

	want := []relay.ClientCommand{
		relay.ScrollbackCommand(0, rows),
		relay.ScrollbackCommand(rows, rows),
	}
	if diff := cmp.Diff(want, remote.commands()); diff != "" {
		t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
	}
	if tui.view.ScrollOffset != 2*rows {
		t.Errorf("ScrollOffset = %d, want %d", tui.view.ScrollOffset, 2*rows)
	}
}

func TestScrollClampsToHistory(t *testing.T) {
	tui, remote, _ := newTestTUI(t, Options{})
	deliver(t, tui, relay.SnapshotMessage("s1", scrolledSnapshot(tui, 5)))

	tui.handleKey(tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModShift))
	if tui.view.ScrollOffset != 5 {
		t.Errorf("ScrollOffset = %d, want 5", tui.view.ScrollOffset)
	}
	want := []relay.ClientCommand{relay.ScrollbackCommand(0, 5)}
	if diff := cmp.Diff(want, remote.commands()); diff != "" {
		t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
	}

	tui.handleKey(tcell.NewEventKey(tcell.KeyPgDn, 0, tcell.ModShift))
	if tui.view.ScrollOffset != 0 {
		t.Errorf("ScrollOffset = %d after PgDn, want 0", tui.view.ScrollOffset)
	}
}

func TestScrollDisabledOnAltScreen(t *testing.T) {
	tui, remote, _ := newTestTUI(t, Options{})
	snap := scrolledSnapshot(tui, 100)
	snap.AltScreen = true
	deliver(t, tui, relay.SnapshotMessage("s1", snap))

	tui.handleMouse(tcell.NewEventMouse(1, 1, tcell.WheelUp, tcell.ModNone))
	if tui.view.ScrollOffset != 0 || len(remote.commands()) != 0 {
		t.Errorf("alt screen scrolled to %d, sent %v", tui.view.ScrollOffset, remote.commands())
	}
}

func TestScrollbackShownAboveScreen(t *testing.T) {
	tui, _, screen := newTestTUI(t, Options{})
	rows, cols := tui.termSize()
	emu := interp.NewEmulator(rows, cols, 100, testLogger())
	emu.Process([]byte("live"))
	snap, _ := emu.Terminal().Commit(nil)
	snap.ScrollbackLen = 50
	deliver(t, tui, relay.SnapshotMessage("s1", snap))

	tui.handleMouse(tcell.NewEventMouse(1, 1, tcell.WheelUp, tcell.ModNone))

	old := vt100.NewLine(cols, vt100.Style{})
	for i, r := range "older" {
		old.Cells[i].Content = string(r)
	}
	blank := vt100.NewLine(cols, vt100.Style{})
	deliver(t, tui, relay.ScrollbackMessage(0, 50, []vt100.Line{blank, blank, old}))
	tui.render()

	if got := screenRow(screen, 2); !strings.HasPrefix(got, "older") {
		t.Errorf("row 2 = %q, want history", got)
	}
	if got := screenRow(screen, 3); !strings.HasPrefix(got, "live") {
		t.Errorf("row 3 = %q, want live screen below history", got)
	}

	// Typing returns to the live view.
	tui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone))
	if tui.view.IsScrolled() {
		t.Error("typing should return to the live screen")
	}
	tui.render()
	if got := screenRow(screen, 0); !strings.HasPrefix(got, "live") {
		t.Errorf("row 0 = %q, want live screen", got)
	}
}

// =============================================================================
// Event Loop Tests
// =============================================================================

func TestRunEndsWhenStreamCloses(t *testing.T) {
	tui, remote, screen := newTestTUI(t, Options{})
	snap := snapshotOf(t, tui, "remote prompt$ ")
	msg := relay.SnapshotMessage("s1", snap)
	remote.msgs <- &msg

	done := make(chan error, 1)
	go func() { done <- tui.Run(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(screenText(screen), "remote prompt$") {
		if time.Now().After(deadline) {
			t.Fatal("snapshot never drawn")
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(remote.msgs)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the stream closed")
	}

	cmds := remote.commands()
	if len(cmds) == 0 || cmds[0].Type != relay.TypeResize {
		t.Errorf("first command = %v, want resize", cmds)
	}
}

func TestRunQuitsOnCtrlQ(t *testing.T) {
	tui, _, screen := newTestTUI(t, Options{})
	done := make(chan error, 1)
	go func() { done <- tui.Run(context.Background()) }()

	// Let the loop start before injecting.
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(screenText(screen), "Connecting...") {
		if time.Now().After(deadline) {
			t.Fatal("viewer never drew")
		}
		time.Sleep(10 * time.Millisecond)
	}
	screen.InjectKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return on Ctrl+Q")
	}
}
