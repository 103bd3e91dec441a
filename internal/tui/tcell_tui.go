package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/trybotster/seshterm/internal/qr"
	"github.com/trybotster/seshterm/internal/relay"
	"github.com/trybotster/seshterm/internal/vt100"
)

// Remote is the stream the viewer attaches to. *server.Conn implements it.
type Remote interface {
	// Follow applies server messages to m until the stream ends.
	Follow(ctx context.Context, m *relay.Mirror, fn func(*relay.ServerMessage)) error
	Send(cmd relay.ClientCommand) error
}

// Options configures the viewer.
type Options struct {
	// ShareURL is offered as a QR code with Ctrl+O.
	ShareURL string
	// ViewOnly never sends input or resizes.
	ViewOnly bool
	Logger   *slog.Logger
}

// Styles - use terminal defaults where possible for native feel
var (
	borderStyle = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	statusStyle = tcell.StyleDefault.Reverse(true)
	titleSty    = tcell.StyleDefault.Bold(true)
	helpSty     = tcell.StyleDefault.Dim(true)
	normalStyle = tcell.StyleDefault
)

// redraw is posted to wake the event loop after a server message.
type redraw struct{}

// streamEnded is posted once Follow returns.
type streamEnded struct{ err error }

// TUI is a tcell attach viewer.
type TUI struct {
	screen tcell.Screen
	remote Remote
	mirror *relay.Mirror
	logger *slog.Logger

	mu    sync.Mutex
	view  *ViewState
	bells uint64

	// history holds the scrollback rows shown at the top of the view
	// while scrolled, oldest first.
	history []vt100.Line

	// Terminal dimensions
	width, height int
}

// NewTUI creates a viewer on the controlling terminal.
func NewTUI(remote Remote, opts Options) (*TUI, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	screen.EnableMouse()
	screen.EnablePaste()
	screen.Clear()
	return newTUI(screen, remote, opts), nil
}

// newTUI wraps an initialized screen.
func newTUI(screen tcell.Screen, remote Remote, opts Options) *TUI {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	view := NewViewState()
	view.ShareURL = opts.ShareURL
	view.ViewOnly = opts.ViewOnly

	w, h := screen.Size()
	return &TUI{
		screen: screen,
		remote: remote,
		mirror: relay.NewMirror(),
		logger: logger.With("component", "tui"),
		view:   view,
		width:  w,
		height: h,
	}
}

// Run attaches and runs the event loop until the user quits, ctx is
// cancelled, or the server ends the stream.
func (t *TUI) Run(ctx context.Context) error {
	defer t.screen.Fini()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.sendResize()

	go func() {
		err := t.remote.Follow(ctx, t.mirror, t.onMessage)
		t.screen.PostEvent(tcell.NewEventInterrupt(streamEnded{err: err}))
	}()

	t.render()
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return nil
		}

		switch ev := ev.(type) {
		case *tcell.EventResize:
			t.mu.Lock()
			t.width, t.height = ev.Size()
			t.mu.Unlock()
			t.sendResize()
			t.screen.Sync()

		case *tcell.EventKey:
			if t.handleKey(ev) {
				return nil
			}

		case *tcell.EventPaste:
			t.handlePaste(ev)

		case *tcell.EventMouse:
			t.handleMouse(ev)

		case *tcell.EventInterrupt:
			if end, ok := ev.Data().(streamEnded); ok {
				if end.err == nil || errors.Is(end.err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("stream: %w", end.err)
			}
		}
		t.render()
	}
}

// termSize is the area the remote terminal should have: everything but
// the status line.
func (t *TUI) termSize() (rows, cols int) {
	rows, cols = t.height-1, t.width
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return rows, cols
}

func (t *TUI) sendResize() {
	t.mu.Lock()
	viewOnly := t.view.ViewOnly
	rows, cols := t.termSize()
	t.mu.Unlock()
	if viewOnly {
		return
	}
	if err := t.remote.Send(relay.ResizeCommand(uint16(rows), uint16(cols))); err != nil {
		t.logger.Debug("Resize failed", "error", err)
	}
}

// onMessage runs on the Follow goroutine for every message.
func (t *TUI) onMessage(msg *relay.ServerMessage) {
	t.mu.Lock()
	switch msg.Type {
	case relay.TypeSnapshot, relay.TypeDelta:
		wasConnected := t.view.Status == StatusConnected
		t.view.Status = StatusConnected
		if snap := t.mirror.Snapshot(); snap != nil {
			t.view.Title = snap.Title
			t.view.ScrollbackLen = snap.ScrollbackLen
			// Bells already rung before we attached stay silent.
			if wasConnected && snap.Bells > t.bells {
				t.screen.Beep()
			}
			t.bells = snap.Bells
		}
	case relay.TypeScrollback:
		if t.view.IsScrolled() {
			t.history = msg.Lines
		}
		t.view.ScrollbackLen = msg.Total
	case relay.TypeNotification:
		if msg.Notification != nil {
			t.view.Notice = FormatNotification(*msg.Notification)
		}
	case relay.TypeError:
		t.view.Notice = "error: " + msg.Message
		if msg.Message == "session closed" {
			t.view.Status = StatusClosed
		}
	}
	t.mu.Unlock()

	t.screen.PostEvent(tcell.NewEventInterrupt(redraw{}))
}

// render draws the entire screen.
func (t *TUI) render() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
	rows, cols := t.termSize()
	snap := t.mirror.Snapshot()

	t.renderTerminal(snap, rows, cols)
	t.drawText(0, t.height-1, t.view.StatusLine(t.width), statusStyle)

	switch t.view.Mode {
	case ModeShare:
		t.renderShareModal()
	case ModeHelp:
		t.renderHelpModal()
	}

	t.screen.Show()
}

// renderTerminal copies cells from the mirrored snapshot, with history
// rows on top while scrolled.
func (t *TUI) renderTerminal(snap *vt100.Snapshot, rows, cols int) {
	if snap == nil {
		t.drawText(1, 0, "Connecting...", normalStyle)
		t.screen.HideCursor()
		return
	}

	y := 0
	if t.view.IsScrolled() {
		for _, line := range t.history {
			if y >= rows {
				break
			}
			t.drawLine(y, line, cols)
			y++
		}
	}
	for i := 0; y < rows && i < len(snap.Lines); i++ {
		t.drawLine(y, snap.Lines[i], cols)
		y++
	}

	cur := snap.Cursor
	if cur.Visible && !t.view.IsScrolled() && !t.view.IsModal() && cur.Row < rows && cur.Col < cols {
		t.screen.ShowCursor(cur.Col, cur.Row)
	} else {
		t.screen.HideCursor()
	}
}

func (t *TUI) drawLine(y int, line vt100.Line, cols int) {
	for x, cell := range line.Cells {
		if x >= cols {
			break
		}
		if cell.IsContinuation() {
			continue
		}
		mainc, comb := cellRunes(cell)
		t.screen.SetContent(x, y, mainc, comb, CellStyle(cell))
	}
}

// renderShareModal shows the share URL and its QR code.
func (t *TUI) renderShareModal() {
	url := t.view.ShareURL
	if url == "" {
		t.renderTextModal(" Share ", []string{"No share URL available"})
		return
	}

	// Leave room for the border, padding, the URL and the status line.
	lines, err := qr.Lines(url, t.width-4, t.height-8, true)
	if err != nil {
		t.renderTextModal(" Share ", []string{url, "", "Enlarge the window to show a QR code"})
		return
	}
	t.renderTextModal(" Share ", append(lines, "", url))
}

func (t *TUI) renderHelpModal() {
	t.renderTextModal(" Help ", []string{
		"Ctrl+Q           Quit",
		"Ctrl+O           Show share URL",
		"Shift+PgUp/PgDn  Scroll history",
		"Mouse wheel      Scroll history",
		"F1               This help",
	})
}

// renderTextModal draws lines centered in a bordered box.
func (t *TUI) renderTextModal(title string, lines []string) {
	modalWidth := runewidth.StringWidth(title) + 4
	for _, l := range lines {
		if w := runewidth.StringWidth(l) + 4; w > modalWidth {
			modalWidth = w
		}
	}
	if modalWidth > t.width {
		modalWidth = t.width
	}
	modalHeight := len(lines) + 4
	if modalHeight > t.height-1 {
		modalHeight = t.height - 1
	}
	x := (t.width - modalWidth) / 2
	y := (t.height - 1 - modalHeight) / 2

	t.fillRect(x, y, modalWidth, modalHeight, normalStyle)
	t.drawBox(x, y, modalWidth, modalHeight, borderStyle)
	t.drawText(x+2, y, title, titleSty)
	for i, l := range lines {
		if i >= modalHeight-4 {
			break
		}
		t.drawText(x+2, y+2+i, runewidth.Truncate(l, modalWidth-4, ""), normalStyle)
	}
	t.drawText(x+2, y+modalHeight-1, " "+HelpHint(t.view.Mode)+" ", helpSty)
}

// drawBox draws a box with single-line borders.
func (t *TUI) drawBox(x, y, width, height int, style tcell.Style) {
	// Corners
	t.screen.SetContent(x, y, tcell.RuneULCorner, nil, style)
	t.screen.SetContent(x+width-1, y, tcell.RuneURCorner, nil, style)
	t.screen.SetContent(x, y+height-1, tcell.RuneLLCorner, nil, style)
	t.screen.SetContent(x+width-1, y+height-1, tcell.RuneLRCorner, nil, style)

	// Horizontal lines
	for i := x + 1; i < x+width-1; i++ {
		t.screen.SetContent(i, y, tcell.RuneHLine, nil, style)
		t.screen.SetContent(i, y+height-1, tcell.RuneHLine, nil, style)
	}

	// Vertical lines
	for i := y + 1; i < y+height-1; i++ {
		t.screen.SetContent(x, i, tcell.RuneVLine, nil, style)
		t.screen.SetContent(x+width-1, i, tcell.RuneVLine, nil, style)
	}
}

// drawText draws text at position, advancing by display width.
func (t *TUI) drawText(x, y int, text string, style tcell.Style) {
	for _, r := range text {
		if x >= t.width {
			return
		}
		t.screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

// fillRect fills a rectangle with spaces.
func (t *TUI) fillRect(x, y, width, height int, style tcell.Style) {
	for row := y; row < y+height && row < t.height; row++ {
		for col := x; col < x+width && col < t.width; col++ {
			t.screen.SetContent(col, row, ' ', nil, style)
		}
	}
}

// handleKey processes keyboard input. Returns true if should quit.
func (t *TUI) handleKey(ev *tcell.EventKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.Key() == tcell.KeyCtrlQ {
		return true
	}

	switch t.view.Mode {
	case ModeShare, ModeHelp:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyEnter:
			t.view.Mode = ModeNormal
		case tcell.KeyRune:
			if ev.Rune() == 'q' {
				t.view.Mode = ModeNormal
			}
		}
		return false
	}

	switch ev.Key() {
	case tcell.KeyF1:
		t.view.Mode = ModeHelp
		return false
	case tcell.KeyCtrlO:
		t.view.Mode = ModeShare
		return false
	}

	if ev.Modifiers()&tcell.ModShift != 0 {
		page, _ := t.termSize()
		switch ev.Key() {
		case tcell.KeyPgUp:
			t.scrollTo(t.view.ScrollOffset + page)
			return false
		case tcell.KeyPgDn:
			t.scrollTo(t.view.ScrollOffset - page)
			return false
		}
	}

	// Typing returns to the live screen.
	if t.view.IsScrolled() {
		t.scrollTo(0)
	}
	if t.view.ViewOnly {
		return false
	}
	appCursor := false
	if snap := t.mirror.Snapshot(); snap != nil {
		appCursor = snap.Modes.Get(vt100.ModeCursorKeys)
	}
	if data := EncodeKey(ev, appCursor); data != nil {
		t.sendInput(data)
	}
	return false
}

// handlePaste wraps pasted text in bracketed paste markers when the
// remote application asked for them.
func (t *TUI) handlePaste(ev *tcell.EventPaste) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.view.ViewOnly {
		return
	}
	snap := t.mirror.Snapshot()
	if snap == nil || !snap.Modes.Get(vt100.ModeBracketedPaste) {
		return
	}
	if ev.Start() {
		t.sendInput([]byte("\x1b[200~"))
	} else {
		t.sendInput([]byte("\x1b[201~"))
	}
}

// handleMouse scrolls history with the wheel.
func (t *TUI) handleMouse(ev *tcell.EventMouse) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.view.IsModal() {
		return
	}
	switch ev.Buttons() {
	case tcell.WheelUp:
		t.scrollTo(t.view.ScrollOffset + 3)
	case tcell.WheelDown:
		t.scrollTo(t.view.ScrollOffset - 3)
	}
}

// scrollTo moves the view offset rows into history and requests the
// rows that become visible. Callers hold t.mu.
func (t *TUI) scrollTo(offset int) {
	limit := t.view.ScrollbackLen
	if snap := t.mirror.Snapshot(); snap != nil && snap.AltScreen {
		limit = 0
	}
	offset = max(0, min(offset, limit))
	if offset == t.view.ScrollOffset {
		return
	}
	t.view.ScrollOffset = offset
	if offset == 0 {
		t.history = nil
		return
	}

	rows, _ := t.termSize()
	count := min(offset, rows)
	if err := t.remote.Send(relay.ScrollbackCommand(max(0, offset-rows), count)); err != nil {
		t.logger.Debug("Scrollback request failed", "error", err)
	}
}

func (t *TUI) sendInput(data []byte) {
	if err := t.remote.Send(relay.InputCommand(data)); err != nil {
		t.logger.Debug("Input failed", "error", err)
	}
}
