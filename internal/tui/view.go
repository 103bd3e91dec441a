// Package tui is the local attach viewer: it mirrors a remote session into
// a tcell screen and forwards keystrokes back.
package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/trybotster/seshterm/internal/notification"
	"github.com/trybotster/seshterm/internal/vt100"
)

// AppMode represents the current application mode.
type AppMode int

const (
	ModeNormal AppMode = iota
	ModeShare
	ModeHelp
)

func (m AppMode) String() string {
	switch m {
	case ModeShare:
		return "share"
	case ModeHelp:
		return "help"
	default:
		return "normal"
	}
}

// ConnStatus is the state of the stream to the server.
type ConnStatus int

const (
	StatusConnecting ConnStatus = iota
	StatusConnected
	StatusClosed
)

func (s ConnStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusClosed:
		return "closed"
	default:
		return "connecting"
	}
}

// ViewState is what the status line and overlays need.
type ViewState struct {
	Mode   AppMode
	Status ConnStatus
	// Title is the session's window title.
	Title string
	// ScrollOffset is how many rows the view is scrolled into history.
	ScrollOffset int
	// ScrollbackLen is the number of history rows on the server.
	ScrollbackLen int
	// ShareURL is shown as a QR code in share mode.
	ShareURL string
	// ViewOnly suppresses input and resize.
	ViewOnly bool
	// Notice is the last notification or error, shown until replaced.
	Notice string
}

// NewViewState creates a new ViewState with default values.
func NewViewState() *ViewState {
	return &ViewState{Mode: ModeNormal, Status: StatusConnecting}
}

// IsModal returns true if an overlay covers the terminal.
func (v *ViewState) IsModal() bool {
	return v.Mode != ModeNormal
}

// IsScrolled reports whether history is shown instead of the live screen.
func (v *ViewState) IsScrolled() bool {
	return v.ScrollOffset > 0
}

// StatusLine builds the bottom line, fit to width cells.
func (v *ViewState) StatusLine(width int) string {
	left := " seshterm"
	if v.Title != "" {
		left += " │ " + v.Title
	}
	if v.Notice != "" {
		left += " │ " + v.Notice
	}

	var right []string
	if v.Status != StatusConnected {
		right = append(right, "["+v.Status.String()+"]")
	}
	if v.ViewOnly {
		right = append(right, "[view-only]")
	}
	if v.IsScrolled() {
		right = append(right, FormatScrollStatus(v.ScrollOffset, v.ScrollbackLen))
	}
	right = append(right, HelpHint(v.Mode)+" ")
	r := strings.Join(right, " ")

	return fitLine(left, r, width)
}

// FormatScrollStatus shows the scroll position as "[+12/340]".
func FormatScrollStatus(offset, total int) string {
	return fmt.Sprintf("[+%d/%d]", offset, total)
}

// HelpHint returns the key help for a mode.
func HelpHint(m AppMode) string {
	switch m {
	case ModeShare, ModeHelp:
		return "Esc:Close"
	default:
		return "Ctrl+Q:Quit F1:Help"
	}
}

// FormatNotification turns a terminal notification into one status line.
func FormatNotification(n notification.Notification) string {
	switch n.Type {
	case notification.TypeOSC777:
		if n.Body == "" {
			return n.Title
		}
		if n.Title == "" {
			return n.Body
		}
		return n.Title + ": " + n.Body
	case notification.TypeBell:
		return "bell"
	default:
		return n.Message
	}
}

// fitLine places left and right in width cells, truncating left first.
func fitLine(left, right string, width int) string {
	rw := runewidth.StringWidth(right)
	if rw >= width {
		return runewidth.Truncate(right, width, "")
	}
	left = runewidth.Truncate(left, width-rw-1, "…")
	pad := width - runewidth.StringWidth(left) - rw
	return left + strings.Repeat(" ", pad) + right
}

// CellStyle converts a grid cell's colors and attributes to tcell.
func CellStyle(c vt100.Cell) tcell.Style {
	st := tcell.StyleDefault.
		Foreground(ColorToTcell(c.FG)).
		Background(ColorToTcell(c.BG))

	a := c.Attrs
	if a&vt100.AttrBold != 0 {
		st = st.Bold(true)
	}
	if a&vt100.AttrFaint != 0 {
		st = st.Dim(true)
	}
	if a&vt100.AttrItalic != 0 {
		st = st.Italic(true)
	}
	if a&vt100.AttrUnderline != 0 {
		st = st.Underline(true)
	}
	if a&vt100.AttrBlink != 0 {
		st = st.Blink(true)
	}
	if a&vt100.AttrInverse != 0 {
		st = st.Reverse(true)
	}
	if a&vt100.AttrStrike != 0 {
		st = st.StrikeThrough(true)
	}
	if a&vt100.AttrInvisible != 0 {
		// Hidden text keeps its background only.
		_, bg, _ := st.Decompose()
		st = st.Foreground(bg)
	}
	return st
}

// ColorToTcell converts a grid color to tcell.
func ColorToTcell(c vt100.Color) tcell.Color {
	switch c.Kind {
	case vt100.ColorIndexed:
		return tcell.PaletteColor(int(c.Index))
	case vt100.ColorRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorDefault
	}
}

// cellRunes splits a cell's grapheme into tcell's primary and combining
// runes.
func cellRunes(c vt100.Cell) (rune, []rune) {
	if c.Content == "" {
		return ' ', nil
	}
	rs := []rune(c.Content)
	if len(rs) == 1 {
		return rs[0], nil
	}
	return rs[0], rs[1:]
}
