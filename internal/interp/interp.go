// Package interp maps parsed terminal actions onto terminal state
// mutations.
//
// Dispatch is table driven: CSI sequences are keyed by (final byte,
// private marker, intermediate), ESC sequences by (intermediate, final),
// OSC strings by their numeric code and DCS strings by (intermediate,
// final). Unregistered keys are logged at debug level and dropped; nothing
// the child writes can make the interpreter fail.
package interp

import (
	"io"
	"log/slog"

	"github.com/trybotster/seshterm/internal/vt100"
	"github.com/trybotster/seshterm/internal/vtparse"
)

// DefaultMaxDCS bounds the payload buffered for one DCS string.
const DefaultMaxDCS = 4096

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithReplier sets where device replies (DA, DSR, DECRQSS) are written.
// They belong on the child's input stream.
func WithReplier(w io.Writer) Option {
	return func(in *Interpreter) {
		in.reply = w
	}
}

// WithMaxDCS bounds the DCS pass-through buffer.
func WithMaxDCS(n int) Option {
	return func(in *Interpreter) {
		if n > 0 {
			in.maxDCS = n
		}
	}
}

// Interpreter applies actions to a Terminal.
type Interpreter struct {
	term   *vt100.Terminal
	log    *slog.Logger
	reply  io.Writer
	maxDCS int

	dcs dcsState
}

type dcsState struct {
	active   bool
	key      dcsKey
	params   vtparse.Params
	buf      []byte
	overflow bool
}

// New creates an interpreter for term. A nil logger uses slog.Default().
func New(term *vt100.Terminal, logger *slog.Logger, opts ...Option) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Interpreter{
		term:   term,
		log:    logger,
		reply:  io.Discard,
		maxDCS: DefaultMaxDCS,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Terminal returns the terminal being driven.
func (in *Interpreter) Terminal() *vt100.Terminal {
	return in.term
}

// Perform applies one action.
func (in *Interpreter) Perform(a vtparse.Action) {
	switch a.Kind {
	case vtparse.Print:
		in.term.Print(a.Rune)
	case vtparse.Execute:
		in.execute(a.Byte)
	case vtparse.CsiDispatch:
		in.csiDispatch(a)
	case vtparse.EscDispatch:
		in.escDispatch(a)
	case vtparse.OscDispatch:
		in.oscDispatch(a)
	case vtparse.DcsHook:
		in.dcsHook(a)
	case vtparse.DcsPut:
		in.dcsPut(a.Byte)
	case vtparse.DcsUnhook:
		in.dcsUnhook(a)
	}
}

func (in *Interpreter) execute(b byte) {
	t := in.term
	switch b {
	case 0x07:
		t.Bell()
	case 0x08:
		t.Backspace()
	case 0x09:
		t.TabForward(1)
	case 0x0a, 0x0b, 0x0c:
		t.LineFeed()
	case 0x0d:
		t.CarriageReturn()
	case 0x0e:
		t.ShiftCharset(1)
	case 0x0f:
		t.ShiftCharset(0)
	case 0x00, 0x18, 0x1a:
		// NUL is padding; CAN and SUB only abort sequences.
	default:
		in.log.Debug("unhandled control", "byte", b)
	}
}

func (in *Interpreter) write(s string) {
	if _, err := io.WriteString(in.reply, s); err != nil {
		in.log.Warn("device reply failed", "error", err)
	}
}
