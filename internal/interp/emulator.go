package interp

import (
	"log/slog"

	"github.com/trybotster/seshterm/internal/vt100"
	"github.com/trybotster/seshterm/internal/vtparse"
)

// Emulator bundles a parser, an interpreter and the terminal they drive.
// It is not safe for concurrent use; callers serialize Process with any
// reads of the terminal.
type Emulator struct {
	parser *vtparse.Parser
	interp *Interpreter
	term   *vt100.Terminal
}

// NewEmulator creates an emulator with a fresh terminal of the given size
// and scrollback limit.
func NewEmulator(rows, cols, scrollback int, logger *slog.Logger, opts ...Option) *Emulator {
	term := vt100.NewWithScrollback(rows, cols, scrollback)
	return &Emulator{
		parser: vtparse.New(),
		interp: New(term, logger, opts...),
		term:   term,
	}
}

// Process feeds child output through the parser into the terminal.
// Sequences may be split across calls.
func (e *Emulator) Process(data []byte) {
	e.parser.Feed(data, e.interp.Perform)
}

// Write implements io.Writer; it never fails.
func (e *Emulator) Write(p []byte) (int, error) {
	e.Process(p)
	return len(p), nil
}

// Terminal returns the emulated terminal.
func (e *Emulator) Terminal() *vt100.Terminal {
	return e.term
}

// Resize changes the terminal dimensions.
func (e *Emulator) Resize(rows, cols int) error {
	return e.term.Resize(rows, cols)
}
