package vt100

import (
	"errors"
	"fmt"
)

// DefaultScrollback is the default scrollback bound in rows.
const DefaultScrollback = 10000

var (
	// ErrInvalidSize is returned for a resize to zero rows or columns.
	ErrInvalidSize = errors.New("invalid terminal size")

	// ErrOutOfRange is returned for a scrollback query beyond the history.
	ErrOutOfRange = errors.New("scrollback offset out of range")
)

// Scrollback is a bounded FIFO of rows evicted from the top of the
// primary screen. When full, the oldest row is dropped.
type Scrollback struct {
	ring    []Line
	start   int
	n       int
	max     int
	evicted uint64
}

// NewScrollback creates a scrollback holding at most max rows.
// A max of zero disables scrollback.
func NewScrollback(max int) *Scrollback {
	return &Scrollback{max: max}
}

// Push appends a row, evicting the oldest when the bound is reached.
func (s *Scrollback) Push(l Line) {
	if s.max <= 0 {
		s.evicted++
		return
	}
	if s.n < s.max {
		// Grow lazily so an idle terminal does not hold max rows.
		if len(s.ring) < s.max {
			s.ring = append(s.ring, Line{})
		}
		s.ring[(s.start+s.n)%len(s.ring)] = l
		s.n++
		return
	}
	s.ring[s.start] = l
	s.start = (s.start + 1) % len(s.ring)
	s.evicted++
}

// Len returns the number of stored rows.
func (s *Scrollback) Len() int { return s.n }

// Max returns the configured bound.
func (s *Scrollback) Max() int { return s.max }

// Evicted returns how many rows have been dropped since creation.
func (s *Scrollback) Evicted() uint64 { return s.evicted }

// At returns row i, where 0 is the oldest stored row.
func (s *Scrollback) At(i int) Line {
	return s.ring[(s.start+i)%len(s.ring)]
}

// Query returns up to count rows ending offset rows back from the newest
// row (offset 0 is the newest). Rows are returned oldest first and are
// copies. The window is clamped at the oldest stored row.
func (s *Scrollback) Query(offset, count int) ([]Line, error) {
	if offset < 0 || count < 0 {
		return nil, fmt.Errorf("%w: offset %d count %d", ErrOutOfRange, offset, count)
	}
	if offset >= s.n {
		return nil, fmt.Errorf("%w: offset %d, history has %d rows", ErrOutOfRange, offset, s.n)
	}
	end := s.n - offset
	start := max(end-count, 0)
	out := make([]Line, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, s.At(i).Clone())
	}
	return out, nil
}

// Lines returns a copy of every stored row, oldest first.
func (s *Scrollback) Lines() []Line {
	out := make([]Line, s.n)
	for i := range out {
		out[i] = s.At(i).Clone()
	}
	return out
}

// Clear drops all stored rows.
func (s *Scrollback) Clear() {
	s.ring = nil
	s.start = 0
	s.n = 0
}

// SetMax changes the bound, dropping the oldest rows if needed.
func (s *Scrollback) SetMax(max int) {
	lines := s.Lines()
	if drop := len(lines) - max; drop > 0 {
		s.evicted += uint64(drop)
		lines = lines[drop:]
	}
	s.max = max
	s.ring = lines
	s.start = 0
	s.n = len(lines)
}
