package vt100

// Cursor is the write position and the pen used for printed cells.
type Cursor struct {
	Row, Col int
	Pen      Style

	// PendingWrap is set after printing in the last column with auto-wrap
	// on. The next printable character wraps first.
	PendingWrap bool
}

// SavedCursor is the shadow copy kept by DECSC / SCOSC.
type SavedCursor struct {
	Cursor
	Origin   bool
	Charsets [2]Charset
	GL       int
	valid    bool
}

// CursorState is the cursor as seen by observers.
type CursorState struct {
	Row     int  `json:"row"`
	Col     int  `json:"col"`
	Visible bool `json:"visible"`
	// Shape is the DECSCUSR value (0 is the terminal default).
	Shape int `json:"shape,omitempty"`
}

// Charset is a designated G0/G1 character set.
type Charset uint8

const (
	CharsetASCII Charset = iota
	CharsetDECSpecial
	CharsetUK
)

// decSpecial maps 0x5f..0x7e to the DEC special graphics (line drawing) set.
var decSpecial = [...]rune{
	' ', '◆', '▒', '␉', '␌', '␍', '␊', '°', '±', '␤', '␋', '┘', '┐', '┌', '└', '┼',
	'⎺', '⎻', '─', '⎼', '⎽', '├', '┤', '┴', '┬', '│', '≤', '≥', 'π', '≠', '£', '·',
}

// Translate maps r through the charset.
func (cs Charset) Translate(r rune) rune {
	switch cs {
	case CharsetDECSpecial:
		if r >= 0x5f && r <= 0x7e {
			return decSpecial[r-0x5f]
		}
	case CharsetUK:
		if r == '#' {
			return '£'
		}
	}
	return r
}
