package vt100

import "strings"

// ColorKind tells how a Color is specified.
type ColorKind uint8

const (
	// ColorDefault is the terminal's default foreground or background.
	ColorDefault ColorKind = iota
	// ColorIndexed is one of the 256 palette colors.
	ColorIndexed
	// ColorRGB is a 24-bit truecolor value.
	ColorRGB
)

// Color is a cell foreground or background color.
type Color struct {
	Kind  ColorKind `json:"kind,omitempty"`
	Index uint8     `json:"index,omitempty"`
	R     uint8     `json:"r,omitempty"`
	G     uint8     `json:"g,omitempty"`
	B     uint8     `json:"b,omitempty"`
}

// DefaultColor is the zero Color.
var DefaultColor = Color{}

// IndexedColor returns palette color i.
func IndexedColor(i uint8) Color {
	return Color{Kind: ColorIndexed, Index: i}
}

// RGBColor returns a truecolor value.
func RGBColor(r, g, b uint8) Color {
	return Color{Kind: ColorRGB, R: r, G: g, B: b}
}

// IsDefault reports whether c is the default color.
func (c Color) IsDefault() bool {
	return c.Kind == ColorDefault
}

// Attr is a set of style flags.
type Attr uint16

const (
	AttrBold Attr = 1 << iota
	AttrFaint
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrInverse
	AttrInvisible
	AttrStrike
)

// Style is the drawing pen: colors and attributes applied to printed cells.
type Style struct {
	FG    Color `json:"fg"`
	BG    Color `json:"bg"`
	Attrs Attr  `json:"attrs,omitempty"`
}

// Cell is one grid position.
//
// Content holds a single grapheme (a base rune plus any combining marks).
// Width is 1 or 2 for a character, and 0 for the right half of a wide
// character. An empty Content renders as a space.
type Cell struct {
	Content string `json:"c,omitempty"`
	Width   uint8  `json:"w"`
	FG      Color  `json:"fg"`
	BG      Color  `json:"bg"`
	Attrs   Attr   `json:"a,omitempty"`
}

// BlankCell returns an empty cell carrying the background of style.
// Erased cells keep only the background, as xterm does with BCE.
func BlankCell(style Style) Cell {
	return Cell{Width: 1, BG: style.BG}
}

// Style returns the cell's colors and attributes.
func (c Cell) Style() Style {
	return Style{FG: c.FG, BG: c.BG, Attrs: c.Attrs}
}

// IsContinuation reports whether c is the right half of a wide character.
func (c Cell) IsContinuation() bool {
	return c.Width == 0
}

// IsBlank reports whether the cell shows nothing but background.
func (c Cell) IsBlank() bool {
	return c.Width != 0 && (c.Content == "" || c.Content == " ")
}

// String returns the displayed text of the cell.
func (c Cell) String() string {
	if c.Width == 0 {
		return ""
	}
	if c.Content == "" {
		return " "
	}
	return c.Content
}

// Line is one grid row.
type Line struct {
	Cells []Cell `json:"cells"`
	// Wrapped marks a row that continues onto the next one (soft wrap).
	Wrapped bool `json:"wrapped,omitempty"`
}

// NewLine returns a blank line of the given width.
func NewLine(cols int, style Style) Line {
	l := Line{Cells: make([]Cell, cols)}
	blank := BlankCell(style)
	for i := range l.Cells {
		l.Cells[i] = blank
	}
	return l
}

// Clone returns a deep copy of the line.
func (l Line) Clone() Line {
	cells := make([]Cell, len(l.Cells))
	copy(cells, l.Cells)
	return Line{Cells: cells, Wrapped: l.Wrapped}
}

// IsBlank reports whether every cell in the line is blank.
func (l Line) IsBlank() bool {
	for _, c := range l.Cells {
		if !c.IsBlank() && !c.IsContinuation() {
			return false
		}
	}
	return true
}

// String returns the line as text with trailing blanks removed.
func (l Line) String() string {
	var sb strings.Builder
	for _, c := range l.Cells {
		sb.WriteString(c.String())
	}
	return strings.TrimRight(sb.String(), " ")
}
