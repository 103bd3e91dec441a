// Package qr renders QR codes as terminal text.
//
// Uses Unicode half-block characters for correct aspect ratio since
// terminal characters are approximately 2:1 (height:width).
package qr

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/skip2/go-qrcode"
)

// ErrTooLarge is returned when no recovery level fits the given area.
var ErrTooLarge = errors.New("QR code too large for terminal")

// quietZone is the light border, in modules, around the code.
const quietZone = 2

// Lines renders data as half-block rows no larger than maxWidth columns by
// maxHeight rows. Recovery levels are tried from highest to lowest so the
// most robust code that fits wins.
//
// With invert set, dark modules are drawn as blank cells, which scans
// better on light-on-dark terminals.
func Lines(data string, maxWidth, maxHeight int, invert bool) ([]string, error) {
	levels := []qrcode.RecoveryLevel{
		qrcode.Highest,
		qrcode.High,
		qrcode.Medium,
		qrcode.Low,
	}

	for _, level := range levels {
		code, err := qrcode.New(data, level)
		if err != nil {
			// Data too long for this level; a lower one holds more.
			continue
		}
		// We draw our own quiet zone.
		code.DisableBorder = true
		bitmap := code.Bitmap()
		if len(bitmap) == 0 {
			continue
		}

		w, h := size(len(bitmap))
		if w <= maxWidth && h <= maxHeight {
			return halfBlocks(bitmap, invert), nil
		}
	}
	return nil, fmt.Errorf("%w: need more than %dx%d cells", ErrTooLarge, maxWidth, maxHeight)
}

// Dimensions returns the columns and rows Lines needs for data at the
// lowest recovery level, or (0, 0) if data cannot be encoded.
func Dimensions(data string) (int, int) {
	code, err := qrcode.New(data, qrcode.Low)
	if err != nil {
		return 0, 0
	}
	code.DisableBorder = true
	n := len(code.Bitmap())
	if n == 0 {
		return 0, 0
	}
	return size(n)
}

// Fprint writes the code for data followed by data itself, one row per
// line, using at most maxWidth by maxHeight cells.
func Fprint(w io.Writer, data string, maxWidth, maxHeight int) error {
	lines, err := Lines(data, maxWidth, maxHeight-1, false)
	if err != nil {
		return err
	}
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString(data)
	sb.WriteByte('\n')
	_, err = io.WriteString(w, sb.String())
	return err
}

func size(modules int) (int, int) {
	total := modules + quietZone*2
	return total, (total + 1) / 2
}

// halfBlocks packs two bitmap rows into each text row.
func halfBlocks(bitmap [][]bool, invert bool) []string {
	n := len(bitmap)
	total := n + quietZone*2
	rows := (total + 1) / 2

	dark := func(x, y int) bool {
		on := y >= 0 && y < n && x >= 0 && x < n && bitmap[y][x]
		return on != invert
	}

	lines := make([]string, 0, rows)
	for pair := 0; pair < rows; pair++ {
		upperY := pair*2 - quietZone
		lowerY := upperY + 1

		var sb strings.Builder
		sb.Grow(total * 3) // block characters are 3 bytes in UTF-8
		for x := -quietZone; x < n+quietZone; x++ {
			upper, lower := dark(x, upperY), dark(x, lowerY)
			switch {
			case upper && lower:
				sb.WriteRune('█')
			case upper:
				sb.WriteRune('▀')
			case lower:
				sb.WriteRune('▄')
			default:
				sb.WriteByte(' ')
			}
		}
		lines = append(lines, sb.String())
	}
	return lines
}
