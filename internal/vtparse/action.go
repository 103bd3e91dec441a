package vtparse

import (
	"fmt"
	"strings"
)

// ActionKind identifies a parsed terminal action.
type ActionKind uint8

const (
	// Print is a printable character (already UTF-8 decoded).
	Print ActionKind = iota
	// Execute is a C0 control byte.
	Execute
	// CsiDispatch is a complete control sequence (ESC [ ... final).
	CsiDispatch
	// EscDispatch is a complete escape sequence (ESC intermediates final).
	EscDispatch
	// OscDispatch is a complete operating system command.
	OscDispatch
	// DcsHook starts a device control string.
	DcsHook
	// DcsPut is one payload byte of a device control string.
	DcsPut
	// DcsUnhook ends a device control string.
	DcsUnhook
)

func (k ActionKind) String() string {
	switch k {
	case Print:
		return "Print"
	case Execute:
		return "Execute"
	case CsiDispatch:
		return "CsiDispatch"
	case EscDispatch:
		return "EscDispatch"
	case OscDispatch:
		return "OscDispatch"
	case DcsHook:
		return "DcsHook"
	case DcsPut:
		return "DcsPut"
	case DcsUnhook:
		return "DcsUnhook"
	default:
		return "Unknown"
	}
}

// Params holds the numeric parameters of a CSI or DCS sequence.
// Empty parameters are stored as 0.
type Params []int

// Get returns parameter i, or def when it is omitted or zero.
func (p Params) Get(i, def int) int {
	if i < 0 || i >= len(p) || p[i] == 0 {
		return def
	}
	return p[i]
}

// Raw returns parameter i as received, or 0 when omitted.
func (p Params) Raw(i int) int {
	if i < 0 || i >= len(p) {
		return 0
	}
	return p[i]
}

// Action is one discrete unit of terminal output classified by the Parser.
// Slices are owned by the action and never alias parser buffers.
type Action struct {
	Kind ActionKind

	// Rune is the character for Print.
	Rune rune

	// Byte is the control byte for Execute, the payload byte for DcsPut,
	// and the terminating byte (ESC, CAN or SUB) for DcsUnhook.
	Byte byte

	// Final is the final byte of CsiDispatch, EscDispatch and DcsHook.
	Final byte

	// Private is the leading private marker ('?', '>', '<', '=') or 0.
	Private byte

	Intermediates []byte
	Params        Params

	// OSC holds the ';'-separated fields of an OscDispatch.
	OSC [][]byte
}

// Intermediate returns the first intermediate byte or 0.
func (a Action) Intermediate() byte {
	if len(a.Intermediates) == 0 {
		return 0
	}
	return a.Intermediates[0]
}

// Aborted reports whether a DcsUnhook was caused by CAN or SUB rather
// than a string terminator.
func (a Action) Aborted() bool {
	return a.Kind == DcsUnhook && (a.Byte == can || a.Byte == sub)
}

func (a Action) String() string {
	switch a.Kind {
	case Print:
		return fmt.Sprintf("Print(%q)", a.Rune)
	case Execute, DcsPut, DcsUnhook:
		return fmt.Sprintf("%s(0x%02x)", a.Kind, a.Byte)
	case OscDispatch:
		fields := make([]string, len(a.OSC))
		for i, f := range a.OSC {
			fields[i] = string(f)
		}
		return fmt.Sprintf("OscDispatch(%q)", strings.Join(fields, ";"))
	default:
		var sb strings.Builder
		sb.WriteString(a.Kind.String())
		sb.WriteByte('(')
		if a.Private != 0 {
			sb.WriteByte(a.Private)
		}
		for i, p := range a.Params {
			if i > 0 {
				sb.WriteByte(';')
			}
			fmt.Fprintf(&sb, "%d", p)
		}
		sb.Write(a.Intermediates)
		sb.WriteByte(a.Final)
		sb.WriteByte(')')
		return sb.String()
	}
}
