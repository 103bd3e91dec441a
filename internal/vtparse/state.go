package vtparse

// State is a position in the DEC ANSI parser state machine.
type State uint8

const (
	Ground State = iota
	Escape
	EscapeIntermediate
	CsiEntry
	CsiParam
	CsiIntermediate
	CsiIgnore
	OscString
	DcsEntry
	DcsParam
	DcsIntermediate
	DcsPassthrough
	DcsIgnore
	SosPmApcString
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Ground:
		return "Ground"
	case Escape:
		return "Escape"
	case EscapeIntermediate:
		return "EscapeIntermediate"
	case CsiEntry:
		return "CsiEntry"
	case CsiParam:
		return "CsiParam"
	case CsiIntermediate:
		return "CsiIntermediate"
	case CsiIgnore:
		return "CsiIgnore"
	case OscString:
		return "OscString"
	case DcsEntry:
		return "DcsEntry"
	case DcsParam:
		return "DcsParam"
	case DcsIntermediate:
		return "DcsIntermediate"
	case DcsPassthrough:
		return "DcsPassthrough"
	case DcsIgnore:
		return "DcsIgnore"
	case SosPmApcString:
		return "SosPmApcString"
	default:
		return "Unknown"
	}
}

// Effect is what a transition asks the parser to do with the byte that
// caused it. Entry and exit actions (clear, hook, unhook, osc start/end)
// are implied by the state change and run by the Parser, not returned here.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectPrint
	EffectExecute
	EffectCollect
	EffectMarker
	EffectParam
	EffectEscDispatch
	EffectCsiDispatch
	EffectPut
	EffectOscPut
)

// String returns the effect name.
func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "None"
	case EffectPrint:
		return "Print"
	case EffectExecute:
		return "Execute"
	case EffectCollect:
		return "Collect"
	case EffectMarker:
		return "Marker"
	case EffectParam:
		return "Param"
	case EffectEscDispatch:
		return "EscDispatch"
	case EffectCsiDispatch:
		return "CsiDispatch"
	case EffectPut:
		return "Put"
	case EffectOscPut:
		return "OscPut"
	default:
		return "Unknown"
	}
}

const (
	can = 0x18
	sub = 0x1a
	esc = 0x1b
	bel = 0x07
	del = 0x7f
)

// isC0 reports whether b is a C0 control that executes in place
// (everything below 0x20 except the anywhere-transition bytes).
func isC0(b byte) bool {
	return b < 0x20 && b != can && b != sub && b != esc
}

// Transition is the pure transition function of the parser: given the
// current state and the next raw byte it returns the next state and the
// effect to perform. It holds no buffers and performs no I/O.
func Transition(s State, b byte) (State, Effect) {
	// Anywhere transitions.
	switch b {
	case can, sub:
		return Ground, EffectExecute
	case esc:
		return Escape, EffectNone
	}

	switch s {
	case Ground:
		switch {
		case isC0(b):
			return Ground, EffectExecute
		case b == del:
			return Ground, EffectNone
		default:
			return Ground, EffectPrint
		}

	case Escape:
		switch {
		case isC0(b):
			return Escape, EffectExecute
		case b >= 0x20 && b <= 0x2f:
			return EscapeIntermediate, EffectCollect
		case b == '[':
			return CsiEntry, EffectNone
		case b == ']':
			return OscString, EffectNone
		case b == 'P':
			return DcsEntry, EffectNone
		case b == 'X', b == '^', b == '_':
			return SosPmApcString, EffectNone
		case b >= 0x30 && b <= 0x7e:
			return Ground, EffectEscDispatch
		default:
			return Escape, EffectNone
		}

	case EscapeIntermediate:
		switch {
		case isC0(b):
			return EscapeIntermediate, EffectExecute
		case b >= 0x20 && b <= 0x2f:
			return EscapeIntermediate, EffectCollect
		case b >= 0x30 && b <= 0x7e:
			return Ground, EffectEscDispatch
		default:
			return EscapeIntermediate, EffectNone
		}

	case CsiEntry:
		switch {
		case isC0(b):
			return CsiEntry, EffectExecute
		case b >= 0x20 && b <= 0x2f:
			return CsiIntermediate, EffectCollect
		case b >= 0x30 && b <= 0x3b:
			return CsiParam, EffectParam
		case b >= 0x3c && b <= 0x3f:
			return CsiParam, EffectMarker
		case b >= 0x40 && b <= 0x7e:
			return Ground, EffectCsiDispatch
		default:
			return CsiEntry, EffectNone
		}

	case CsiParam:
		switch {
		case isC0(b):
			return CsiParam, EffectExecute
		case b >= 0x30 && b <= 0x3b:
			return CsiParam, EffectParam
		case b >= 0x3c && b <= 0x3f:
			return CsiIgnore, EffectNone
		case b >= 0x20 && b <= 0x2f:
			return CsiIntermediate, EffectCollect
		case b >= 0x40 && b <= 0x7e:
			return Ground, EffectCsiDispatch
		default:
			return CsiParam, EffectNone
		}

	case CsiIntermediate:
		switch {
		case isC0(b):
			return CsiIntermediate, EffectExecute
		case b >= 0x20 && b <= 0x2f:
			return CsiIntermediate, EffectCollect
		case b >= 0x30 && b <= 0x3f:
			return CsiIgnore, EffectNone
		case b >= 0x40 && b <= 0x7e:
			return Ground, EffectCsiDispatch
		default:
			return CsiIntermediate, EffectNone
		}

	case CsiIgnore:
		switch {
		case isC0(b):
			return CsiIgnore, EffectExecute
		case b >= 0x40 && b <= 0x7e:
			return Ground, EffectNone
		default:
			return CsiIgnore, EffectNone
		}

	case DcsEntry:
		switch {
		case b >= 0x20 && b <= 0x2f:
			return DcsIntermediate, EffectCollect
		case b >= 0x30 && b <= 0x3b:
			return DcsParam, EffectParam
		case b >= 0x3c && b <= 0x3f:
			return DcsParam, EffectMarker
		case b >= 0x40 && b <= 0x7e:
			return DcsPassthrough, EffectNone
		default:
			return DcsEntry, EffectNone
		}

	case DcsParam:
		switch {
		case b >= 0x30 && b <= 0x3b:
			return DcsParam, EffectParam
		case b >= 0x3c && b <= 0x3f:
			return DcsIgnore, EffectNone
		case b >= 0x20 && b <= 0x2f:
			return DcsIntermediate, EffectCollect
		case b >= 0x40 && b <= 0x7e:
			return DcsPassthrough, EffectNone
		default:
			return DcsParam, EffectNone
		}

	case DcsIntermediate:
		switch {
		case b >= 0x20 && b <= 0x2f:
			return DcsIntermediate, EffectCollect
		case b >= 0x30 && b <= 0x3f:
			return DcsIgnore, EffectNone
		case b >= 0x40 && b <= 0x7e:
			return DcsPassthrough, EffectNone
		default:
			return DcsIntermediate, EffectNone
		}

	case DcsPassthrough:
		if b == del {
			return DcsPassthrough, EffectNone
		}
		return DcsPassthrough, EffectPut

	case DcsIgnore:
		return DcsIgnore, EffectNone

	case OscString:
		switch {
		case b == bel:
			return Ground, EffectNone
		case b < 0x20:
			return OscString, EffectNone
		default:
			return OscString, EffectOscPut
		}

	case SosPmApcString:
		return SosPmApcString, EffectNone
	}

	return Ground, EffectNone
}
