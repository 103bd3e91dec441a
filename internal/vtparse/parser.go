// Package vtparse classifies a raw terminal byte stream into discrete actions.
//
// The parser is an explicit DEC ANSI state machine (after Paul Williams'
// VT500 parser) with UTF-8 decoding in the ground state. It has no terminal
// semantics: it never touches a screen, it only reports what the bytes
// mean. Feeding a stream one byte at a time or in arbitrary chunks produces
// the same action sequence.
package vtparse

import (
	"bytes"
	"unicode/utf8"
)

// Default bounds for accumulated sequence data.
const (
	DefaultMaxParams        = 32
	DefaultMaxParamValue    = 65535
	DefaultMaxIntermediates = 2
	DefaultMaxOSCLength     = 4096
)

// Option configures a Parser.
type Option func(*Parser)

// WithMaxParams bounds the number of parameters in one sequence.
func WithMaxParams(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxParams = n
		}
	}
}

// WithMaxParamValue bounds the value of a single parameter.
func WithMaxParamValue(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxParamValue = n
		}
	}
}

// WithMaxIntermediates bounds the number of intermediate bytes.
func WithMaxIntermediates(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxIntermediates = n
		}
	}
}

// WithMaxOSCLength bounds the payload length of an OSC string.
func WithMaxOSCLength(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxOSC = n
		}
	}
}

// Parser is the byte-level state machine. It is not safe for concurrent
// use; the byte stream must be fed in arrival order.
type Parser struct {
	state State

	maxParams        int
	maxParamValue    int
	maxIntermediates int
	maxOSC           int

	params    []int
	param     int
	hasParams bool
	private   byte

	intermediates []byte
	escOverflow   bool

	osc         []byte
	oscOverflow bool

	utf8buf  [utf8.UTFMax]byte
	utf8n    int
	utf8need int
}

// New creates a parser in the ground state.
func New(opts ...Option) *Parser {
	p := &Parser{
		maxParams:        DefaultMaxParams,
		maxParamValue:    DefaultMaxParamValue,
		maxIntermediates: DefaultMaxIntermediates,
		maxOSC:           DefaultMaxOSCLength,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.params = make([]int, 0, p.maxParams)
	p.intermediates = make([]byte, 0, p.maxIntermediates)
	p.osc = make([]byte, 0, 128)
	return p
}

// State returns the current state.
func (p *Parser) State() State {
	return p.state
}

// Reset returns the parser to the ground state and drops any partial
// sequence or partial UTF-8 character.
func (p *Parser) Reset() {
	p.state = Ground
	p.clear()
	p.osc = p.osc[:0]
	p.oscOverflow = false
	p.utf8n, p.utf8need = 0, 0
}

// Feed advances the parser over data, calling fn for every action.
func (p *Parser) Feed(data []byte, fn func(Action)) {
	for _, b := range data {
		p.Advance(b, fn)
	}
}

// Actions parses data and returns the resulting actions.
func (p *Parser) Actions(data []byte) []Action {
	var out []Action
	p.Feed(data, func(a Action) { out = append(out, a) })
	return out
}

// Advance feeds a single byte.
func (p *Parser) Advance(b byte, fn func(Action)) {
	if p.utf8need > 0 {
		if b >= 0x80 && b <= 0xbf {
			p.utf8buf[p.utf8n] = b
			p.utf8n++
			if p.utf8n == p.utf8need {
				p.flushUTF8(fn)
			}
			return
		}
		// Truncated sequence: replace it and reprocess b from scratch.
		p.utf8n, p.utf8need = 0, 0
		fn(Action{Kind: Print, Rune: utf8.RuneError})
	}

	if p.state == Ground && b >= 0x80 {
		p.startUTF8(b, fn)
		return
	}

	p.step(b, fn)
}

func (p *Parser) startUTF8(b byte, fn func(Action)) {
	var need int
	switch {
	case b >= 0xc2 && b <= 0xdf:
		need = 2
	case b >= 0xe0 && b <= 0xef:
		need = 3
	case b >= 0xf0 && b <= 0xf4:
		need = 4
	default:
		fn(Action{Kind: Print, Rune: utf8.RuneError})
		return
	}
	p.utf8buf[0] = b
	p.utf8n = 1
	p.utf8need = need
}

func (p *Parser) flushUTF8(fn func(Action)) {
	r, _ := utf8.DecodeRune(p.utf8buf[:p.utf8n])
	p.utf8n, p.utf8need = 0, 0

	if r >= 0x80 && r <= 0x9f {
		// C1 control encoded as a code point: same as its 7-bit ESC Fe form.
		p.step(esc, fn)
		p.step(byte(r-0x40), fn)
		return
	}
	fn(Action{Kind: Print, Rune: r})
}

func (p *Parser) step(b byte, fn func(Action)) {
	cur := p.state
	next, eff := Transition(cur, b)

	if next != cur {
		p.exit(cur, b, fn)
	}
	if override, ok := p.perform(cur, eff, b, fn); ok {
		next = override
	}
	if next != cur {
		p.state = next
		p.enter(next, b, fn)
	}
}

func (p *Parser) perform(cur State, eff Effect, b byte, fn func(Action)) (State, bool) {
	switch eff {
	case EffectPrint:
		fn(Action{Kind: Print, Rune: rune(b)})

	case EffectExecute:
		fn(Action{Kind: Execute, Byte: b})

	case EffectCollect:
		if len(p.intermediates) >= p.maxIntermediates {
			return p.overflow(cur)
		}
		p.intermediates = append(p.intermediates, b)

	case EffectMarker:
		p.private = b

	case EffectParam:
		if b == ';' || b == ':' {
			if len(p.params) >= p.maxParams-1 {
				return p.overflow(cur)
			}
			p.params = append(p.params, p.param)
			p.param = 0
			p.hasParams = true
			return 0, false
		}
		p.param = p.param*10 + int(b-'0')
		p.hasParams = true
		if p.param > p.maxParamValue {
			return p.overflow(cur)
		}

	case EffectCsiDispatch:
		fn(Action{
			Kind:          CsiDispatch,
			Final:         b,
			Private:       p.private,
			Intermediates: cloneBytes(p.intermediates),
			Params:        p.finishParams(),
		})

	case EffectEscDispatch:
		if p.escOverflow {
			return 0, false
		}
		fn(Action{
			Kind:          EscDispatch,
			Final:         b,
			Intermediates: cloneBytes(p.intermediates),
		})

	case EffectPut:
		fn(Action{Kind: DcsPut, Byte: b})

	case EffectOscPut:
		if len(p.osc) >= p.maxOSC {
			p.oscOverflow = true
			return 0, false
		}
		p.osc = append(p.osc, b)
	}
	return 0, false
}

// overflow diverts a sequence that exceeded a bound to the ignore state
// that matches its family.
func (p *Parser) overflow(cur State) (State, bool) {
	switch cur {
	case CsiEntry, CsiParam, CsiIntermediate:
		return CsiIgnore, true
	case DcsEntry, DcsParam, DcsIntermediate:
		return DcsIgnore, true
	default:
		p.escOverflow = true
		return 0, false
	}
}

func (p *Parser) enter(s State, b byte, fn func(Action)) {
	switch s {
	case Escape, CsiEntry, DcsEntry:
		p.clear()
	case OscString:
		p.osc = p.osc[:0]
		p.oscOverflow = false
	case DcsPassthrough:
		fn(Action{
			Kind:          DcsHook,
			Final:         b,
			Private:       p.private,
			Intermediates: cloneBytes(p.intermediates),
			Params:        p.finishParams(),
		})
	}
}

func (p *Parser) exit(s State, b byte, fn func(Action)) {
	switch s {
	case OscString:
		if b == can || b == sub || p.oscOverflow {
			return
		}
		fields := bytes.Split(p.osc, []byte{';'})
		out := make([][]byte, len(fields))
		for i, f := range fields {
			out[i] = cloneBytes(f)
		}
		fn(Action{Kind: OscDispatch, OSC: out})
	case DcsPassthrough:
		fn(Action{Kind: DcsUnhook, Byte: b})
	}
}

func (p *Parser) clear() {
	p.params = p.params[:0]
	p.param = 0
	p.hasParams = false
	p.private = 0
	p.intermediates = p.intermediates[:0]
	p.escOverflow = false
}

func (p *Parser) finishParams() Params {
	if !p.hasParams {
		return nil
	}
	out := make(Params, len(p.params)+1)
	copy(out, p.params)
	out[len(p.params)] = p.param
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
