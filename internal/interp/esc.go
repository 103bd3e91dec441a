package interp

import (
	"bytes"
	"net/url"
	"strconv"

	"github.com/trybotster/seshterm/internal/notification"
	"github.com/trybotster/seshterm/internal/render"
	"github.com/trybotster/seshterm/internal/vt100"
	"github.com/trybotster/seshterm/internal/vtparse"
)

type escKey struct {
	intermediate byte
	final        byte
}

var escTable = make(map[escKey]func(in *Interpreter))

func onESC(intermediate, final byte, h func(in *Interpreter)) {
	escTable[escKey{intermediate: intermediate, final: final}] = h
}

func init() {
	onESC(0, 'D', func(in *Interpreter) { in.term.Index() })
	onESC(0, 'E', func(in *Interpreter) { in.term.NextLine() })
	onESC(0, 'H', func(in *Interpreter) { in.term.SetTabStop() })
	onESC(0, 'M', func(in *Interpreter) { in.term.ReverseIndex() })
	onESC(0, '7', func(in *Interpreter) { in.term.SaveCursor() })
	onESC(0, '8', func(in *Interpreter) { in.term.RestoreCursor() })
	onESC(0, 'c', func(in *Interpreter) { in.term.Reset() })
	onESC(0, '=', func(in *Interpreter) { in.term.SetMode(vt100.ModeKeypadApplication, true) })
	onESC(0, '>', func(in *Interpreter) { in.term.SetMode(vt100.ModeKeypadApplication, false) })
	onESC(0, '\\', func(in *Interpreter) {}) // ST after an OSC or DCS
	onESC('#', '8', func(in *Interpreter) { in.term.FillScreen() })

	charsets := map[byte]vt100.Charset{
		'B': vt100.CharsetASCII,
		'0': vt100.CharsetDECSpecial,
		'A': vt100.CharsetUK,
	}
	for final, cs := range charsets {
		onESC('(', final, func(in *Interpreter) { in.term.DesignateCharset(0, cs) })
		onESC(')', final, func(in *Interpreter) { in.term.DesignateCharset(1, cs) })
	}
}

func (in *Interpreter) escDispatch(a vtparse.Action) {
	if len(a.Intermediates) > 1 {
		in.log.Debug("unhandled esc", "seq", a.String())
		return
	}
	h, ok := escTable[escKey{intermediate: a.Intermediate(), final: a.Final}]
	if !ok {
		in.log.Debug("unhandled esc", "seq", a.String())
		return
	}
	h(in)
}

var oscTable = map[string]func(in *Interpreter, fields [][]byte){
	"0":   oscTitleAndIcon,
	"1":   oscIcon,
	"2":   oscTitle,
	"7":   oscWorkingDir,
	"9":   oscNotify,
	"777": oscNotify,
}

func (in *Interpreter) oscDispatch(a vtparse.Action) {
	if len(a.OSC) == 0 {
		return
	}
	h, ok := oscTable[string(a.OSC[0])]
	if !ok {
		in.log.Debug("unhandled osc", "code", string(a.OSC[0]))
		return
	}
	h(in, a.OSC)
}

// oscPayload rejoins everything after the code; titles may contain ';'.
func oscPayload(fields [][]byte) string {
	if len(fields) < 2 {
		return ""
	}
	return string(bytes.Join(fields[1:], []byte{';'}))
}

func oscTitleAndIcon(in *Interpreter, fields [][]byte) {
	s := oscPayload(fields)
	in.term.SetTitle(s)
	in.term.SetIconName(s)
}

func oscIcon(in *Interpreter, fields [][]byte) {
	in.term.SetIconName(oscPayload(fields))
}

func oscTitle(in *Interpreter, fields [][]byte) {
	in.term.SetTitle(oscPayload(fields))
}

// oscWorkingDir accepts "file://host/path" as sent by shell integration
// scripts, and plain paths.
func oscWorkingDir(in *Interpreter, fields [][]byte) {
	raw := oscPayload(fields)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		in.term.SetWorkingDir(raw)
		return
	}
	if u.Scheme != "file" {
		in.log.Debug("ignoring working directory", "url", raw)
		return
	}
	in.term.SetWorkingDir(u.Path)
}

func oscNotify(in *Interpreter, fields [][]byte) {
	if n, ok := notification.FromOSC(fields); ok {
		in.term.Notify(n)
	}
}

type dcsKey struct {
	intermediate byte
	final        byte
}

// DECRQSS is the only DCS request answered.
var decrqss = dcsKey{intermediate: '$', final: 'q'}

func (in *Interpreter) dcsHook(a vtparse.Action) {
	in.dcs = dcsState{
		active: true,
		key:    dcsKey{intermediate: a.Intermediate(), final: a.Final},
		params: a.Params,
	}
}

func (in *Interpreter) dcsPut(b byte) {
	if !in.dcs.active || in.dcs.overflow {
		return
	}
	if len(in.dcs.buf) >= in.maxDCS {
		in.dcs.overflow = true
		in.dcs.buf = nil
		return
	}
	in.dcs.buf = append(in.dcs.buf, b)
}

func (in *Interpreter) dcsUnhook(a vtparse.Action) {
	st := in.dcs
	in.dcs = dcsState{}
	if !st.active || a.Aborted() {
		return
	}
	if st.overflow {
		in.log.Debug("dcs payload too long", "limit", in.maxDCS)
		return
	}
	if st.key != decrqss {
		in.log.Debug("unhandled dcs", "intermediate", st.key.intermediate, "final", st.key.final)
		return
	}
	in.requestStatus(string(st.buf))
}

// requestStatus answers DECRQSS for the pen and the scroll region.
func (in *Interpreter) requestStatus(setting string) {
	switch setting {
	case "m":
		in.write("\x1bP1$r" + render.SGRParams(in.term.Pen()) + "m\x1b\\")
	case "r":
		top, bottom := in.term.ScrollRegion()
		in.write("\x1bP1$r" + strconv.Itoa(top+1) + ";" + strconv.Itoa(bottom+1) + "r\x1b\\")
	default:
		in.write("\x1bP0$r\x1b\\")
	}
}
