package vtparse

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func osc(fields ...string) [][]byte {
	out := make([][]byte, len(fields))
	for i, f := range fields {
		out[i] = []byte(f)
	}
	return out
}

func TestParserActions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Action
	}{
		{
			name:  "plain text",
			input: "hi",
			want: []Action{
				{Kind: Print, Rune: 'h'},
				{Kind: Print, Rune: 'i'},
			},
		},
		{
			name:  "c0 controls",
			input: "\r\n\x07",
			want: []Action{
				{Kind: Execute, Byte: '\r'},
				{Kind: Execute, Byte: '\n'},
				{Kind: Execute, Byte: 0x07},
			},
		},
		{
			name:  "sgr",
			input: "\x1b[1;31m",
			want:  []Action{{Kind: CsiDispatch, Final: 'm', Params: Params{1, 31}}},
		},
		{
			name:  "csi without params",
			input: "\x1b[H",
			want:  []Action{{Kind: CsiDispatch, Final: 'H'}},
		},
		{
			name:  "empty params are zero",
			input: "\x1b[;5H",
			want:  []Action{{Kind: CsiDispatch, Final: 'H', Params: Params{0, 5}}},
		},
		{
			name:  "colon separator",
			input: "\x1b[38:5:196m",
			want:  []Action{{Kind: CsiDispatch, Final: 'm', Params: Params{38, 5, 196}}},
		},
		{
			name:  "private marker",
			input: "\x1b[?1049h",
			want:  []Action{{Kind: CsiDispatch, Final: 'h', Private: '?', Params: Params{1049}}},
		},
		{
			name:  "csi intermediate",
			input: "\x1b[!p",
			want:  []Action{{Kind: CsiDispatch, Final: 'p', Intermediates: []byte{'!'}}},
		},
		{
			name:  "cursor style",
			input: "\x1b[2 q",
			want:  []Action{{Kind: CsiDispatch, Final: 'q', Params: Params{2}, Intermediates: []byte{' '}}},
		},
		{
			name:  "late private marker ignored",
			input: "\x1b[1?hX",
			want:  []Action{{Kind: Print, Rune: 'X'}},
		},
		{
			name:  "execute inside csi",
			input: "\x1b[1\n;2H",
			want: []Action{
				{Kind: Execute, Byte: '\n'},
				{Kind: CsiDispatch, Final: 'H', Params: Params{1, 2}},
			},
		},
		{
			name:  "esc dispatch",
			input: "\x1b7\x1b(0",
			want: []Action{
				{Kind: EscDispatch, Final: '7'},
				{Kind: EscDispatch, Final: '0', Intermediates: []byte{'('}},
			},
		},
		{
			name:  "osc bel terminated",
			input: "\x1b]0;title\x07",
			want:  []Action{{Kind: OscDispatch, OSC: osc("0", "title")}},
		},
		{
			name:  "osc st terminated",
			input: "\x1b]2;a;b\x1b\\",
			want: []Action{
				{Kind: OscDispatch, OSC: osc("2", "a", "b")},
				{Kind: EscDispatch, Final: '\\'},
			},
		},
		{
			name:  "osc utf8 payload",
			input: "\x1b]2;héllo\x07",
			want:  []Action{{Kind: OscDispatch, OSC: osc("2", "héllo")}},
		},
		{
			name:  "osc aborted by can",
			input: "\x1b]0;gone\x18A",
			want: []Action{
				{Kind: Execute, Byte: 0x18},
				{Kind: Print, Rune: 'A'},
			},
		},
		{
			name:  "dcs hook put unhook",
			input: "\x1bP$qm\x1b\\",
			want: []Action{
				{Kind: DcsHook, Final: 'q', Intermediates: []byte{'$'}},
				{Kind: DcsPut, Byte: 'm'},
				{Kind: DcsUnhook, Byte: 0x1b},
				{Kind: EscDispatch, Final: '\\'},
			},
		},
		{
			name:  "dcs with params",
			input: "\x1bP1;2|ab\x1b\\",
			want: []Action{
				{Kind: DcsHook, Final: '|', Params: Params{1, 2}},
				{Kind: DcsPut, Byte: 'a'},
				{Kind: DcsPut, Byte: 'b'},
				{Kind: DcsUnhook, Byte: 0x1b},
				{Kind: EscDispatch, Final: '\\'},
			},
		},
		{
			name:  "dcs aborted by sub",
			input: "\x1bPqx\x1a",
			want: []Action{
				{Kind: DcsHook, Final: 'q'},
				{Kind: DcsPut, Byte: 'x'},
				{Kind: DcsUnhook, Byte: 0x1a},
				{Kind: Execute, Byte: 0x1a},
			},
		},
		{
			name:  "apc swallowed",
			input: "\x1b_Gdata\x1b\\Z",
			want: []Action{
				{Kind: EscDispatch, Final: '\\'},
				{Kind: Print, Rune: 'Z'},
			},
		},
		{
			name:  "utf8 multibyte",
			input: "é世🎉",
			want: []Action{
				{Kind: Print, Rune: 'é'},
				{Kind: Print, Rune: '世'},
				{Kind: Print, Rune: '🎉'},
			},
		},
		{
			name:  "invalid lead byte",
			input: "\xffa",
			want: []Action{
				{Kind: Print, Rune: '�'},
				{Kind: Print, Rune: 'a'},
			},
		},
		{
			name:  "truncated utf8",
			input: "\xe4\xb8a",
			want: []Action{
				{Kind: Print, Rune: '�'},
				{Kind: Print, Rune: 'a'},
			},
		},
		{
			name:  "truncated utf8 before escape",
			input: "\xc3\x1b[m",
			want: []Action{
				{Kind: Print, Rune: '�'},
				{Kind: CsiDispatch, Final: 'm'},
			},
		},
		{
			name:  "utf8 encoded c1 csi",
			input: "\u009b2J",
			want:  []Action{{Kind: CsiDispatch, Final: 'J', Params: Params{2}}},
		},
		{
			name:  "utf8 encoded c1 ind",
			input: "\u0084",
			want:  []Action{{Kind: EscDispatch, Final: 'D'}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New().Actions([]byte(tt.input))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Actions(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParserOverflow(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Action
	}{
		{
			name:  "param value overflow",
			input: "\x1b[999999999999;mA",
			want:  []Action{{Kind: Print, Rune: 'A'}},
		},
		{
			name:  "param count overflow",
			input: "\x1b[" + strings.Repeat("1;", 40) + "mB",
			want:  []Action{{Kind: Print, Rune: 'B'}},
		},
		{
			name:  "intermediate overflow",
			input: "\x1b[1!!!pC",
			want:  []Action{{Kind: Print, Rune: 'C'}},
		},
		{
			name:  "esc intermediate overflow",
			input: "\x1b(((BD",
			want:  []Action{{Kind: Print, Rune: 'D'}},
		},
		{
			name:  "dcs param overflow",
			input: "\x1bP99999999qxyz\x1b\\E",
			want: []Action{
				{Kind: EscDispatch, Final: '\\'},
				{Kind: Print, Rune: 'E'},
			},
		},
		{
			name:  "osc too long",
			input: "\x1b]0;" + strings.Repeat("x", DefaultMaxOSCLength+10) + "\x07F",
			want:  []Action{{Kind: Print, Rune: 'F'}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			got := p.Actions([]byte(tt.input))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Actions mismatch (-want +got):\n%s", diff)
			}
			if p.State() != Ground {
				t.Errorf("state = %s, want Ground", p.State())
			}
		})
	}
}

func TestParserMaxParamsAccepted(t *testing.T) {
	input := "\x1b[" + strings.Repeat("1;", DefaultMaxParams-1) + "1m"
	got := New().Actions([]byte(input))
	if len(got) != 1 {
		t.Fatalf("got %d actions, want 1", len(got))
	}
	if n := len(got[0].Params); n != DefaultMaxParams {
		t.Errorf("params = %d, want %d", n, DefaultMaxParams)
	}
}

func TestParserOptions(t *testing.T) {
	p := New(WithMaxParams(2), WithMaxParamValue(10), WithMaxOSCLength(3), WithMaxIntermediates(1))

	if got := p.Actions([]byte("\x1b[1;2;3m")); len(got) != 0 {
		t.Errorf("3 params with max 2: got %v, want nothing", got)
	}
	if got := p.Actions([]byte("\x1b[11m")); len(got) != 0 {
		t.Errorf("value 11 with max 10: got %v, want nothing", got)
	}
	if got := p.Actions([]byte("\x1b]0;ab\x07")); len(got) != 0 {
		t.Errorf("osc over max: got %v, want nothing", got)
	}
	if got := p.Actions([]byte("\x1b]0;\x07")); len(got) != 1 {
		t.Errorf("osc within max: got %v, want one dispatch", got)
	}
	if got := p.Actions([]byte("\x1b[ !p")); len(got) != 0 {
		t.Errorf("2 intermediates with max 1: got %v, want nothing", got)
	}
}

func TestParserFragmentation(t *testing.T) {
	inputs := []string{
		"A\x1b[31mB\x1b[0mC",
		"héllo 世界 🎉\r\n",
		"\x1b]0;window title\x07\x1b]2;x\x1b\\",
		"\x1bP$qm\x1b\\\x1b[?1049h\x1b[?25l",
		"\x1b[38;2;10;20;30mrgb\x1b[48;5;200m",
		"\xe4\xb8\x96\xff\xc3(\x1b[999999999999;mZ",
		"\u009b1;2H\u009d0;c1\u009c",
		"\x1b(0lqk\x1b(B\x1b7\x1b8\x1b#8",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			whole := New().Actions([]byte(input))

			p := New()
			var bytewise []Action
			for i := 0; i < len(input); i++ {
				p.Advance(input[i], func(a Action) { bytewise = append(bytewise, a) })
			}
			if diff := cmp.Diff(whole, bytewise); diff != "" {
				t.Errorf("byte-by-byte differs from whole buffer (-whole +bytewise):\n%s", diff)
			}

			for size := 2; size <= 5; size++ {
				p := New()
				var chunked []Action
				for i := 0; i < len(input); i += size {
					end := min(i+size, len(input))
					p.Feed([]byte(input[i:end]), func(a Action) { chunked = append(chunked, a) })
				}
				if diff := cmp.Diff(whole, chunked); diff != "" {
					t.Errorf("chunk size %d differs (-whole +chunked):\n%s", size, diff)
				}
			}
		})
	}
}

func TestParserActionsDoNotAlias(t *testing.T) {
	p := New()
	first := p.Actions([]byte("\x1b[1;2H"))
	p.Actions([]byte("\x1b[7;8H"))

	if diff := cmp.Diff(Params{1, 2}, first[0].Params); diff != "" {
		t.Errorf("params changed after next sequence (-want +got):\n%s", diff)
	}
}

func TestParserReset(t *testing.T) {
	p := New()
	p.Actions([]byte("\x1b[12;"))
	if p.State() != CsiParam {
		t.Fatalf("state = %s, want CsiParam", p.State())
	}

	p.Reset()
	if p.State() != Ground {
		t.Errorf("state after Reset = %s, want Ground", p.State())
	}

	got := p.Actions([]byte("m"))
	want := []Action{{Kind: Print, Rune: 'm'}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("after Reset (-want +got):\n%s", diff)
	}
}

func TestParamsGet(t *testing.T) {
	p := Params{0, 5}
	if got := p.Get(0, 1); got != 1 {
		t.Errorf("Get(0, 1) = %d, want 1", got)
	}
	if got := p.Get(1, 1); got != 5 {
		t.Errorf("Get(1, 1) = %d, want 5", got)
	}
	if got := p.Get(7, 3); got != 3 {
		t.Errorf("Get(7, 3) = %d, want 3", got)
	}
	if got := p.Raw(0); got != 0 {
		t.Errorf("Raw(0) = %d, want 0", got)
	}
}

func TestActionString(t *testing.T) {
	a := Action{Kind: CsiDispatch, Private: '?', Params: Params{1049}, Final: 'h'}
	if got := a.String(); got != "CsiDispatch(?1049h)" {
		t.Errorf("String() = %q", got)
	}
	if got := (Action{Kind: DcsUnhook, Byte: 0x18}).Aborted(); !got {
		t.Error("DcsUnhook by CAN should be aborted")
	}
}
