package interp

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/trybotster/seshterm/internal/vt100"
	"github.com/trybotster/seshterm/internal/vtparse"
)

func TestApplySGR(t *testing.T) {
	bold := vt100.Style{Attrs: vt100.AttrBold}

	tests := []struct {
		name   string
		pen    vt100.Style
		params vtparse.Params
		want   vt100.Style
	}{
		{"empty resets", bold, nil, vt100.Style{}},
		{"zero resets", bold, vtparse.Params{0}, vt100.Style{}},
		{"bold red", vt100.Style{}, vtparse.Params{1, 31}, vt100.Style{FG: vt100.IndexedColor(1), Attrs: vt100.AttrBold}},
		{"attributes", vt100.Style{}, vtparse.Params{2, 3, 4, 5, 7, 8, 9},
			vt100.Style{Attrs: vt100.AttrFaint | vt100.AttrItalic | vt100.AttrUnderline | vt100.AttrBlink | vt100.AttrInverse | vt100.AttrInvisible | vt100.AttrStrike}},
		{"double underline", vt100.Style{}, vtparse.Params{21}, vt100.Style{Attrs: vt100.AttrUnderline}},
		{"normal intensity", vt100.Style{Attrs: vt100.AttrBold | vt100.AttrFaint | vt100.AttrItalic}, vtparse.Params{22}, vt100.Style{Attrs: vt100.AttrItalic}},
		{"attribute off", vt100.Style{Attrs: vt100.AttrUnderline | vt100.AttrInverse}, vtparse.Params{24, 27}, vt100.Style{}},
		{"256 foreground", vt100.Style{}, vtparse.Params{38, 5, 196}, vt100.Style{FG: vt100.IndexedColor(196)}},
		{"rgb background", vt100.Style{}, vtparse.Params{48, 2, 10, 20, 30}, vt100.Style{BG: vt100.RGBColor(10, 20, 30)}},
		{"extended then bold", vt100.Style{}, vtparse.Params{38, 5, 2, 1}, vt100.Style{FG: vt100.IndexedColor(2), Attrs: vt100.AttrBold}},
		{"malformed extended skips only itself", vt100.Style{}, vtparse.Params{38, 7, 1}, vt100.Style{Attrs: vt100.AttrInverse | vt100.AttrBold}},
		{"truncated rgb", vt100.Style{}, vtparse.Params{48, 2, 1}, vt100.Style{Attrs: vt100.AttrFaint | vt100.AttrBold}},
		{"index out of range", vt100.Style{}, vtparse.Params{38, 5, 300}, vt100.Style{Attrs: vt100.AttrBlink}},
		{"default colors", vt100.Style{FG: vt100.IndexedColor(1), BG: vt100.IndexedColor(2)}, vtparse.Params{39, 49}, vt100.Style{}},
		{"bright", vt100.Style{}, vtparse.Params{90, 107}, vt100.Style{FG: vt100.IndexedColor(8), BG: vt100.IndexedColor(15)}},
		{"background", vt100.Style{}, vtparse.Params{44}, vt100.Style{BG: vt100.IndexedColor(4)}},
		{"unknown ignored", bold, vtparse.Params{60, 200}, bold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applySGR(tt.pen, tt.params)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("applySGR(%v) (-want +got):\n%s", tt.params, diff)
			}
		})
	}
}
