package vt100

// Mode is a boolean terminal behavior toggle.
type Mode uint8

const (
	// ModeInsert is IRM (ANSI 4): printing shifts existing cells right.
	ModeInsert Mode = iota
	// ModeLineFeedNewLine is LNM (ANSI 20): LF also returns the carriage.
	ModeLineFeedNewLine
	// ModeCursorKeys is DECCKM (?1): application cursor keys.
	ModeCursorKeys
	// ModeReverseVideo is DECSCNM (?5).
	ModeReverseVideo
	// ModeOrigin is DECOM (?6): cursor addressing relative to the scroll region.
	ModeOrigin
	// ModeAutoWrap is DECAWM (?7).
	ModeAutoWrap
	// ModeCursorBlink is ?12.
	ModeCursorBlink
	// ModeCursorVisible is DECTCEM (?25).
	ModeCursorVisible
	// ModeKeypadApplication is DECKPAM / DECKPNM.
	ModeKeypadApplication
	// ModeMouseX10 is ?9.
	ModeMouseX10
	// ModeMouseNormal is ?1000.
	ModeMouseNormal
	// ModeMouseButton is ?1002.
	ModeMouseButton
	// ModeMouseAny is ?1003.
	ModeMouseAny
	// ModeFocusEvents is ?1004.
	ModeFocusEvents
	// ModeMouseSGR is ?1006.
	ModeMouseSGR
	// ModeBracketedPaste is ?2004.
	ModeBracketedPaste
	// ModeSyncOutput is ?2026.
	ModeSyncOutput

	modeCount
)

var modeNames = [modeCount]string{
	ModeInsert:            "insert",
	ModeLineFeedNewLine:   "linefeed-newline",
	ModeCursorKeys:        "cursor-keys",
	ModeReverseVideo:      "reverse-video",
	ModeOrigin:            "origin",
	ModeAutoWrap:          "autowrap",
	ModeCursorBlink:       "cursor-blink",
	ModeCursorVisible:     "cursor-visible",
	ModeKeypadApplication: "keypad-application",
	ModeMouseX10:          "mouse-x10",
	ModeMouseNormal:       "mouse-normal",
	ModeMouseButton:       "mouse-button",
	ModeMouseAny:          "mouse-any",
	ModeFocusEvents:       "focus-events",
	ModeMouseSGR:          "mouse-sgr",
	ModeBracketedPaste:    "bracketed-paste",
	ModeSyncOutput:        "sync-output",
}

func (m Mode) String() string {
	if m < modeCount {
		return modeNames[m]
	}
	return "unknown"
}

// ModeSet is a bitset of active modes.
type ModeSet uint32

// DefaultModes is the mode set of a freshly reset terminal.
const DefaultModes = ModeSet(1<<ModeAutoWrap | 1<<ModeCursorVisible)

// Get reports whether m is set.
func (s ModeSet) Get(m Mode) bool {
	return s&(1<<m) != 0
}

// With returns s with m set to on.
func (s ModeSet) With(m Mode, on bool) ModeSet {
	if on {
		return s | 1<<m
	}
	return s &^ (1 << m)
}

// Set sets m to on.
func (s *ModeSet) Set(m Mode, on bool) {
	*s = s.With(m, on)
}

// Active returns the names of the set modes, for logging and debugging.
func (s ModeSet) Active() []string {
	var out []string
	for m := Mode(0); m < modeCount; m++ {
		if s.Get(m) {
			out = append(out, m.String())
		}
	}
	return out
}
