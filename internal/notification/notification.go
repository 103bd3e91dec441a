// Package notification handles terminal notifications raised by the child
// process.
//
// Supported notification types:
// - OSC 9: Simple notification (ESC ] 9 ; message BEL)
// - OSC 777: Rich notification (ESC ] 777 ; notify ; title ; body BEL)
// - BEL: the terminal bell
package notification

import (
	"strings"

	"github.com/trybotster/seshterm/internal/vtparse"
)

// Type identifies the kind of notification.
type Type string

const (
	// TypeOSC9 is a simple notification with message.
	TypeOSC9 Type = "osc9"

	// TypeOSC777 is a rich notification with title and body.
	TypeOSC777 Type = "osc777"

	// TypeBell is the terminal bell.
	TypeBell Type = "bell"
)

// Notification represents a detected terminal notification.
type Notification struct {
	// Type is the notification type.
	Type Type `json:"type"`

	// Message is the notification message (OSC 9).
	Message string `json:"message,omitempty"`

	// Title is the notification title (OSC 777).
	Title string `json:"title,omitempty"`

	// Body is the notification body (OSC 777).
	Body string `json:"body,omitempty"`
}

// FromOSC interprets the ';'-separated fields of a dispatched OSC string.
//
// OSC 9 messages that look like escape sequences (only digits and
// semicolons) are filtered out to avoid false positives; ConEmu and
// Windows Terminal use OSC 9;4 and friends for progress reporting.
func FromOSC(fields [][]byte) (Notification, bool) {
	if len(fields) < 2 {
		return Notification{}, false
	}
	switch string(fields[0]) {
	case "9":
		message := joinFields(fields[1:])
		if message == "" || isEscapeSequence(message) {
			return Notification{}, false
		}
		return Notification{Type: TypeOSC9, Message: message}, true

	case "777":
		if string(fields[1]) != "notify" {
			return Notification{}, false
		}
		var title, body string
		if len(fields) > 2 {
			title = string(fields[2])
		}
		if len(fields) > 3 {
			body = joinFields(fields[3:])
		}
		if title == "" && body == "" {
			return Notification{}, false
		}
		return Notification{Type: TypeOSC777, Title: title, Body: body}, true
	}
	return Notification{}, false
}

// Detect parses terminal notifications from raw PTY output.
//
// It runs a private parser over data, so sequences split across calls
// are not seen. Supports both BEL (0x07) and ST (ESC \) terminators.
// A standalone BEL is not reported here.
func Detect(data []byte) []Notification {
	var notifications []Notification
	vtparse.New().Feed(data, func(a vtparse.Action) {
		if a.Kind != vtparse.OscDispatch {
			return
		}
		if n, ok := FromOSC(a.OSC); ok {
			notifications = append(notifications, n)
		}
	})
	return notifications
}

func joinFields(fields [][]byte) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ";")
}

// isEscapeSequence returns true if the message looks like an escape sequence
// (only contains digits and semicolons).
func isEscapeSequence(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !isDigitOrSemicolon(c) {
			return false
		}
	}
	return true
}

func isDigitOrSemicolon(c rune) bool {
	return (c >= '0' && c <= '9') || c == ';'
}
