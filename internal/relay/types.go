// Package relay defines the JSON messages exchanged between a session and
// its remote observers, plus the client-side Mirror that rebuilds the
// terminal from them.
//
// The server sends one snapshot, then deltas in generation order. A
// client that detects a gap (ErrGap) sends a new hello to get a fresh
// snapshot.
package relay

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/trybotster/seshterm/internal/notification"
	"github.com/trybotster/seshterm/internal/vt100"
)

// Server → client message types.
const (
	TypeSnapshot     = "snapshot"
	TypeDelta        = "delta"
	TypeScrollback   = "scrollback"
	TypeNotification = "notification"
	TypeError        = "error"
	TypePong         = "pong"
)

// Client → server command types.
const (
	TypeHello  = "hello"
	TypeResize = "resize"
	TypeInput  = "input"
	TypePing   = "ping"
)

// ServerMessage is sent from a session to an observer.
type ServerMessage struct {
	Type         string                     `json:"type"`
	Session      string                     `json:"session,omitempty"`
	Snapshot     *vt100.Snapshot            `json:"snapshot,omitempty"`
	Delta        *vt100.Delta               `json:"delta,omitempty"`
	Lines        []vt100.Line               `json:"lines,omitempty"`
	Offset       int                        `json:"offset,omitempty"`
	Total        int                        `json:"total,omitempty"`
	Notification *notification.Notification `json:"notification,omitempty"`
	Message      string                     `json:"message,omitempty"`
}

// SnapshotMessage creates a full state message.
func SnapshotMessage(sessionID string, s *vt100.Snapshot) ServerMessage {
	return ServerMessage{Type: TypeSnapshot, Session: sessionID, Snapshot: s}
}

// DeltaMessage creates an incremental update message.
func DeltaMessage(d vt100.Delta) ServerMessage {
	return ServerMessage{Type: TypeDelta, Delta: &d}
}

// ScrollbackMessage creates a scrollback query response.
func ScrollbackMessage(offset, total int, lines []vt100.Line) ServerMessage {
	return ServerMessage{Type: TypeScrollback, Offset: offset, Total: total, Lines: lines}
}

// NotificationMessage creates a desktop notification message.
func NotificationMessage(n notification.Notification) ServerMessage {
	return ServerMessage{Type: TypeNotification, Notification: &n}
}

// ErrorMessage creates an error message.
func ErrorMessage(msg string) ServerMessage {
	return ServerMessage{Type: TypeError, Message: msg}
}

// PongMessage answers a ping.
func PongMessage() ServerMessage {
	return ServerMessage{Type: TypePong}
}

// ParseServerMessage parses a JSON server message.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ClientCommand is sent from an observer to a session.
type ClientCommand struct {
	Type string `json:"type"`

	// Since is the last generation the client has seen (hello).
	Since *uint64 `json:"since,omitempty"`

	Rows uint16 `json:"rows,omitempty"`
	Cols uint16 `json:"cols,omitempty"`

	// Data is the input, base64 encoded when Encoding is "base64".
	Data     string `json:"data,omitempty"`
	Encoding string `json:"encoding,omitempty"`

	Offset int `json:"offset,omitempty"`
	Count  int `json:"count,omitempty"`
}

// ParseClientCommand parses a JSON client command.
func ParseClientCommand(data []byte) (*ClientCommand, error) {
	var cmd ClientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// HelloCommand asks for a snapshot, or for the deltas after since when
// the server still has them.
func HelloCommand(since *uint64) ClientCommand {
	return ClientCommand{Type: TypeHello, Since: since}
}

// ResizeCommand asks for new terminal dimensions.
func ResizeCommand(rows, cols uint16) ClientCommand {
	return ClientCommand{Type: TypeResize, Rows: rows, Cols: cols}
}

// InputCommand carries input for the child. Data that is not valid UTF-8
// is base64 encoded.
func InputCommand(data []byte) ClientCommand {
	if utf8.Valid(data) {
		return ClientCommand{Type: TypeInput, Data: string(data)}
	}
	return ClientCommand{Type: TypeInput, Data: base64.StdEncoding.EncodeToString(data), Encoding: "base64"}
}

// ScrollbackCommand asks for historical rows.
func ScrollbackCommand(offset, count int) ClientCommand {
	return ClientCommand{Type: TypeScrollback, Offset: offset, Count: count}
}

// PingCommand checks the connection.
func PingCommand() ClientCommand {
	return ClientCommand{Type: TypePing}
}
