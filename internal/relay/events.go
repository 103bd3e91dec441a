package relay

import (
	"encoding/base64"
	"fmt"

	"github.com/trybotster/seshterm/internal/session"
)

// EventType identifies a parsed client event.
type EventType int

const (
	EventUnknown EventType = iota
	EventHello
	EventResize
	EventInput
	EventScrollback
	EventPing
)

func (t EventType) String() string {
	switch t {
	case EventHello:
		return "hello"
	case EventResize:
		return "resize"
	case EventInput:
		return "input"
	case EventScrollback:
		return "scrollback"
	case EventPing:
		return "ping"
	default:
		return "unknown"
	}
}

// Event is a validated client command.
type Event struct {
	Type   EventType
	Since  *uint64 // For Hello
	Rows   int     // For Resize
	Cols   int     // For Resize
	Input  []byte  // For Input
	Offset int     // For Scrollback
	Count  int     // For Scrollback
	Raw    string  // command type, for Unknown
}

// DefaultScrollbackCount is used when a scrollback command has no count.
const DefaultScrollbackCount = 100

// CommandToEvent converts a ClientCommand to an Event. Only undecodable
// input is an error; unknown types become EventUnknown.
func CommandToEvent(cmd *ClientCommand) (Event, error) {
	switch cmd.Type {
	case TypeHello:
		return Event{Type: EventHello, Since: cmd.Since}, nil
	case TypeResize:
		return Event{Type: EventResize, Rows: int(cmd.Rows), Cols: int(cmd.Cols)}, nil
	case TypeInput:
		data := []byte(cmd.Data)
		if cmd.Encoding == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(cmd.Data)
			if err != nil {
				return Event{}, fmt.Errorf("decode input: %w", err)
			}
			data = decoded
		}
		return Event{Type: EventInput, Input: data}, nil
	case TypeScrollback:
		count := cmd.Count
		if count == 0 {
			count = DefaultScrollbackCount
		}
		return Event{Type: EventScrollback, Offset: cmd.Offset, Count: count}, nil
	case TypePing:
		return Event{Type: EventPing}, nil
	default:
		return Event{Type: EventUnknown, Raw: cmd.Type}, nil
	}
}

// EventToCommand converts an Event to a session command. It returns false
// for events that are not session commands (hello, ping, unknown).
func EventToCommand(e Event) (session.Command, bool) {
	switch e.Type {
	case EventResize:
		return session.Command{Kind: session.CommandResize, Rows: e.Rows, Cols: e.Cols}, true
	case EventInput:
		return session.Command{Kind: session.CommandInject, Data: e.Input}, true
	case EventScrollback:
		return session.Command{Kind: session.CommandScrollback, Offset: e.Offset, Count: e.Count}, true
	default:
		return session.Command{}, false
	}
}

// UpdateMessage converts a subscription update to its wire message.
func UpdateMessage(sessionID string, u session.Update) ServerMessage {
	if u.Kind == session.UpdateSnapshot {
		return SnapshotMessage(sessionID, u.Snapshot)
	}
	return DeltaMessage(u.Delta)
}
