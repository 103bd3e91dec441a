package relay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/trybotster/seshterm/internal/vt100"
)

// ErrGap is returned when a delta does not follow the mirror's generation.
// The client should send a new hello.
var ErrGap = vt100.ErrGap

// Mirror is a client-side replica of a session's terminal.
type Mirror struct {
	mu   sync.RWMutex
	snap *vt100.Snapshot
}

// NewMirror creates an empty mirror; it needs a snapshot before deltas.
func NewMirror() *Mirror {
	return &Mirror{}
}

// Apply updates the mirror from a snapshot or delta message and reports
// whether the state changed. Other message types are ignored.
func (m *Mirror) Apply(msg *ServerMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch msg.Type {
	case TypeSnapshot:
		if msg.Snapshot == nil {
			return false, errors.New("snapshot message without snapshot")
		}
		m.snap = msg.Snapshot
		return true, nil
	case TypeDelta:
		if msg.Delta == nil {
			return false, errors.New("delta message without delta")
		}
		if m.snap == nil {
			return false, fmt.Errorf("%w: delta %d before any snapshot", ErrGap, msg.Delta.From)
		}
		if msg.Delta.To <= m.snap.Generation {
			// Already applied through a newer snapshot.
			return false, nil
		}
		next, err := m.snap.Apply(*msg.Delta)
		if err != nil {
			return false, err
		}
		m.snap = next
		return true, nil
	}
	return false, nil
}

// Snapshot returns the current state, or nil before the first snapshot.
func (m *Mirror) Snapshot() *vt100.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Generation returns the generation of the current state.
func (m *Mirror) Generation() (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return 0, false
	}
	return m.snap.Generation, true
}

// Reset drops the state so the next delta reports a gap.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
}
