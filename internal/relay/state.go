package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Send when the outbound queue is full.
var ErrQueueFull = errors.New("outbound queue full")

// Sender is a non-blocking, closable outbound queue of encoded messages.
type Sender struct {
	ch     chan []byte
	closed bool
	mu     sync.RWMutex
}

// NewSender creates a sender with room for size messages.
func NewSender(size int) *Sender {
	if size <= 0 {
		size = 1
	}
	return &Sender{ch: make(chan []byte, size)}
}

// C delivers queued messages to the connection writer.
func (s *Sender) C() <-chan []byte {
	return s.ch
}

// Send encodes msg and queues it without blocking. Sending on a closed
// sender is a no-op.
func (s *Sender) Send(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.SendRaw(data)
}

// SendRaw queues an already encoded message.
func (s *Sender) SendRaw(data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	select {
	case s.ch <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// SendWait queues msg, waiting for room until ctx is done. Sending on a
// closed sender is a no-op.
func (s *Sender) SendWait(ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if s.IsClosed() {
		return nil
	}
	select {
	case s.ch <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsClosed checks if the sender is closed.
func (s *Sender) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close marks the sender as closed.
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
