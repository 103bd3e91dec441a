package session

import "bytes"

// replier routes device replies from the interpreter onto the input queue
// so they reach the child in order with injected input.
type replier struct {
	s *Session
}

func (r replier) Write(p []byte) (int, error) {
	if err := r.s.enqueueInput(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *Session) enqueueInput(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if s.isClosed() {
		return ErrClosed
	}
	select {
	case s.input <- bytes.Clone(p):
		return nil
	default:
		return ErrInputFull
	}
}

// pumpInput writes queued input to the sink until the session closes.
func (s *Session) pumpInput() {
	for {
		select {
		case p := <-s.input:
			if _, err := s.sink.Write(p); err != nil {
				s.log.Warn("input write failed", "bytes", len(p), "error", err)
			}
		case <-s.closed:
			return
		}
	}
}
