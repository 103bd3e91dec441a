package session

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/trybotster/seshterm/internal/vt100"
)

// UpdateKind tells a full snapshot from an incremental delta.
type UpdateKind int

const (
	// UpdateSnapshot carries the full state.
	UpdateSnapshot UpdateKind = iota
	// UpdateDelta carries the changes since the previous update.
	UpdateDelta
)

func (k UpdateKind) String() string {
	if k == UpdateSnapshot {
		return "snapshot"
	}
	return "delta"
}

// Update is one element of a subscription's sequence.
type Update struct {
	Kind     UpdateKind
	Snapshot *vt100.Snapshot
	Delta    vt100.Delta
}

// Generation returns the generation the update brings the observer to.
func (u Update) Generation() uint64 {
	if u.Kind == UpdateSnapshot {
		return u.Snapshot.Generation
	}
	return u.Delta.To
}

// Subscription is one observer's view of a session. Next is not safe for
// concurrent use; Close may be called from any goroutine.
type Subscription struct {
	// ID is the unique identifier for this subscription.
	ID uuid.UUID

	s     *Session
	limit int

	mu      sync.Mutex
	queue   []vt100.Delta
	resync  bool
	lastGen uint64
	closed  bool

	signal chan struct{}
	done   chan struct{}
}

// Subscribe starts a subscription whose first update is a full snapshot.
func (s *Session) Subscribe() *Subscription {
	sub := s.newSubscription()
	sub.resync = true
	s.addSubscription(sub)
	return sub
}

// Resume starts a subscription for an observer that has already seen
// generation lastSeen. If the deltas after lastSeen are still in the
// history they are delivered (merged); otherwise the first update is a
// full snapshot.
func (s *Session) Resume(lastSeen uint64) *Subscription {
	sub := s.newSubscription()

	// Holding mu keeps the writer from publishing between reading the
	// history and registering; a delta published just after is skipped
	// by generation in Next.
	s.mu.Lock()
	defer s.mu.Unlock()
	switch i := s.historyIndex(lastSeen); {
	case lastSeen == s.snap.Generation:
		sub.lastGen = lastSeen
	case i >= 0:
		sub.lastGen = lastSeen
		sub.queue = slices.Clone(s.history[i:])
	default:
		sub.resync = true
	}
	s.addSubscription(sub)
	return sub
}

// historyIndex returns the index of the delta starting at gen, or -1.
// Callers hold mu.
func (s *Session) historyIndex(gen uint64) int {
	for i, d := range s.history {
		if d.From == gen {
			return i
		}
	}
	return -1
}

func (s *Session) newSubscription() *Subscription {
	return &Subscription{
		ID:     uuid.New(),
		s:      s,
		limit:  s.cfg.QueueSize,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *Session) addSubscription(sub *Subscription) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	old := *s.subs.Load()
	next := make([]*Subscription, len(old), len(old)+1)
	copy(next, old)
	next = append(next, sub)
	s.subs.Store(&next)
	s.log.Debug("subscriber added", "subscriber", sub.ID.String(), "count", len(next))
}

func (s *Session) removeSubscription(sub *Subscription) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	old := *s.subs.Load()
	next := make([]*Subscription, 0, len(old))
	for _, o := range old {
		if o != sub {
			next = append(next, o)
		}
	}
	s.subs.Store(&next)
	s.log.Debug("subscriber removed", "subscriber", sub.ID.String(), "count", len(next))
}

// Subscribers returns the number of active subscriptions.
func (s *Session) Subscribers() int {
	return len(*s.subs.Load())
}

// offer queues d without blocking. A full queue is dropped and the
// subscriber is marked for a snapshot resync.
func (sub *Subscription) offer(d vt100.Delta) {
	sub.mu.Lock()
	switch {
	case sub.closed || sub.resync:
	case len(sub.queue) >= sub.limit:
		sub.queue = nil
		sub.resync = true
		sub.s.log.Info("subscriber fell behind, resyncing", "subscriber", sub.ID.String(), "queued", sub.limit)
	default:
		sub.queue = append(sub.queue, d)
	}
	sub.mu.Unlock()

	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

// Next blocks until the next update is available. Pending deltas are
// merged into one. It returns ErrClosed once the subscription or session
// is closed, or the context's error.
func (sub *Subscription) Next(ctx context.Context) (Update, error) {
	for {
		if u, ok, err := sub.poll(); err != nil || ok {
			return u, err
		}
		select {
		case <-sub.signal:
		case <-sub.done:
			return Update{}, ErrClosed
		case <-sub.s.closed:
			return Update{}, ErrClosed
		case <-ctx.Done():
			return Update{}, ctx.Err()
		}
	}
}

func (sub *Subscription) poll() (Update, bool, error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed || sub.s.isClosed() {
		return Update{}, false, ErrClosed
	}

	if !sub.resync {
		var pending []vt100.Delta
		for _, d := range sub.queue {
			if d.To > sub.lastGen {
				pending = append(pending, d)
			}
		}
		sub.queue = nil
		if len(pending) == 0 {
			return Update{}, false, nil
		}
		merged, ok := vt100.MergeDeltas(pending)
		if ok && merged.From == sub.lastGen {
			sub.lastGen = merged.To
			return Update{Kind: UpdateDelta, Delta: merged}, true, nil
		}
		sub.s.log.Info("subscriber lost continuity, resyncing", "subscriber", sub.ID.String(), "last", sub.lastGen)
	}

	sub.resync = false
	sub.queue = nil
	snap := sub.s.Snapshot()
	sub.lastGen = snap.Generation
	return Update{Kind: UpdateSnapshot, Snapshot: snap}, true, nil
}

// Updates returns the subscription as a sequence. The sequence ends when
// the subscription closes or ctx is done; ranging again continues where
// the previous range stopped.
func (sub *Subscription) Updates(ctx context.Context) iter.Seq[Update] {
	return func(yield func(Update) bool) {
		for {
			u, err := sub.Next(ctx)
			if err != nil {
				return
			}
			if !yield(u) {
				return
			}
		}
	}
}

// LastGeneration returns the generation of the last update returned.
func (sub *Subscription) LastGeneration() uint64 {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.lastGen
}

// Close ends the subscription. It never waits for the writer.
func (sub *Subscription) Close() {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	sub.queue = nil
	sub.mu.Unlock()
	close(sub.done)
	sub.s.removeSubscription(sub)
}
