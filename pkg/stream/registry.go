package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// CloseReason records why a session reached StateClosed.
type CloseReason int32

const (
	ReasonNone CloseReason = iota
	// ReasonCompleted: the pacer drained everything and emitted the final chunk.
	ReasonCompleted
	// ReasonCancelled: Cancel was called.
	ReasonCancelled
	// ReasonDisplaced: a newer session began on the same channel.
	ReasonDisplaced
	// ReasonFailed: the producer failed; the final chunk carried the error.
	ReasonFailed
)

func (r CloseReason) String() string {
	switch r {
	case ReasonCompleted:
		return "completed"
	case ReasonCancelled:
		return "cancelled"
	case ReasonDisplaced:
		return "displaced"
	case ReasonFailed:
		return "failed"
	}
	return "none"
}

// member is the type-erased view of a Session the registry keeps.
type member interface {
	ID() ID
	Channel() Channel
	close(reason CloseReason, err error) bool
}

type slot struct {
	active atomic.Uint64
}

// Registry issues session IDs and tracks the live session of each channel.
//
// It replaces any notion of a global "current session": producers, timers and
// hardware callbacks hold an ID and ask IsActive before touching shared state.
// A Registry is safe for concurrent use.
type Registry struct {
	next    atomic.Uint64
	stale   atomic.Uint64
	metrics *Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	slots   map[Channel]*slot
	members map[ID]member
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMetrics records registry and pacer activity in m.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithLogger sets the logger used by the registry and every session and
// pacer created from it.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		slots:   make(map[Channel]*slot),
		members: make(map[ID]member),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func (r *Registry) slot(ch Channel) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotLocked(ch)
}

func (r *Registry) slotLocked(ch Channel) *slot {
	s, ok := r.slots[ch]
	if !ok {
		s = &slot{}
		r.slots[ch] = s
	}
	return s
}

func (r *Registry) nextID() ID {
	return ID(r.next.Add(1))
}

// activate makes m the live session of its channel and closes the session it
// displaces, if any.
func (r *Registry) activate(m member) {
	r.mu.Lock()
	sl := r.slotLocked(m.Channel())
	prev := ID(sl.active.Swap(uint64(m.ID())))
	r.members[m.ID()] = m
	displaced := r.members[prev]
	delete(r.members, prev)
	r.mu.Unlock()

	r.metrics.sessionStarted(m.Channel())
	if displaced != nil {
		r.logger.Debug("stream/registry: session displaced",
			"channel", m.Channel(), "old", prev, "new", m.ID())
		displaced.close(ReasonDisplaced, nil)
	}
}

// release forgets a closed session. The channel's active ID is cleared only
// if it still points at id.
func (r *Registry) release(ch Channel, id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slotLocked(ch).active.CompareAndSwap(uint64(id), 0)
	if m, ok := r.members[id]; ok && m.Channel() == ch {
		delete(r.members, id)
	}
}

// Cancel closes the session with the given ID and clears its buffers.
// Pacer ticks already scheduled for it become no-ops. Cancel is idempotent
// and reports whether this call closed the session.
func (r *Registry) Cancel(id ID) bool {
	r.mu.Lock()
	m, ok := r.members[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return m.close(ReasonCancelled, nil)
}

// IsActive reports whether id is the live session of its channel, that is,
// it is the channel's current session and is not closed.
func (r *Registry) IsActive(id ID) bool {
	r.mu.Lock()
	m, ok := r.members[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.current(m.Channel()) == id
}

// Active returns the live session ID of ch, or 0 if there is none.
func (r *Registry) Active(ch Channel) ID {
	return r.current(ch)
}

func (r *Registry) current(ch Channel) ID {
	return ID(r.slot(ch).active.Load())
}

// Stale returns how many callbacks have been ignored because their session
// was no longer live.
func (r *Registry) Stale() uint64 {
	return r.stale.Load()
}

func (r *Registry) countStale(ch Channel, id ID) {
	r.stale.Add(1)
	r.metrics.stale(ch)
	r.logger.Debug("stream/registry: stale callback ignored", "channel", ch, "id", id)
}

// CancelAll closes every live session.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	members := make([]member, 0, len(r.members))
	for _, m := range r.members {
		members = append(members, m)
	}
	r.mu.Unlock()
	for _, m := range members {
		m.close(ReasonCancelled, nil)
	}
}
