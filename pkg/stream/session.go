package stream

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/derbi/xiaoxia/pkg/buffer"
)

// lane is the reconciled state of one content stream.
//
// accumulated always equals the content released since the last reset
// (accumulated[:emitted]) followed by the pending content.
type lane[T comparable] struct {
	accumulated []T
	pending     *buffer.Buffer[T]
	emitted     int
	rewound     bool
}

// Session is one logical streaming operation on a channel.
//
// Producers mutate it through Apply, Finish and Fail; a Pacer drains it.
// Every method first checks that the session is still live, so a callback
// that outlives its session cannot touch a newer one.
type Session[T comparable] struct {
	id      ID
	channel Channel
	reg     *Registry

	state  atomic.Int32
	reason atomic.Int32

	mu           sync.Mutex
	lanes        [numLanes]lane[T]
	producerDone bool
	err          error

	done      chan struct{}
	closeOnce sync.Once
}

// Begin starts a new session on ch, cancelling the channel's previous
// session first.
func Begin[T comparable](reg *Registry, ch Channel) *Session[T] {
	s := &Session[T]{
		id:      reg.nextID(),
		channel: ch,
		reg:     reg,
		done:    make(chan struct{}),
	}
	for i := range s.lanes {
		s.lanes[i].pending = buffer.N[T](64)
	}
	reg.activate(s)
	return s
}

// ID returns the session ID.
func (s *Session[T]) ID() ID { return s.id }

// Channel returns the channel the session was started on.
func (s *Session[T]) Channel() Channel { return s.channel }

// State returns the current lifecycle state.
func (s *Session[T]) State() State { return State(s.state.Load()) }

// Reason returns why the session closed, or ReasonNone while it is open.
func (s *Session[T]) Reason() CloseReason { return CloseReason(s.reason.Load()) }

// Done is closed when the session reaches StateClosed.
func (s *Session[T]) Done() <-chan struct{} { return s.done }

// Err returns the producer error of a failed session.
func (s *Session[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Live reports whether the session is open and still the current session
// of its channel.
func (s *Session[T]) Live() bool {
	return s.State() != StateClosed && s.reg.current(s.channel) == s.id
}

// Wait blocks until the session is closed or ctx is done. It returns the
// producer error for failed sessions and nil for completed or cancelled ones.
func (s *Session[T]) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		if s.Reason() == ReasonFailed {
			return s.Err()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply reconciles d into the session. It reports false, and changes
// nothing, if the session is no longer live.
func (s *Session[T]) Apply(d Delta[T]) bool {
	if !s.Live() {
		s.reg.countStale(s.channel, s.id)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateClosed {
		s.reg.countStale(s.channel, s.id)
		return false
	}

	if int(d.Lane) < numLanes {
		ln := &s.lanes[d.Lane]
		switch d.Mode {
		case ModeAppend:
			if len(d.Payload) > 0 {
				ln.accumulated = append(ln.accumulated, d.Payload...)
				ln.pending.Write(d.Payload)
			}
		case ModeReplace:
			ln.replace(d.Payload)
		}
	}
	if d.Terminal {
		s.finishLocked()
	}
	return true
}

// replace accepts payload as the lane's full value. If it extends what has
// already been released, only the new suffix becomes pending; otherwise the
// lane rewinds and the whole payload is pending again.
func (ln *lane[T]) replace(payload []T) {
	shown := ln.accumulated[:ln.emitted]
	if len(payload) >= len(shown) && slices.Equal(payload[:len(shown)], shown) {
		ln.pending.Replace(payload[len(shown):])
	} else {
		ln.pending.Replace(payload)
		ln.emitted = 0
		ln.rewound = true
	}
	ln.accumulated = slices.Clone(payload)
}

// Finish records that the producer will send nothing more. Buffered
// content is still paced out before the session closes.
func (s *Session[T]) Finish() bool {
	return s.Apply(TerminalDelta[T]())
}

func (s *Session[T]) finishLocked() {
	s.producerDone = true
	s.state.CompareAndSwap(int32(StateActive), int32(StateFinishing))
}

// Fail records a producer failure. The pacer delivers whatever is still
// pending in one final chunk carrying err, then closes the session.
func (s *Session[T]) Fail(err error) bool {
	if !s.Live() {
		s.reg.countStale(s.channel, s.id)
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	s.finishLocked()
	return true
}

// Cancel closes the session immediately and clears its buffers.
func (s *Session[T]) Cancel() bool {
	return s.close(ReasonCancelled, nil)
}

// Snapshot returns the accumulated content of both lanes.
func (s *Session[T]) Snapshot() (text, reasoning []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lanes[LaneText].accumulated),
		slices.Clone(s.lanes[LaneReasoning].accumulated)
}

// Emitted returns how many elements of lane l have been released since the
// lane was last rewound.
func (s *Session[T]) Emitted(l Lane) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lanes[l].emitted
}

// Pending returns how many elements of lane l wait to be released.
func (s *Session[T]) Pending(l Lane) int {
	return s.lanes[l].pending.Len()
}

func (s *Session[T]) close(reason CloseReason, err error) bool {
	closed := false
	s.closeOnce.Do(func() {
		closed = true
		s.mu.Lock()
		s.state.Store(int32(StateClosed))
		s.reason.Store(int32(reason))
		if err != nil && s.err == nil {
			s.err = err
		}
		for i := range s.lanes {
			s.lanes[i].pending.Close()
			s.lanes[i].accumulated = nil
			s.lanes[i].emitted = 0
		}
		s.mu.Unlock()

		s.reg.release(s.channel, s.id)
		s.reg.metrics.sessionClosed(s.channel, reason)
		s.reg.logger.Debug("stream/session: closed",
			"channel", s.channel, "id", s.id, "reason", reason)
		close(s.done)
	})
	return closed
}
