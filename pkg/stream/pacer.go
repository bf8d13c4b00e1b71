package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Sink receives paced chunks. Deliver is expected to return quickly; slow
// work belongs on the consumer's own goroutine.
type Sink[T any] interface {
	Deliver(Chunk[T]) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc[T any] func(Chunk[T]) error

// Deliver implements Sink.
func (f SinkFunc[T]) Deliver(c Chunk[T]) error {
	return f(c)
}

// Pacer drains a session's pending lanes to a Sink at a fixed cadence,
// independent of how the content arrived.
type Pacer[T comparable] struct {
	session *Session[T]
	cfg     Config
	sink    Sink[T]
	logger  *slog.Logger

	tickMu   sync.Mutex
	finished bool
}

// NewPacer creates a pacer for s. It returns an error if cfg is invalid.
func NewPacer[T comparable](s *Session[T], cfg Config, sink Sink[T]) (*Pacer[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, fmt.Errorf("stream: pacer requires a sink")
	}
	return &Pacer[T]{
		session: s,
		cfg:     cfg,
		sink:    sink,
		logger:  s.reg.logger,
	}, nil
}

// Run ticks the pacer every cfg.Interval until the session closes or ctx
// is done. If ctx ends first the session is cancelled, so Run never leaves
// it half-open.
func (p *Pacer[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.session.close(ReasonCancelled, nil)
			return
		case <-p.session.Done():
			return
		case <-ticker.C:
			if p.Tick() {
				return
			}
		}
	}
}

// Tick performs one pacing step and reports whether the pacer is done.
// Ticks never overlap; concurrent callers are serialized.
func (p *Pacer[T]) Tick() bool {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	if p.finished {
		return true
	}
	s := p.session
	if !s.Live() {
		p.finished = true
		return true
	}

	s.mu.Lock()
	if s.State() == StateClosed {
		s.mu.Unlock()
		p.finished = true
		return true
	}
	if s.err != nil {
		chunk := p.flushLocked()
		err := s.err
		s.mu.Unlock()

		chunk.Final = true
		chunk.Err = err
		p.finished = true
		if s.Live() {
			p.deliver(chunk)
		}
		s.close(ReasonFailed, err)
		return true
	}
	chunk, ok := p.takeLocked()
	if !ok {
		done := s.producerDone
		s.mu.Unlock()
		if !done {
			return false
		}
		p.finished = true
		if s.Live() {
			p.deliver(Chunk[T]{Final: true})
		}
		s.close(ReasonCompleted, nil)
		return true
	}
	s.mu.Unlock()

	// Cancel may have landed while the lanes were being drained.
	if !s.Live() {
		p.finished = true
		return true
	}
	p.deliver(chunk)
	return false
}

// takeLocked removes the next chunk according to the priority rule. It
// reports false if nothing is pending.
func (p *Pacer[T]) takeLocked() (Chunk[T], bool) {
	var c Chunk[T]
	switch p.cfg.Priority {
	case PriorityInterleaved:
		c.Reasoning = p.takeLane(LaneReasoning, &c.Reset)
		c.Text = p.takeLane(LaneText, &c.Reset)
	default:
		if p.hasPending(LaneReasoning) {
			c.Reasoning = p.takeLane(LaneReasoning, &c.Reset)
		} else {
			c.Text = p.takeLane(LaneText, &c.Reset)
		}
	}
	return c, len(c.Text) > 0 || len(c.Reasoning) > 0 || c.Reset != 0
}

func (p *Pacer[T]) hasPending(l Lane) bool {
	ln := &p.session.lanes[l]
	return ln.rewound || ln.pending.Len() > 0
}

func (p *Pacer[T]) takeLane(l Lane, reset *LaneSet) []T {
	ln := &p.session.lanes[l]
	if ln.rewound {
		*reset = reset.with(l)
		ln.rewound = false
	}
	out := ln.pending.Take(p.cfg.ChunkSize)
	ln.emitted += len(out)
	return out
}

// flushLocked removes everything still pending, ignoring the chunk size.
func (p *Pacer[T]) flushLocked() Chunk[T] {
	var c Chunk[T]
	for _, l := range []Lane{LaneReasoning, LaneText} {
		ln := &p.session.lanes[l]
		if ln.rewound {
			c.Reset = c.Reset.with(l)
			ln.rewound = false
		}
		out := ln.pending.TakeAll()
		ln.emitted += len(out)
		if l == LaneText {
			c.Text = out
		} else {
			c.Reasoning = out
		}
	}
	return c
}

// deliver hands c to the sink. Errors and panics are logged and counted;
// they never stop the pacer.
func (p *Pacer[T]) deliver(c Chunk[T]) {
	s := p.session
	defer func() {
		if r := recover(); r != nil {
			p.consumerFailed(&ConsumerError{ID: s.id, Panic: r})
		}
	}()
	if err := p.sink.Deliver(c); err != nil {
		p.consumerFailed(&ConsumerError{ID: s.id, Err: err})
		return
	}
	s.reg.metrics.delivered(s.channel, len(c.Text), len(c.Reasoning))
}

func (p *Pacer[T]) consumerFailed(err *ConsumerError) {
	p.session.reg.metrics.consumerError(p.session.channel)
	p.logger.Warn("stream/pacer: consumer failed, chunk dropped",
		"channel", p.session.channel, "id", p.session.id, "error", err)
}
