package stream

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	chunks []OutputChunk
}

func (r *recorder) Deliver(c Chunk[rune]) error {
	return r.Render(TextChunk(c))
}

func (r *recorder) Render(c OutputChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, c)
	return nil
}

func (r *recorder) all() []OutputChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OutputChunk(nil), r.chunks...)
}

func (r *recorder) texts() []string {
	var out []string
	for _, c := range r.all() {
		if c.Text != "" {
			out = append(out, c.Text)
		}
	}
	return out
}

func (r *recorder) finals() int {
	n := 0
	for _, c := range r.all() {
		if c.Final {
			n++
		}
	}
	return n
}

func newTestPacer(t *testing.T, s *Session[rune], chunk int, prio Priority) (*Pacer[rune], *recorder) {
	t.Helper()
	rec := &recorder{}
	p, err := NewPacer(s, Config{Interval: time.Millisecond, ChunkSize: chunk, Priority: prio}, Sink[rune](rec))
	if err != nil {
		t.Fatalf("NewPacer: %v", err)
	}
	return p, rec
}

func drain[T comparable](p *Pacer[T], max int) int {
	for i := 1; i <= max; i++ {
		if p.Tick() {
			return i
		}
	}
	return -1
}

func TestAppendConcatenates(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	parts := []string{"你好", ", ", "world", "", "!"}
	for _, p := range parts {
		if !s.Apply(TextDelta(LaneText, ModeAppend, p)) {
			t.Fatalf("Apply(%q) rejected", p)
		}
	}
	text, reasoning := s.Snapshot()
	if got, want := string(text), strings.Join(parts, ""); got != want {
		t.Fatalf("accumulated = %q, want %q", got, want)
	}
	if len(reasoning) != 0 {
		t.Fatalf("reasoning = %q, want empty", string(reasoning))
	}
	s.Cancel()
}

func TestReplacePrefixExtension(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 10, PriorityReasoningFirst)

	s.Apply(TextDelta(LaneText, ModeReplace, "He"))
	p.Tick()
	s.Apply(TextDelta(LaneText, ModeReplace, "Hello"))
	p.Tick()
	// Re-delivering the same snapshot must not duplicate output.
	s.Apply(TextDelta(LaneText, ModeReplace, "Hello"))
	p.Tick()
	s.Finish()
	if n := drain(p, 10); n < 0 {
		t.Fatal("pacer did not finish")
	}

	got := rec.texts()
	if len(got) != 2 || got[0] != "He" || got[1] != "llo" {
		t.Fatalf("chunks = %q, want [He llo]", got)
	}
	for _, c := range rec.all() {
		if c.Reset != 0 {
			t.Fatalf("unexpected reset in %+v", c)
		}
	}
}

func TestReplaceNonPrefixRewinds(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 10, PriorityReasoningFirst)

	s.Apply(TextDelta(LaneText, ModeReplace, "Hello"))
	p.Tick()
	if got := s.Emitted(LaneText); got != 5 {
		t.Fatalf("Emitted = %d, want 5", got)
	}

	s.Apply(TextDelta(LaneText, ModeReplace, "Hi"))
	if got := s.Emitted(LaneText); got != 0 {
		t.Fatalf("Emitted after rewind = %d, want 0", got)
	}
	if got := s.Pending(LaneText); got != 2 {
		t.Fatalf("Pending after rewind = %d, want 2", got)
	}
	p.Tick()

	chunks := rec.all()
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	last := chunks[1]
	if last.Text != "Hi" || !last.Reset.Has(LaneText) || last.Reset.Has(LaneReasoning) {
		t.Fatalf("rewind chunk = %+v, want Text=Hi Reset={text}", last)
	}
	if got := s.Emitted(LaneText); got != 2 {
		t.Fatalf("Emitted = %d, want 2", got)
	}
	text, _ := s.Snapshot()
	if string(text) != "Hi" {
		t.Fatalf("accumulated = %q, want Hi", string(text))
	}
	s.Cancel()
}

func TestReplaceDiffsAgainstEmittedNotBuffered(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 2, PriorityReasoningFirst)

	s.Apply(TextDelta(LaneText, ModeReplace, "Hello"))
	p.Tick() // "He" released, "llo" still buffered
	s.Apply(TextDelta(LaneText, ModeReplace, "Hello world"))
	s.Finish()
	drain(p, 20)

	var b strings.Builder
	for _, c := range rec.all() {
		b.WriteString(c.Text)
	}
	if got := b.String(); got != "Hello world" {
		t.Fatalf("output = %q, want %q", got, "Hello world")
	}
}

func TestApplyAfterCancelIsIgnored(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	s.Cancel()
	if s.Apply(TextDelta(LaneText, ModeAppend, "late")) {
		t.Fatal("Apply on cancelled session accepted")
	}
	if s.Fail(nil) {
		t.Fatal("Fail on cancelled session accepted")
	}
	if got := reg.Stale(); got != 2 {
		t.Fatalf("Stale = %d, want 2", got)
	}
	if s.State() != StateClosed || s.Reason() != ReasonCancelled {
		t.Fatalf("state = %v reason = %v", s.State(), s.Reason())
	}
}

func TestTerminalDoesNotClose(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	s.Apply(TextDelta(LaneText, ModeAppend, "abc"))
	s.Finish()
	if s.State() != StateFinishing {
		t.Fatalf("state = %v, want finishing", s.State())
	}
	if s.Pending(LaneText) != 3 {
		t.Fatalf("terminal delta touched buffers")
	}
	s.Cancel()
}
