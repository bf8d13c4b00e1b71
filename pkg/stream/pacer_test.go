package stream

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestReasoningFirst(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 3, PriorityReasoningFirst)

	s.Apply(TextDelta(LaneText, ModeAppend, "answer"))
	s.Apply(TextDelta(LaneReasoning, ModeAppend, "think"))
	p.Tick()
	s.Apply(TextDelta(LaneReasoning, ModeAppend, "ing"))
	s.Finish()
	if drain(p, 20) < 0 {
		t.Fatal("pacer did not finish")
	}

	var reasoning, text strings.Builder
	textStarted := false
	for _, c := range rec.all() {
		if c.Reasoning != "" && textStarted {
			t.Fatalf("reasoning %q emitted after text started", c.Reasoning)
		}
		if c.Text != "" {
			if c.Reasoning != "" {
				t.Fatalf("chunk mixes lanes: %+v", c)
			}
			textStarted = true
		}
		if len([]rune(c.Text)) > 3 || len([]rune(c.Reasoning)) > 3 {
			t.Fatalf("chunk exceeds size: %+v", c)
		}
		reasoning.WriteString(c.Reasoning)
		text.WriteString(c.Text)
	}
	if reasoning.String() != "thinking" || text.String() != "answer" {
		t.Fatalf("reasoning=%q text=%q", reasoning.String(), text.String())
	}
}

func TestInterleaved(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 2, PriorityInterleaved)

	s.Apply(TextDelta(LaneReasoning, ModeAppend, "abcd"))
	s.Apply(TextDelta(LaneText, ModeAppend, "xy"))
	p.Tick()
	got := rec.all()
	if len(got) != 1 || got[0].Reasoning != "ab" || got[0].Text != "xy" {
		t.Fatalf("first chunk = %+v, want reasoning=ab text=xy", got)
	}
	s.Cancel()
}

func TestFinalExactlyOnce(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 4, PriorityReasoningFirst)

	// Nothing pending and producer not done: the pacer waits.
	for i := 0; i < 5; i++ {
		if p.Tick() {
			t.Fatal("pacer finished before producer was done")
		}
	}
	if len(rec.all()) != 0 {
		t.Fatal("idle ticks delivered chunks")
	}

	s.Apply(TextDelta(LaneText, ModeAppend, "12345678"))
	s.Finish()
	p.Tick()
	p.Tick()
	if rec.finals() != 0 {
		t.Fatal("final delivered while buffers were not empty")
	}
	for i := 0; i < 5; i++ {
		p.Tick()
	}
	if rec.finals() != 1 {
		t.Fatalf("finals = %d, want 1", rec.finals())
	}
	all := rec.all()
	if !all[len(all)-1].Final {
		t.Fatal("final chunk was not the last delivered")
	}
	if s.State() != StateClosed || s.Reason() != ReasonCompleted {
		t.Fatalf("state = %v reason = %v", s.State(), s.Reason())
	}
	if s.Pending(LaneText) != 0 {
		t.Fatal("buffers not cleared on close")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 1, PriorityReasoningFirst)

	s.Apply(TextDelta(LaneText, ModeAppend, "abcdef"))
	p.Tick()
	if !reg.Cancel(s.ID()) {
		t.Fatal("Cancel returned false")
	}
	if reg.Cancel(s.ID()) {
		t.Fatal("second Cancel returned true")
	}
	s.Apply(TextDelta(LaneText, ModeAppend, "more"))
	if !p.Tick() {
		t.Fatal("pacer still running after cancel")
	}
	if got := rec.all(); len(got) != 1 || got[0].Final {
		t.Fatalf("chunks after cancel = %+v", got)
	}
}

func TestConsumerFailureDoesNotStopPacer(t *testing.T) {
	reg := NewRegistry(WithMetrics(NewMetrics(nil)))
	s := Begin[rune](reg, ChannelChat)

	var calls atomic.Int32
	var got strings.Builder
	sink := SinkFunc[rune](func(c Chunk[rune]) error {
		switch calls.Add(1) {
		case 1:
			return errors.New("render failed")
		case 2:
			panic("renderer exploded")
		}
		got.WriteString(string(c.Text))
		return nil
	})
	p, err := NewPacer(s, Config{Interval: time.Millisecond, ChunkSize: 1, Priority: PriorityReasoningFirst}, sink)
	if err != nil {
		t.Fatal(err)
	}
	s.Apply(TextDelta(LaneText, ModeAppend, "abcd"))
	s.Finish()
	if drain(p, 10) < 0 {
		t.Fatal("pacer did not finish")
	}
	if got.String() != "cd" {
		t.Fatalf("delivered = %q, want %q", got.String(), "cd")
	}
	if s.Reason() != ReasonCompleted {
		t.Fatalf("reason = %v", s.Reason())
	}
}

func TestFailureDeliversBestEffortFinal(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 2, PriorityReasoningFirst)

	s.Apply(TextDelta(LaneReasoning, ModeAppend, "hmm"))
	s.Apply(TextDelta(LaneText, ModeAppend, "partial answer"))
	p.Tick()
	cause := errors.New("connection reset")
	s.Fail(cause)
	if !p.Tick() {
		t.Fatal("pacer did not finish after failure")
	}

	all := rec.all()
	last := all[len(all)-1]
	if !last.Final || !errors.Is(last.Err, cause) {
		t.Fatalf("last chunk = %+v, want final with error", last)
	}
	if last.Reasoning != "m" || last.Text != "partial answer" {
		t.Fatalf("flushed reasoning=%q text=%q", last.Reasoning, last.Text)
	}
	if rec.finals() != 1 {
		t.Fatalf("finals = %d", rec.finals())
	}
	if err := s.Wait(context.Background()); !errors.Is(err, cause) {
		t.Fatalf("Wait = %v, want %v", err, cause)
	}
}

// TestPacedScenario drives the pacer on a virtual clock: fragments arrive at
// 0ms, 50ms and 60ms, the pacer ticks every 20ms releasing 2 characters.
func TestPacedScenario(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, rec := newTestPacer(t, s, 2, PriorityReasoningFirst)

	type event struct {
		at    time.Duration
		apply func()
	}
	events := []event{
		{0, func() { s.Apply(TextDelta(LaneText, ModeAppend, "He")) }},
		{50 * time.Millisecond, func() { s.Apply(TextDelta(LaneText, ModeAppend, "llo")) }},
		{60 * time.Millisecond, func() { s.Finish() }},
	}

	type emission struct {
		at    time.Duration
		chunk OutputChunk
	}
	var out []emission
	const interval = 20 * time.Millisecond
	done := false
	for now := time.Duration(0); now <= time.Second && !done; now += 10 * time.Millisecond {
		for len(events) > 0 && events[0].at <= now {
			events[0].apply()
			events = events[1:]
		}
		if now > 0 && now%interval == 0 {
			before := len(rec.all())
			done = p.Tick()
			for _, c := range rec.all()[before:] {
				out = append(out, emission{now, c})
			}
		}
	}
	if !done {
		t.Fatal("scenario did not complete")
	}

	want := []struct {
		text  string
		final bool
		after time.Duration
	}{
		{"He", false, 0},
		{"ll", false, 50 * time.Millisecond},
		{"o", false, 50 * time.Millisecond},
		{"", true, 60 * time.Millisecond},
	}
	if len(out) != len(want) {
		t.Fatalf("got %d chunks %+v, want %d", len(out), out, len(want))
	}
	for i, w := range want {
		e := out[i]
		if e.chunk.Text != w.text || e.chunk.Final != w.final {
			t.Fatalf("chunk %d = %+v, want text=%q final=%v", i, e.chunk, w.text, w.final)
		}
		if len([]rune(e.chunk.Text)) > 2 {
			t.Fatalf("chunk %d exceeds 2 chars", i)
		}
		if e.at < w.after {
			t.Fatalf("chunk %d emitted at %v before its input arrived at %v", i, e.at, w.after)
		}
	}
}

func TestRunCompletes(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	rec := &recorder{}
	p, err := NewPacer(s, Config{Interval: 2 * time.Millisecond, ChunkSize: 2}, Sink[rune](rec))
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()
	s.Apply(TextDelta(LaneText, ModeAppend, "Hello"))
	s.Finish()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	<-done
	if got := strings.Join(rec.texts(), ""); got != "Hello" {
		t.Fatalf("output = %q", got)
	}
	if rec.finals() != 1 {
		t.Fatalf("finals = %d", rec.finals())
	}
}

func TestRunContextCancelClosesSession(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	p, _ := newTestPacer(t, s, 2, PriorityReasoningFirst)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	cancel()
	<-done
	if s.Reason() != ReasonCancelled {
		t.Fatalf("reason = %v, want cancelled", s.Reason())
	}
}

func TestNewPacerRejectsBadConfig(t *testing.T) {
	reg := NewRegistry()
	s := Begin[rune](reg, ChannelChat)
	defer s.Cancel()
	bad := []Config{
		{Interval: 0, ChunkSize: 1},
		{Interval: time.Millisecond, ChunkSize: 0},
		{Interval: time.Millisecond, ChunkSize: 1, Priority: Priority(9)},
	}
	for _, cfg := range bad {
		if _, err := NewPacer[rune](s, cfg, SinkFunc[rune](func(Chunk[rune]) error { return nil })); err == nil {
			t.Fatalf("NewPacer(%+v) succeeded", cfg)
		}
	}
}

func TestBytePacer(t *testing.T) {
	reg := NewRegistry()
	s := Begin[byte](reg, ChannelTTS)
	var got []int
	p, err := NewPacer(s, Config{Interval: time.Millisecond, ChunkSize: 4}, SinkFunc[byte](func(c Chunk[byte]) error {
		if !c.Final {
			got = append(got, len(c.Text))
		}
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	s.Apply(Delta[byte]{Lane: LaneText, Payload: make([]byte, 10)})
	s.Finish()
	drain(p, 10)
	if len(got) != 3 || got[0] != 4 || got[1] != 4 || got[2] != 2 {
		t.Fatalf("chunk sizes = %v, want [4 4 2]", got)
	}
}
