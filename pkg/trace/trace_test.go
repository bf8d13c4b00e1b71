package trace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/derbi/xiaoxia/pkg/stream"
	"github.com/derbi/xiaoxia/pkg/wire"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type feeder struct {
	fed  []string
	done int
	errs []error
}

func (f *feeder) Feed(_ stream.ID, raw []byte) bool { f.fed = append(f.fed, string(raw)); return true }
func (f *feeder) ProducerDone(stream.ID) bool { f.done++; return true }
func (f *feeder) Fail(_ stream.ID, err error) bool { f.errs = append(f.errs, err); return true }
func (f *feeder) Cancel(stream.ID) bool { return true }
func (f *feeder) Done(stream.ID) <-chan struct{} { return nil }

func record(t *testing.T) ([]byte, *feeder) {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	var buf bytes.Buffer
	rec, err := newRecorder(&buf, stream.ChannelChat, c.now)
	if err != nil {
		t.Fatal(err)
	}
	f := &feeder{}
	tp := rec.Tap(f)
	tp.Feed(1, []byte(`{"output":{"text":"你"}}`))
	c.t = c.t.Add(10 * time.Millisecond)
	tp.Feed(1, []byte(`{"output":{"text":"好"}}`))
	c.t = c.t.Add(15 * time.Millisecond)
	tp.Fail(1, errors.New("connection reset"))
	if err := rec.Err(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), f
}

func TestRecordAndRead(t *testing.T) {
	data, f := record(t)
	if len(f.fed) != 2 || len(f.errs) != 1 {
		t.Fatalf("tap did not pass callbacks through: fed=%v errs=%v", f.fed, f.errs)
	}

	h, events, err := Read(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if h.Format != FormatVersion || h.Channel != "chat" {
		t.Fatalf("header = %+v", h)
	}
	want := []Event{
		{At: 0, Kind: KindData, Data: `{"output":{"text":"你"}}`},
		{At: 10 * time.Millisecond, Kind: KindData, Data: `{"output":{"text":"好"}}`},
		{At: 25 * time.Millisecond, Kind: KindError, Data: "connection reset"},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestReadTruncated(t *testing.T) {
	data, _ := record(t)
	_, events, err := Read(bytes.NewReader(data[:len(data)-3]))
	if err == nil {
		t.Fatal("truncated recording read without error")
	}
	if len(events) != 2 {
		t.Fatalf("got %d events before the cut, want 2", len(events))
	}
}

func TestReadNotRecording(t *testing.T) {
	for _, in := range []string{"", "steps: []\n"} {
		if _, _, err := Read(strings.NewReader(in)); !errors.Is(err, ErrFormat) {
			t.Fatalf("Read(%q) = %v, want ErrFormat", in, err)
		}
	}
}

const script = `steps:
  - data: '{"output":{"text":"Hel"}}'
  - after: 30ms
    data: '{"output":{"text":"lo"}}'
  - after: 5ms
    done: true
`

func TestLoadScript(t *testing.T) {
	events, err := LoadScript(strings.NewReader(script))
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{
		{At: 0, Kind: KindData, Data: `{"output":{"text":"Hel"}}`},
		{At: 30 * time.Millisecond, Kind: KindData, Data: `{"output":{"text":"lo"}}`},
		{At: 35 * time.Millisecond, Kind: KindDone},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events", len(events))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}

	var buf bytes.Buffer
	if err := WriteScript(&buf, events); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "after: 30ms") {
		t.Fatalf("written script lost the delay:\n%s", buf.String())
	}
	again, err := LoadScript(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if again[2] != want[2] {
		t.Fatalf("reloaded %+v", again[2])
	}
}

func TestLoadScriptRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown key", "steps:\n  - dta: x\n"},
		{"two kinds", "steps:\n  - data: x\n    done: true\n"},
		{"empty step", "steps:\n  - after: 1s\n"},
		{"bad duration", "steps:\n  - after: soon\n    data: x\n"},
		{"negative duration", "steps:\n  - after: -1s\n    data: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadScript(strings.NewReader(tt.in)); err == nil {
				t.Fatal("LoadScript accepted invalid script")
			}
		})
	}
}

type output struct {
	mu     sync.Mutex
	text   strings.Builder
	finals int
}

func (o *output) Render(c stream.OutputChunk) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.text.WriteString(c.Text)
	if c.Final {
		o.finals++
	}
	return nil
}

func (o *output) result() (string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.text.String(), o.finals
}

func newEngine(t *testing.T) *stream.Engine {
	t.Helper()
	e, err := stream.NewEngine(stream.NewRegistry(), wire.DashScope{},
		stream.Config{Interval: time.Millisecond, ChunkSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func timeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestReplayIntoEngine(t *testing.T) {
	events, err := LoadScript(strings.NewReader(script))
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t)
	out := &output{}
	id := e.Begin(stream.ChannelChat, out)

	start := time.Now()
	if err := Replay(timeout(t), events, e, id, 1); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Fatalf("replay took %v, want at least the scripted 35ms", elapsed)
	}
	if err := e.Wait(timeout(t), id); err != nil {
		t.Fatal(err)
	}
	if text, finals := out.result(); text != "Hello" || finals != 1 {
		t.Fatalf("text=%q finals=%d", text, finals)
	}
}

func TestReplayError(t *testing.T) {
	e := newEngine(t)
	id := e.Begin(stream.ChannelChat, &output{})
	events := []Event{
		{Kind: KindData, Data: `{"output":{"text":"半"}}`},
		{Kind: KindError, Data: "connection reset"},
	}
	if err := Replay(timeout(t), events, e, id, 0); err != nil {
		t.Fatal(err)
	}
	err := e.Wait(timeout(t), id)
	var te *stream.TransportError
	if !errors.As(err, &te) || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("Wait = %v", err)
	}
}

func TestReplayContextCancel(t *testing.T) {
	f := &feeder{}
	ctx, cancel := context.WithCancel(context.Background())
	events := []Event{
		{Kind: KindData, Data: "a"},
		{At: time.Hour, Kind: KindData, Data: "b"},
	}
	done := make(chan error, 1)
	go func() { done <- Replay(ctx, events, f, 1, 1) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Replay = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Replay ignored cancellation")
	}
	if len(f.fed) != 1 || f.done != 0 {
		t.Fatalf("fed=%v done=%d", f.fed, f.done)
	}
}
