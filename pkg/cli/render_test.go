package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/derbi/xiaoxia/pkg/stream"
)

func newStreamRenderer() (*StreamRenderer, *bytes.Buffer) {
	var b bytes.Buffer
	return NewStreamRenderer(&b, NewStyles(&b, DefaultTheme)), &b
}

func TestStreamRendererSections(t *testing.T) {
	r, out := newStreamRenderer()
	for _, c := range []stream.OutputChunk{
		{Reasoning: "先想"},
		{Reasoning: "一下"},
		{Text: "你好"},
		{Text: "，\n世界"},
		{Final: true},
	} {
		if err := r.Render(c); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := out.String(), "思考\n先想一下\n\n你好，\n世界\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if text, reasoning := r.Counts(); text != 6 || reasoning != 4 {
		t.Fatalf("counts = %d, %d", text, reasoning)
	}
}

func TestStreamRendererReset(t *testing.T) {
	r, out := newStreamRenderer()
	r.Render(stream.OutputChunk{Text: "Hel"})
	r.Render(stream.OutputChunk{Text: "Jel", Reset: stream.LaneSet(1 << stream.LaneText)})
	r.Render(stream.OutputChunk{Text: "lo", Final: true})
	if got, want := out.String(), "Hel\n↺ revised\nJello\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestStreamRendererError(t *testing.T) {
	r, out := newStreamRenderer()
	boom := errors.New("connection reset")
	r.Render(stream.OutputChunk{Text: "半"})
	r.Render(stream.OutputChunk{Text: "句", Final: true, Err: boom})
	if !strings.HasSuffix(out.String(), "半句\nerror: connection reset\n") {
		t.Fatalf("output = %q", out.String())
	}
	if !errors.Is(r.Err(), boom) {
		t.Fatalf("Err() = %v", r.Err())
	}
}

func TestTranscriptRenderer(t *testing.T) {
	var b bytes.Buffer
	tr := NewTranscriptRenderer(&b, NewStyles(&b, DefaultTheme))
	tr.Render(stream.OutputChunk{Text: "今天甜"})
	tr.Render(stream.OutputChunk{Text: "今天天气", Reset: stream.LaneSet(1 << stream.LaneText)})
	tr.SetLevel(0.5)
	tr.Render(stream.OutputChunk{Text: "好", Final: true})

	if got := tr.Text(); got != "今天天气好" {
		t.Fatalf("Text() = %q", got)
	}
	lines := strings.Split(b.String(), "\r\x1b[2K")
	last := lines[len(lines)-1]
	if last != "[▮▮▮▮    ] 今天天气好\n" {
		t.Fatalf("last line = %q", last)
	}
}

func TestMeter(t *testing.T) {
	tests := map[float64]string{
		-1:  "[    ]",
		0:   "[    ]",
		0.5: "[▮▮  ]",
		2:   "[▮▮▮▮]",
	}
	for level, want := range tests {
		if got := Meter(level, 4); got != want {
			t.Fatalf("Meter(%v) = %q, want %q", level, got, want)
		}
	}
}
