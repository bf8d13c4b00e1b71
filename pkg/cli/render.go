package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/derbi/xiaoxia/pkg/stream"
)

type section int

const (
	sectionNone section = iota
	sectionReasoning
	sectionText
)

// StreamRenderer prints paced chat output: reasoning dimmed under a label,
// then the answer. A terminal cannot take back printed text, so a lane that
// is reset starts over on a new line after a marker.
type StreamRenderer struct {
	mu      sync.Mutex
	w       io.Writer
	styles  Styles
	current section
	text    int
	reason  int
	err     error
}

// NewStreamRenderer creates a renderer writing to w.
func NewStreamRenderer(w io.Writer, styles Styles) *StreamRenderer {
	return &StreamRenderer{w: w, styles: styles}
}

// Render implements stream.Renderer.
func (r *StreamRenderer) Render(c stream.OutputChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	if c.Reset != 0 {
		if r.current != sectionNone {
			b.WriteString("\n")
		}
		b.WriteString(paint(r.styles.Help, "↺ revised"))
		b.WriteString("\n")
		r.current = sectionNone
	}
	if c.Reasoning != "" {
		if r.current != sectionReasoning {
			b.WriteString(paint(r.styles.Label, "思考") + "\n")
			r.current = sectionReasoning
		}
		b.WriteString(paint(r.styles.Reasoning, c.Reasoning))
		r.reason += utf8.RuneCountInString(c.Reasoning)
	}
	if c.Text != "" {
		if r.current == sectionReasoning {
			b.WriteString("\n\n")
		}
		r.current = sectionText
		b.WriteString(paint(r.styles.Text, c.Text))
		r.text += utf8.RuneCountInString(c.Text)
	}
	if c.Final {
		if r.current != sectionNone {
			b.WriteString("\n")
		}
		if c.Err != nil {
			b.WriteString(paint(r.styles.Error, "error: "+c.Err.Error()) + "\n")
			r.err = c.Err
		}
		r.current = sectionNone
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Counts returns how many text and reasoning characters were printed.
func (r *StreamRenderer) Counts() (text, reasoning int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text, r.reason
}

// Err returns the error carried by the last failed final chunk.
func (r *StreamRenderer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// TranscriptRenderer keeps a live transcript on one terminal line, redrawn
// on every chunk, with an optional volume meter in front.
type TranscriptRenderer struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	text   strings.Builder
	level  float64
}

// NewTranscriptRenderer creates a renderer writing to w.
func NewTranscriptRenderer(w io.Writer, styles Styles) *TranscriptRenderer {
	return &TranscriptRenderer{w: w, styles: styles}
}

// Render implements stream.Renderer.
func (t *TranscriptRenderer) Render(c stream.OutputChunk) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.Reset.Has(stream.LaneText) {
		t.text.Reset()
	}
	t.text.WriteString(c.Text)
	line := t.lineLocked()
	if c.Final {
		line += "\n"
		if c.Err != nil {
			line += paint(t.styles.Error, "error: "+c.Err.Error()) + "\n"
		}
	}
	_, err := io.WriteString(t.w, line)
	return err
}

// SetLevel updates the volume meter and redraws the line.
func (t *TranscriptRenderer) SetLevel(level float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.level = level
	io.WriteString(t.w, t.lineLocked())
}

// Text returns the transcript so far.
func (t *TranscriptRenderer) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

func (t *TranscriptRenderer) lineLocked() string {
	return fmt.Sprintf("\r\x1b[2K%s %s", paint(t.styles.Meter, Meter(t.level, 8)), t.text.String())
}

// Meter draws level in [0, 1] as a bar of width cells.
func Meter(level float64, width int) string {
	level = min(max(level, 0), 1)
	n := int(level*float64(width) + 0.5)
	return "[" + strings.Repeat("▮", n) + strings.Repeat(" ", width-n) + "]"
}
