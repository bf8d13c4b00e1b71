package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestOutput(t *testing.T) {
	cfg := &Config{CurrentContext: "a", Contexts: map[string]*Context{
		"a": {Name: "a", Backend: BackendHTTP, Pacing: &Pacing{Speed: "fast"}},
	}}

	var y bytes.Buffer
	if err := Output(&y, cfg, FormatYAML); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"current_context: a", "backend: http", "speed: fast"} {
		if !strings.Contains(y.String(), want) {
			t.Fatalf("yaml output missing %q:\n%s", want, y.String())
		}
	}

	var j bytes.Buffer
	if err := Output(&j, map[string]int{"chars": 3}, FormatJSON); err != nil {
		t.Fatal(err)
	}
	var back map[string]int
	if err := json.Unmarshal(j.Bytes(), &back); err != nil || back["chars"] != 3 {
		t.Fatalf("json output %q: %v", j.String(), err)
	}

	if err := Output(&j, cfg, "xml"); err == nil {
		t.Fatal("Output accepted xml")
	}
	if _, err := ParseOutputFormat("table"); err == nil {
		t.Fatal("ParseOutputFormat accepted table")
	}
}

func TestPrintHelpers(t *testing.T) {
	var b bytes.Buffer
	PrintSuccess(&b, "context %q added", "a")
	PrintInfo(&b, "using %s", "a")
	if got := b.String(); got != "✓ context \"a\" added\nℹ using a\n" {
		t.Fatalf("got %q", got)
	}
}

func TestFormat(t *testing.T) {
	durations := map[time.Duration]string{
		850 * time.Millisecond:   "850ms",
		2400 * time.Millisecond:  "2.4s",
		63500 * time.Millisecond: "1m3.5s",
	}
	for d, want := range durations {
		if got := FormatDuration(d); got != want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", d, got, want)
		}
	}
	sizes := map[int64]string{
		512:        "512 B",
		2048:       "2.00 KB",
		3 << 20:    "3.00 MB",
		5 << 30:    "5.00 GB",
		2048 << 30: "2048.00 GB",
	}
	for n, want := range sizes {
		if got := FormatBytes(n); got != want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
