package wire

import (
	"errors"
	"testing"

	"github.com/derbi/xiaoxia/pkg/stream"
)

type want struct {
	lane     stream.Lane
	mode     stream.Mode
	payload  string
	terminal bool
}

func check(t *testing.T, name string, got []stream.Delta[rune], wants []want) {
	t.Helper()
	if len(got) != len(wants) {
		t.Fatalf("%s: got %d deltas %+v, want %d", name, len(got), got, len(wants))
	}
	for i, w := range wants {
		g := got[i]
		if w.terminal {
			if !g.Terminal || len(g.Payload) != 0 {
				t.Fatalf("%s: delta %d = %+v, want terminal", name, i, g)
			}
			continue
		}
		if g.Terminal || g.Lane != w.lane || g.Mode != w.mode || string(g.Payload) != w.payload {
			t.Fatalf("%s: delta %d = {%v %v %q %v}, want {%v %v %q}",
				name, i, g.Lane, g.Mode, string(g.Payload), g.Terminal, w.lane, w.mode, w.payload)
		}
	}
}

func TestNormalize(t *testing.T) {
	const (
		text      = stream.LaneText
		reasoning = stream.LaneReasoning
		app       = stream.ModeAppend
		rep       = stream.ModeReplace
	)
	tests := []struct {
		name string
		raw  string
		want []want
	}{
		{"done", "[DONE]", []want{{terminal: true}}},
		{"done padded", "  [DONE]\r\n", []want{{terminal: true}}},
		{"blank", "   ", nil},
		{"output text", `{"output":{"text":"He","finish_reason":"null"},"usage":{"models":[{"input_tokens":3}]}}`,
			[]want{{text, app, "He", false}}},
		{"output text keeps spaces", `{"output":{"text":" world "}}`,
			[]want{{text, app, " world ", false}}},
		{"output text stop", `{"output":{"text":"","finish_reason":"stop"}}`,
			[]want{{terminal: true}}},
		{"thoughts", `{"output":{"text":"","thoughts":[{"actionType":"reasoning","response":"let me "},{"actionType":"agentRag","response":"ignored"},{"action_type":"reasoning","response":"think"}]}}`,
			[]want{{reasoning, app, "let me think", false}}},
		{"choices content", `{"output":{"choices":[{"message":{"role":"assistant","content":"Hello"}}]}}`,
			[]want{{text, rep, "Hello", false}}},
		{"choices both lanes", `{"output":{"choices":[{"message":{"content":"A","reasoningContent":"R"},"finishReason":"stop"}]}}`,
			[]want{{reasoning, rep, "R", false}, {text, rep, "A", false}, {terminal: true}}},
		{"choices snake case", `{"output":{"choices":[{"message":{"content":"","reasoning_content":"hm"},"finish_reason":"null"}]}}`,
			[]want{{reasoning, rep, "hm", false}}},
		{"choices tool calls", `{"output":{"choices":[{"message":{"content":""},"finish_reason":"tool_calls"}]}}`,
			[]want{{terminal: true}}},
		{"choices with text field too", `{"output":{"text":"ignored","choices":[{"message":{"content":"Hi"}}]}}`,
			[]want{{text, rep, "Hi", false}}},
		{"openai delta", `{"id":"c1","choices":[{"index":0,"delta":{"content":"Hel"},"finish_reason":null}]}`,
			[]want{{text, app, "Hel", false}}},
		{"openai reasoning", `{"choices":[{"delta":{"reasoning_content":"why"}}]}`,
			[]want{{reasoning, app, "why", false}}},
		{"openai finish", `{"choices":[{"delta":{},"finish_reason":"length"}]}`,
			[]want{{terminal: true}}},
		{"usage only", `{"usage":{"input_tokens":10,"output_tokens":20},"request_id":"r1"}`, nil},
		{"output usage only", `{"output":{"session_id":"s"},"usage":{"models":[]}}`, nil},
		{"openai usage chunk", `{"choices":[],"usage":{"total_tokens":5}}`, nil},
		{"unicode", `{"output":{"text":"你好👋"}}`, []want{{text, app, "你好👋", false}}},
		{"repairable", `{"output":{"text":'single quoted',}}`, []want{{text, app, "single quoted", false}}},
	}
	var n DashScope
	for _, tt := range tests {
		got, err := n.Normalize([]byte(tt.raw))
		if err != nil {
			t.Fatalf("%s: Normalize error: %v", tt.name, err)
		}
		check(t, tt.name, got, tt.want)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	var n DashScope
	for _, raw := range []string{`42`, `"just a string"`, `[1,2,3]`, `true`} {
		got, err := n.Normalize([]byte(raw))
		if !errors.Is(err, stream.ErrMalformedFragment) {
			t.Fatalf("Normalize(%q) error = %v, want malformed", raw, err)
		}
		if got != nil {
			t.Fatalf("Normalize(%q) = %+v, want nil", raw, got)
		}
	}
}

func TestNormalizeNeverPanics(t *testing.T) {
	var n DashScope
	inputs := []string{
		"{", "}", "{{{{", `{"output":`, `{"output":{"choices":`, `{"output":{"choices":[{"message":`,
		`{"output":{"choices":"nope"}}`, `{"output":{"thoughts":{"a":1}}}`, `{"output":null}`,
		`{"choices":[null]}`, "\x00\xff\xfe", `data: {"output":{}}`, "[DONE", `{"output":{"text":["a"]}}`,
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Normalize(%q) panicked: %v", in, r)
				}
			}()
			n.Normalize([]byte(in))
		}()
	}
}

func TestNormalizeServerError(t *testing.T) {
	var n DashScope
	tests := []struct {
		raw       string
		code, msg string
	}{
		{`{"code":"InvalidApiKey","message":"Invalid API-key provided.","request_id":"abc"}`, "InvalidApiKey", "Invalid API-key provided."},
		{`{"error":{"message":"rate limited","type":"requests","code":"429"}}`, "429", "rate limited"},
	}
	for _, tt := range tests {
		_, err := n.Normalize([]byte(tt.raw))
		se, ok := AsServerError(err)
		if !ok {
			t.Fatalf("Normalize(%s) error = %v, want *ServerError", tt.raw, err)
		}
		if se.Code != tt.code || se.Message != tt.msg {
			t.Fatalf("ServerError = %+v, want code=%s message=%s", se, tt.code, tt.msg)
		}
		if errors.Is(err, stream.ErrMalformedFragment) {
			t.Fatal("server error reported as malformed")
		}
	}
}

func TestClassifyIgnoresUsage(t *testing.T) {
	var n DashScope
	// Usage counters do not turn a text fragment into anything else.
	got, err := n.Normalize([]byte(`{"usage":{"output_tokens":99},"output":{"text":"x"}}`))
	if err != nil {
		t.Fatal(err)
	}
	check(t, "usage+text", got, []want{{stream.LaneText, stream.ModeAppend, "x", false}})
}
