package wire

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/tidwall/gjson"

	"github.com/derbi/xiaoxia/pkg/stream"
)

// ErrMalformed is returned for fragments that are not a JSON object even
// after repair. It wraps stream.ErrMalformedFragment.
var ErrMalformed = fmt.Errorf("wire: %w", stream.ErrMalformedFragment)

// DoneMarker is the literal data line that ends a stream.
const DoneMarker = "[DONE]"

// Shape identifies the wire layout of one fragment.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeDone
	ShapeChoices
	ShapeDelta
	ShapeText
	ShapeMeta
	ShapeError
)

func (s Shape) String() string {
	switch s {
	case ShapeDone:
		return "done"
	case ShapeChoices:
		return "choices"
	case ShapeDelta:
		return "delta"
	case ShapeText:
		return "text"
	case ShapeMeta:
		return "meta"
	case ShapeError:
		return "error"
	}
	return "unknown"
}

// terminalReasons are the finish reasons that end a stream. DashScope sends
// the string "null" while a response is still in progress.
var terminalReasons = map[string]bool{
	"stop":       true,
	"length":     true,
	"tool_calls": true,
}

// DashScope normalizes DashScope application, DashScope compatible-mode and
// OpenAI-compatible chat fragments. The zero value is ready to use.
type DashScope struct{}

var _ stream.Normalizer = DashScope{}

// Classify reports the shape of a parsed fragment.
func Classify(root gjson.Result) Shape {
	switch {
	case !root.IsObject():
		return ShapeUnknown
	case isError(root):
		return ShapeError
	case root.Get("output.choices").Exists():
		return ShapeChoices
	case root.Get("choices").IsArray():
		return ShapeDelta
	case root.Get("output.text").Exists(), root.Get("output.thoughts").IsArray():
		return ShapeText
	}
	return ShapeMeta
}

// Normalize implements stream.Normalizer.
func (DashScope) Normalize(raw []byte) ([]stream.Delta[rune], error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return nil, nil
	}
	if string(data) == DoneMarker {
		return []stream.Delta[rune]{stream.TerminalDelta[rune]()}, nil
	}

	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	switch Classify(root) {
	case ShapeError:
		return nil, serverError(root)
	case ShapeChoices:
		return fromChoices(root.Get("output.choices.0")), nil
	case ShapeDelta:
		return fromDelta(root.Get("choices.0")), nil
	case ShapeText:
		return fromText(root.Get("output")), nil
	case ShapeMeta:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: not an object", ErrMalformed)
}

func parse(data []byte) (gjson.Result, error) {
	if gjson.ValidBytes(data) {
		return gjson.ParseBytes(data), nil
	}
	fixed, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !gjson.Valid(fixed) {
		return gjson.Result{}, fmt.Errorf("%w: repair produced invalid JSON", ErrMalformed)
	}
	root := gjson.Parse(fixed)
	if !root.IsObject() {
		return gjson.Result{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return root, nil
}

// fromChoices handles message snapshots: each field is the full current
// value and replaces what came before.
func fromChoices(choice gjson.Result) []stream.Delta[rune] {
	var out []stream.Delta[rune]
	msg := choice.Get("message")
	if r := first(msg, "reasoningContent", "reasoning_content").String(); r != "" {
		out = append(out, stream.TextDelta(stream.LaneReasoning, stream.ModeReplace, r))
	}
	if c := msg.Get("content").String(); c != "" {
		out = append(out, stream.TextDelta(stream.LaneText, stream.ModeReplace, c))
	}
	if terminalReasons[first(choice, "finishReason", "finish_reason").String()] {
		out = append(out, stream.TerminalDelta[rune]())
	}
	return out
}

// fromDelta handles OpenAI-compatible chunks, which carry increments.
func fromDelta(choice gjson.Result) []stream.Delta[rune] {
	var out []stream.Delta[rune]
	d := choice.Get("delta")
	if r := first(d, "reasoning_content", "reasoning").String(); r != "" {
		out = append(out, stream.TextDelta(stream.LaneReasoning, stream.ModeAppend, r))
	}
	if c := d.Get("content").String(); c != "" {
		out = append(out, stream.TextDelta(stream.LaneText, stream.ModeAppend, c))
	}
	if terminalReasons[choice.Get("finish_reason").String()] {
		out = append(out, stream.TerminalDelta[rune]())
	}
	return out
}

// fromText handles application output: text is the next substring and each
// reasoning thought contributes its response.
func fromText(output gjson.Result) []stream.Delta[rune] {
	var out []stream.Delta[rune]
	var reasoning strings.Builder
	output.Get("thoughts").ForEach(func(_, th gjson.Result) bool {
		if first(th, "actionType", "action_type").String() == "reasoning" {
			reasoning.WriteString(th.Get("response").String())
		}
		return true
	})
	if reasoning.Len() > 0 {
		out = append(out, stream.TextDelta(stream.LaneReasoning, stream.ModeAppend, reasoning.String()))
	}
	if t := output.Get("text").String(); t != "" {
		out = append(out, stream.TextDelta(stream.LaneText, stream.ModeAppend, t))
	}
	if terminalReasons[first(output, "finish_reason", "finishReason").String()] {
		out = append(out, stream.TerminalDelta[rune]())
	}
	return out
}

func first(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
