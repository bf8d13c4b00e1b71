package trace

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string like 80ms", node.Line)
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	if v < 0 {
		return fmt.Errorf("line %d: negative duration %s", node.Line, node.Value)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Step is one scripted producer callback, After the previous one.
type Step struct {
	After Duration `yaml:"after,omitempty"`
	Data  string   `yaml:"data,omitempty"`
	Done  bool     `yaml:"done,omitempty"`
	Error string   `yaml:"error,omitempty"`
}

// Script is a hand-written trace.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// LoadScript parses a YAML script into events with absolute offsets.
// Unknown keys are rejected so typos do not silently drop steps.
func LoadScript(r io.Reader) ([]Event, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("trace: script: %w", err)
	}
	return s.Events()
}

// Events converts the steps to events.
func (s *Script) Events() ([]Event, error) {
	var (
		at     time.Duration
		events = make([]Event, 0, len(s.Steps))
	)
	for i, st := range s.Steps {
		set := 0
		ev := Event{}
		if st.Data != "" {
			set++
			ev.Kind, ev.Data = KindData, st.Data
		}
		if st.Done {
			set++
			ev.Kind = KindDone
		}
		if st.Error != "" {
			set++
			ev.Kind, ev.Data = KindError, st.Error
		}
		if set != 1 {
			return nil, fmt.Errorf("trace: script step %d: need exactly one of data, done, error", i)
		}
		at += time.Duration(st.After)
		ev.At = at
		events = append(events, ev)
	}
	return events, nil
}

// ToScript converts events back to an editable script.
func ToScript(events []Event) *Script {
	s := &Script{Steps: make([]Step, 0, len(events))}
	var prev time.Duration
	for _, ev := range events {
		st := Step{After: Duration(ev.At - prev)}
		prev = ev.At
		switch ev.Kind {
		case KindData:
			st.Data = ev.Data
		case KindDone:
			st.Done = true
		case KindError:
			st.Error = ev.Data
		}
		s.Steps = append(s.Steps, st)
	}
	return s
}

// WriteScript encodes events as a YAML script.
func WriteScript(w io.Writer, events []Event) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToScript(events)); err != nil {
		return fmt.Errorf("trace: script: %w", err)
	}
	return enc.Close()
}
