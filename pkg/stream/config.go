package stream

import (
	"fmt"
	"strings"
	"time"
)

// Pacing presets.
const (
	SpeedSlow   = 100 * time.Millisecond
	SpeedNormal = 50 * time.Millisecond
	SpeedFast   = 20 * time.Millisecond

	ChunkSmall  = 5
	ChunkMedium = 50
	ChunkLarge  = 100
)

// Priority selects how the pacer orders the two lanes.
type Priority int

const (
	// PriorityReasoningFirst drains reasoning completely before any text is
	// released, whatever order the two arrived in.
	PriorityReasoningFirst Priority = iota
	// PriorityInterleaved releases up to one chunk from each lane per tick.
	PriorityInterleaved
)

func (p Priority) String() string {
	switch p {
	case PriorityReasoningFirst:
		return "reasoning-first"
	case PriorityInterleaved:
		return "interleaved"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority parses "reasoning-first" or "interleaved". An empty string
// yields PriorityReasoningFirst.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reasoning-first", "reasoning_first":
		return PriorityReasoningFirst, nil
	case "interleaved":
		return PriorityInterleaved, nil
	}
	return 0, fmt.Errorf("stream: unknown priority %q", s)
}

// Config is the static pacing configuration. It is read once when a session
// starts and never changes mid-session.
type Config struct {
	// Interval is the time between pacer ticks.
	Interval time.Duration
	// ChunkSize is the maximum number of elements released per lane per tick.
	ChunkSize int
	// Priority orders the lanes.
	Priority Priority
}

// DefaultConfig returns the slow, small-chunk typewriter profile.
func DefaultConfig() Config {
	return Config{
		Interval:  SpeedSlow,
		ChunkSize: ChunkSmall,
		Priority:  PriorityReasoningFirst,
	}
}

// Validate checks that the configuration can drive a pacer.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("stream: interval must be positive, got %v", c.Interval)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("stream: chunk size must be positive, got %d", c.ChunkSize)
	}
	switch c.Priority {
	case PriorityReasoningFirst, PriorityInterleaved:
	default:
		return fmt.Errorf("stream: invalid priority %d", int(c.Priority))
	}
	return nil
}
