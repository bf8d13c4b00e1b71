package stream

import "fmt"

// ID identifies one session. IDs are never reused within a Registry.
type ID uint64

// Channel is the logical operation slot a session occupies. At most one
// session per channel is live at a time.
type Channel string

const (
	ChannelChat Channel = "chat"
	ChannelTTS  Channel = "tts"
	ChannelASR  Channel = "asr"
)

// Lane is a content stream within a session.
type Lane uint8

const (
	LaneText Lane = iota
	LaneReasoning

	numLanes = 2
)

func (l Lane) String() string {
	switch l {
	case LaneText:
		return "text"
	case LaneReasoning:
		return "reasoning"
	}
	return fmt.Sprintf("lane(%d)", uint8(l))
}

// LaneSet is a bit set of lanes.
type LaneSet uint8

// Has reports whether l is in the set.
func (s LaneSet) Has(l Lane) bool {
	return s&(1<<l) != 0
}

func (s LaneSet) with(l Lane) LaneSet {
	return s | 1<<l
}

// Mode is how a delta payload combines with the lane's current content.
type Mode uint8

const (
	// ModeAppend adds the payload to the end of the lane.
	ModeAppend Mode = iota
	// ModeReplace makes the payload the lane's full current value.
	ModeReplace
)

func (m Mode) String() string {
	switch m {
	case ModeAppend:
		return "append"
	case ModeReplace:
		return "replace"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// State is the lifecycle state of a session.
type State int32

const (
	StateActive State = iota
	StateFinishing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinishing:
		return "finishing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Delta is one canonical unit of content change.
type Delta[T any] struct {
	Lane     Lane
	Mode     Mode
	Payload  []T
	Terminal bool
}

// TerminalDelta returns the delta that marks the producer as finished.
func TerminalDelta[T any]() Delta[T] {
	return Delta[T]{Terminal: true}
}

// TextDelta builds a rune delta from a string payload.
func TextDelta(lane Lane, mode Mode, payload string) Delta[rune] {
	return Delta[rune]{Lane: lane, Mode: mode, Payload: []rune(payload)}
}

// Chunk is the unit the pacer hands to a consumer.
type Chunk[T any] struct {
	Text      []T
	Reasoning []T

	// Reset lists lanes whose previously delivered content was superseded.
	// The consumer clears those lanes before appending this chunk.
	Reset LaneSet

	// Final is set on the last chunk of a session. Nothing follows it.
	Final bool

	// Err is set on the final chunk of a session that failed.
	Err error
}

// OutputChunk is a text Chunk in string form, as delivered to renderers.
type OutputChunk struct {
	Text      string
	Reasoning string
	Reset     LaneSet
	Final     bool
	Err       error
}

// TextChunk converts a rune chunk to its string form.
func TextChunk(c Chunk[rune]) OutputChunk {
	return OutputChunk{
		Text:      string(c.Text),
		Reasoning: string(c.Reasoning),
		Reset:     c.Reset,
		Final:     c.Final,
		Err:       c.Err,
	}
}
