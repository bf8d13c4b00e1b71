// Package trace records the raw fragments of a chat stream and plays them
// back with their original timing.
//
// Recordings are msgpack: a Header followed by one Event per fragment, so a
// recording that was cut short is still readable up to the last complete
// event. Scripts are hand-written YAML with relative delays:
//
//	steps:
//	  - after: 80ms
//	    data: '{"output":{"text":"你"}}'
//	  - after: 120ms
//	    data: '{"output":{"text":"好"}}'
//	  - done: true
//
// Both load into the same []Event and are fed to an engine session by
// Replay, which makes pacing behavior reproducible without a server.
package trace
