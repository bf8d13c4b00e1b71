// Package wire normalizes raw streaming fragments into canonical deltas.
//
// A chat backend streams one JSON object per SSE data line, and the same
// meaning arrives in several incompatible shapes:
//
//	[DONE]                                            terminal marker
//	{"output":{"choices":[{"message":{...}}]}}        full current value (replace)
//	{"choices":[{"delta":{...}}]}                     OpenAI-compatible chunk (append)
//	{"output":{"text":"...","thoughts":[...]}}        new substring (append)
//	{"usage":{...},"request_id":"..."}                accounting only (nothing)
//	{"code":"...","message":"..."}                    server error
//
// The shape is told apart by structure alone: the presence of choices versus
// a bare text field. Usage counters appear in every shape and never decide
// anything.
//
// # Limitation
//
// Whether a field is a snapshot or an increment is inferred from the shape,
// not declared by the protocol. If a backend sent increments in the choices
// shape, an increment that happens to start with everything shown so far is
// indistinguishable from a growing snapshot and the output would be corrupted
// without any error. Supporting a new backend means adding a shape here; no
// other package looks at wire formats.
package wire
