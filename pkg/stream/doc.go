// Package stream implements session-isolated reconciliation and pacing of
// incrementally delivered content.
//
// Content arrives from a producer (an SSE read loop, a speech socket) in bursts
// and is released to a slow consumer (a typewriter renderer, an audio player)
// at a fixed cadence. The package has four parts:
//
//   - Registry issues monotonically increasing session IDs per Channel and is
//     the single gate every asynchronous callback consults. Beginning a session
//     on a channel cancels the session it displaces.
//   - Session holds the per-lane accumulated state and pending buffers.
//     Session.Apply is the reconciler: Append deltas are concatenated, Replace
//     deltas are diffed against what has already been paced out.
//   - Pacer drains pending content on its own ticker, reasoning before text,
//     and emits exactly one final chunk once the producer is done and both
//     lanes are empty.
//   - Engine is the text-facing caller API (Begin, Feed, ProducerDone, Fail,
//     Cancel, Wait) that ties a Normalizer, a Session and a Pacer together.
//
// Session and Pacer are generic over the element type, so text is paced in
// runes and PCM audio in bytes by the same code.
//
// # Lifecycle
//
//	Active --terminal delta--> Finishing --drained--> Closed
//	Active|Finishing --Cancel/Fail/displaced--> Closed
//
// Every terminal path ends in StateClosed with the buffers cleared.
package stream
