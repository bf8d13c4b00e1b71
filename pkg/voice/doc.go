// Package voice runs speech synthesis and recognition as stream sessions.
//
// A Speaker turns text into PCM on the tts channel: synthesized audio is
// appended to a byte session and the pacer writes it to the player one
// interval's worth of samples per tick. A Recognizer sends microphone frames
// on the asr channel and reconciles partial transcripts into a text session.
//
// Both use the same Registry as chat, so starting a new utterance or
// recording cancels the previous one on that channel, and callbacks from a
// cancelled connection are ignored.
package voice
