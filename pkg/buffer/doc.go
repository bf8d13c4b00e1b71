// Package buffer provides a thread-safe growable FIFO for streaming data.
//
// Buffer is the pending store behind every paced lane: producers append with
// Write (or swap the whole content with Replace), and the pacer removes a
// bounded prefix with Take on its own schedule. Buffer is generic so the same
// type holds text runes and PCM bytes.
//
// Example usage:
//
//	buf := buffer.N[rune](64)
//	buf.Write([]rune("hello"))
//	head := buf.Take(2) // "he"
//	buf.Len()           // 3
//
// A closed buffer rejects writes with ErrClosed and holds no data.
package buffer
