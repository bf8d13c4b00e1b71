// Package pcm describes 16-bit little-endian mono PCM streams: byte and
// duration arithmetic, silence, and loudness.
//
//	format := pcm.L16Mono24K
//	perTick := format.BytesInDuration(20 * time.Millisecond) // 960 bytes
//	level := pcm.L16Mono16K.Volume(frame)                   // 0.0 to 1.0
package pcm
