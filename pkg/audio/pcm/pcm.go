package pcm

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K Format = iota
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K
)

// loudSample is the RMS amplitude treated as full volume.
const loudSample = 30000.0

// Format represents an audio format configuration.
type Format int

// ParseSampleRate returns the mono 16-bit format for rate.
func ParseSampleRate(rate int) (Format, error) {
	switch rate {
	case 16000:
		return L16Mono16K, nil
	case 24000:
		return L16Mono24K, nil
	case 48000:
		return L16Mono48K, nil
	}
	return 0, fmt.Errorf("pcm: unsupported sample rate %d", rate)
}

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid audio type")
}

// BytesPerSample is the size of one sample frame.
func (f Format) BytesPerSample() int {
	return 2
}

// BytesInDuration returns the number of bytes in d, rounded down to whole
// samples.
func (f Format) BytesInDuration(d time.Duration) int {
	samples := int64(f.SampleRate()) * int64(d) / int64(time.Second)
	return int(samples) * f.BytesPerSample()
}

// Duration returns the playing time of n bytes.
func (f Format) Duration(n int) time.Duration {
	samples := int64(n / f.BytesPerSample())
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate())
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate() * f.BytesPerSample()
}

// Silence returns d worth of zero samples.
func (f Format) Silence(d time.Duration) []byte {
	return make([]byte, f.BytesInDuration(d))
}

// Volume returns the RMS level of data scaled to [0, 1]. A trailing odd
// byte is ignored.
func (f Format) Volume(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(data[2*i:])))
		sum += s * s
	}
	v := math.Sqrt(sum/float64(n)) / loudSample
	return min(max(v, 0), 1)
}

// ReadFrame reads exactly d worth of audio from r. At the end of the stream
// it returns the short final frame with io.ErrUnexpectedEOF, or io.EOF if
// nothing was read.
func (f Format) ReadFrame(r io.Reader, d time.Duration) ([]byte, error) {
	buf := make([]byte, f.BytesInDuration(d))
	n, err := io.ReadFull(r, buf)
	return buf[:n], err
}

// String returns a human-readable string representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	return fmt.Sprintf("pcm.Format(%d)", int(f))
}
