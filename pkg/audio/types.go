// Package audio decodes uploaded recordings into raw PCM and converts them to
// the format speech-to-text engines expect.
//
// All PCM in this package is 16-bit signed little-endian and interleaved when
// it has more than one channel.
package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// STTFormat is 16 kHz mono, the input format of whisper.cpp.
var STTFormat = Format{SampleRate: 16000, Channels: 1}

// String returns e.g. "48000Hz stereo".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// PCM is a decoded recording.
type PCM struct {
	// Data holds 16-bit signed little-endian samples.
	Data []byte

	Format
}

// Duration returns the playback length of p. It is zero for an invalid
// format.
func (p PCM) Duration() time.Duration {
	bytesPerSec := p.SampleRate * p.Channels * 2
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(int64(len(p.Data)) * int64(time.Second) / int64(bytesPerSec))
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
