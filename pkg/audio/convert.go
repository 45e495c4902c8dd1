package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
)

// Convert converts p to the target format. If the source format already
// matches the target, p is returned unchanged (zero allocation). Channels are
// down-mixed before resampling so only the reduced signal is interpolated.
// Up-mixing is not supported; p keeps its channel count in that case.
func Convert(p PCM, target Format) PCM {
	if p.Format == target {
		return p
	}

	slog.Debug("audio format mismatch: converting",
		"from", p.Format.String(),
		"to", target.String(),
	)

	pcm := p.Data
	channels := p.Channels

	if target.Channels == 1 && channels > 1 {
		if channels == 2 {
			pcm = StereoToMono(pcm)
		} else {
			pcm = Downmix(pcm, channels)
		}
		channels = 1
	}

	rate := p.SampleRate
	if rate != target.SampleRate && channels == 1 {
		pcm = ResampleMono16(pcm, rate, target.SampleRate)
		rate = target.SampleRate
	}

	return PCM{Data: pcm, Format: Format{SampleRate: rate, Channels: channels}}
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	// Each stereo frame is 4 bytes (2 bytes L + 2 bytes R).
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		// Clamp to int16 range.
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// Downmix averages all channels of each frame into one mono sample. A
// trailing partial frame is dropped.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frameBytes := channels * 2
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := i*frameBytes + ch*2
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[idx : idx+2])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/int32(channels))))
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input must be little-endian int16 samples. If srcRate ==
// dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// ToFloat32 converts 16-bit PCM to float32 samples normalised to the range
// [-1.0, 1.0]. Any trailing odd byte is silently ignored.
func ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// SilenceRMS is the root-mean-square energy level (in 16-bit PCM units) below
// which audio is considered silent. The maximum possible value for 16-bit
// audio is 32 767; 300 corresponds to near-silence.
const SilenceRMS = 300.0

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer. Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2 // number of 16-bit samples
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// IsSilent reports whether the whole recording stays below SilenceRMS.
func (p PCM) IsSilent() bool {
	return RMS(p.Data) < SilenceRMS
}
