package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// WAV format tags understood by DecodeWAV.
const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// ErrNotWAV is returned by DecodeWAV when data does not start with a
// RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE file")

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV parses a RIFF/WAVE file and returns its samples as 16-bit PCM.
// Integer PCM of 8, 16, 24 or 32 bits and 32-bit IEEE float are supported,
// including the WAVE_FORMAT_EXTENSIBLE variants of both. Unknown chunks are
// skipped. A data chunk that claims more bytes than the file holds is
// truncated to what is present.
func DecodeWAV(data []byte) (PCM, error) {
	if !IsWAV(data) {
		return PCM{}, ErrNotWAV
	}

	var (
		format   uint16
		channels int
		rate     int
		bits     int
		haveFmt  bool
		payload  []byte
	)

	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := data[off+8:]
		if size < 0 || size > len(body) {
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, fmt.Errorf("audio: fmt chunk too short (%d bytes)", size)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits = int(binary.LittleEndian.Uint16(body[14:16]))
			if format == wavFormatExtensible && size >= 26 {
				format = binary.LittleEndian.Uint16(body[24:26])
			}
			haveFmt = true
		case "data":
			payload = body
		}

		// Chunks are padded to an even size.
		off += 8 + size + size%2
	}

	if !haveFmt {
		return PCM{}, errors.New("audio: missing fmt chunk")
	}
	if payload == nil {
		return PCM{}, errors.New("audio: missing data chunk")
	}
	if channels <= 0 || rate <= 0 {
		return PCM{}, fmt.Errorf("audio: invalid wav format %d channels at %d Hz", channels, rate)
	}

	pcm, err := toPCM16(payload, format, bits)
	if err != nil {
		return PCM{}, err
	}
	return PCM{Data: pcm, Format: Format{SampleRate: rate, Channels: channels}}, nil
}

// toPCM16 converts raw wav sample data to 16-bit little-endian PCM.
func toPCM16(raw []byte, format uint16, bits int) ([]byte, error) {
	switch {
	case format == wavFormatPCM && bits == 16:
		return raw[:len(raw)&^1], nil

	case format == wavFormatPCM && bits == 8:
		out := make([]byte, len(raw)*2)
		for i, b := range raw {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(int(b)-128)<<8))
		}
		return out, nil

	case format == wavFormatPCM && bits == 24:
		n := len(raw) / 3
		out := make([]byte, n*2)
		for i := range n {
			// Keep the two most significant bytes.
			out[i*2] = raw[i*3+1]
			out[i*2+1] = raw[i*3+2]
		}
		return out, nil

	case format == wavFormatPCM && bits == 32:
		n := len(raw) / 4
		out := make([]byte, n*2)
		for i := range n {
			out[i*2] = raw[i*4+2]
			out[i*2+1] = raw[i*4+3]
		}
		return out, nil

	case format == wavFormatFloat && bits == 32:
		n := len(raw) / 4
		out := make([]byte, n*2)
		for i := range n {
			f := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
			v := math.Max(-1, math.Min(1, float64(f)))
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
		}
		return out, nil
	}
	return nil, fmt.Errorf("audio: unsupported wav encoding (format %d, %d bits)", format, bits)
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func EncodeWAV(p PCM) []byte {
	const bps = 16
	byteRate := p.SampleRate * p.Channels * bps / 8
	blockAlign := p.Channels * bps / 8
	dataSize := len(p.Data)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size - 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                   // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)         // audio format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(p.Channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(p.SampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))     // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))   // block align
	binary.LittleEndian.PutUint16(buf[34:36], bps)                  // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], p.Data)

	return buf
}
