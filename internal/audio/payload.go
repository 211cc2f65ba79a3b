package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Format tags a binary audio payload. Every payload entering the system is
// tagged at the boundary and has exactly one decode path per tag.
type Format string

const (
	// FormatPCM16 is 16-bit signed little-endian PCM, the storage format.
	FormatPCM16 Format = "pcm16"
	// FormatFloat32 is IEEE 754 little-endian, used by the websocket ingest.
	FormatFloat32 Format = "float32"
)

// Payload is a tagged binary audio payload.
type Payload struct {
	Format Format
	Data   []byte
}

// Valid reports whether the format tag is known and the data length is a
// whole number of samples.
func (p Payload) Valid() bool {
	switch p.Format {
	case FormatPCM16:
		return len(p.Data)%2 == 0
	case FormatFloat32:
		return len(p.Data)%4 == 0
	}
	return false
}

// SampleCount returns the number of samples the payload holds, 0 for
// unknown tags.
func (p Payload) SampleCount() int {
	switch p.Format {
	case FormatPCM16:
		return len(p.Data) / 2
	case FormatFloat32:
		return len(p.Data) / 4
	}
	return 0
}

// Samples decodes the payload into normalized floats.
func (p Payload) Samples() ([]float32, error) {
	switch p.Format {
	case FormatPCM16:
		return DecodePCM16(p.Data)
	case FormatFloat32:
		return DecodeFloat32(p.Data)
	}
	return nil, fmt.Errorf("audio: unknown payload format %q", p.Format)
}

// DecodeFloat32 decodes little-endian IEEE 754 samples.
func DecodeFloat32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("audio: float32 payload length %d not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// EncodeFloat32 encodes samples as little-endian IEEE 754 bytes.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

// Downmix folds interleaved multi-channel samples to mono by averaging each
// frame. Mono input is returned unchanged.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
