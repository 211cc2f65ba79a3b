package audio

import (
	"encoding/binary"
	"fmt"
)

// BytesPerSample is the width of one stored PCM sample.
const BytesPerSample = 2

// EncodePCM16 converts normalized float samples to 16-bit signed
// little-endian PCM. Samples are clamped to [-1, 1] first. Negative values
// scale by 32768 and non-negative values by 32767, so -1, 0 and 1 all map to
// exact integer codes.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(v))
	}
	return out
}

// DecodePCM16 is the exact inverse of EncodePCM16: negative codes divide by
// 32768, non-negative by 32767.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("audio: pcm16 payload has odd length %d", len(data))
	}
	out := make([]float32, len(data)/BytesPerSample)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out, nil
}
