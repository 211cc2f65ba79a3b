package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAV holds the decoded contents of a PCM WAV file.
type WAV struct {
	SampleRate int
	Channels   int
	PCM        []byte // 16-bit signed little-endian
}

// EncodeWAV wraps raw 16-bit PCM audio in a WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer

	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	dataSize := len(pcm)
	fileSize := 36 + dataSize

	// WAV header
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(fileSize))
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))            // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))             // PCM format
	binary.Write(&buf, binary.LittleEndian, uint16(channels))      // number of channels
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))    // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))      // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))    // block align
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample)) // bits per sample

	// data chunk
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV parses a PCM WAV file. Only uncompressed 16-bit audio is
// accepted; other encodings are rejected rather than converted.
func DecodeWAV(data []byte) (*WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("audio: not a RIFF/WAVE file")
	}

	var (
		w       WAV
		sawFmt  bool
		sawData bool
	)

	// walk the chunk list; chunks other than fmt/data are skipped
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("audio: wav chunk %q exceeds file size", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("audio: wav fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("audio: unsupported wav format %d (want PCM)", format)
			}
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return nil, fmt.Errorf("audio: unsupported wav bit depth %d (want 16)", bits)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			sawFmt = true
		case "data":
			w.PCM = data[body : body+size]
			sawData = true
		}

		// chunk bodies are word-aligned
		if size%2 == 1 {
			size++
		}
		off = body + size
	}

	if !sawFmt || !sawData {
		return nil, fmt.Errorf("audio: wav missing fmt or data chunk")
	}
	if w.Channels < 1 || w.SampleRate < 1 {
		return nil, fmt.Errorf("audio: wav has invalid format (rate=%d channels=%d)", w.SampleRate, w.Channels)
	}
	if len(w.PCM)%(w.Channels*BytesPerSample) != 0 {
		return nil, fmt.Errorf("audio: wav data size %d not aligned to frame size", len(w.PCM))
	}
	return &w, nil
}
