package audio

import "testing"

func TestPayloadDecodePaths(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.25}

	tests := []struct {
		name    string
		payload Payload
	}{
		{"pcm16", Payload{Format: FormatPCM16, Data: EncodePCM16(samples)}},
		{"float32", Payload{Format: FormatFloat32, Data: EncodeFloat32(samples)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.payload.Valid() {
				t.Fatal("payload should be valid")
			}
			if got := tt.payload.SampleCount(); got != len(samples) {
				t.Errorf("expected %d samples, got %d", len(samples), got)
			}
			decoded, err := tt.payload.Samples()
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if len(decoded) != len(samples) {
				t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
			}
		})
	}
}

func TestPayloadUnknownFormat(t *testing.T) {
	p := Payload{Format: "opus", Data: []byte{1, 2, 3, 4}}
	if p.Valid() {
		t.Error("unknown format should not be valid")
	}
	if _, err := p.Samples(); err == nil {
		t.Error("expected decode error for unknown format")
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.123456, -0.98765}
	out, err := DecodeFloat32(EncodeFloat32(in))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: %v -> %v, want bit-exact", i, in[i], out[i])
		}
	}
}

func TestDecodeFloat32BadLength(t *testing.T) {
	if _, err := DecodeFloat32([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for misaligned payload")
	}
}

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		in       []float32
		channels int
		want     []float32
	}{
		{"mono passthrough", []float32{0.1, 0.2}, 1, []float32{0.1, 0.2}},
		{"stereo average", []float32{1, 0, 0.5, 0.5}, 2, []float32{0.5, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downmix(tt.in, tt.channels)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d samples, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
