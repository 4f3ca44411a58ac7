package audio

import (
	"encoding/base64"
	"math"
	"testing"
	"time"
)

func TestDecodeChunk(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xFF, 0x7F}
	encoded := base64.StdEncoding.EncodeToString(raw)

	decoded, err := DecodeChunk(encoded)
	if err != nil {
		t.Fatalf("DecodeChunk failed: %v", err)
	}

	if len(decoded) != len(raw) {
		t.Errorf("Expected %d bytes, got %d", len(raw), len(decoded))
	}

	for i := range raw {
		if decoded[i] != raw[i] {
			t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, raw[i], decoded[i])
		}
	}
}

func TestDecodeChunkErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"invalid base64", "not!!!base64"},
		{"odd length", base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeChunk(tt.data); err == nil {
				t.Errorf("Expected error for %s input", tt.name)
			}
		})
	}
}

func TestSampleRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}

	raw := SamplesToBytes(samples)
	back := BytesToSamples(raw)

	if len(back) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(back))
	}

	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
}

func TestRMS(t *testing.T) {
	// Constant amplitude signal has RMS equal to that amplitude.
	samples := make([]int16, 1000)
	for i := range samples {
		samples[i] = 1000
	}

	rms := RMS(SamplesToBytes(samples))
	if math.Abs(rms-1000) > 0.001 {
		t.Errorf("Expected RMS 1000, got %f", rms)
	}
}

func TestRMSSilence(t *testing.T) {
	samples := make([]int16, 1000)

	rms := RMS(SamplesToBytes(samples))
	if rms != 0 {
		t.Errorf("Expected RMS 0 for silence, got %f", rms)
	}
}

func TestRMSEmpty(t *testing.T) {
	if rms := RMS(nil); rms != 0 {
		t.Errorf("Expected RMS 0 for empty input, got %f", rms)
	}
}

func TestRMSSine(t *testing.T) {
	// A sine wave of amplitude A has RMS A/sqrt(2).
	const amplitude = 10000
	samples := make([]int16, SampleRate)
	for i := range samples {
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}

	rms := RMS(SamplesToBytes(samples))
	expected := amplitude / math.Sqrt2
	if math.Abs(rms-expected) > amplitude*0.01 {
		t.Errorf("Expected RMS ~%f, got %f", expected, rms)
	}
}

func TestDuration(t *testing.T) {
	// One second of 16kHz PCM-16 is 32000 bytes.
	if d := Duration(32000); d != time.Second {
		t.Errorf("Expected 1s, got %v", d)
	}

	if ms := DurationMs(8000); ms != 250 {
		t.Errorf("Expected 250ms, got %d", ms)
	}
}
