package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Format constants for the dictation wire format: little-endian 16-bit PCM,
// mono, 16 kHz. Clients chunk audio into fixed-size buffers before transport.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BytesPerMs    = SampleRate * 2 / 1000
)

// DecodeChunk decodes a base64-encoded PCM-16 chunk into raw bytes.
func DecodeChunk(data string) ([]byte, error) {
	if data == "" {
		return nil, fmt.Errorf("empty audio chunk")
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio data: %w", err)
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("decoded audio chunk is empty")
	}

	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("audio data length must be even (got %d bytes)", len(raw))
	}

	return raw, nil
}

// BytesToSamples converts raw little-endian PCM-16 bytes to int16 samples.
func BytesToSamples(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

// SamplesToBytes converts int16 samples back to little-endian PCM-16 bytes.
func SamplesToBytes(samples []int16) []byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	return raw
}

// RMS computes the root mean square loudness of raw PCM-16 bytes on the
// int16 scale (0..32767). Odd trailing bytes are ignored.
func RMS(raw []byte) float64 {
	n := len(raw) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(raw[i*2:])))
		sum += s * s
	}

	return math.Sqrt(sum / float64(n))
}

// Duration returns the playback duration of raw PCM-16 bytes at the
// dictation sample rate.
func Duration(byteLen int) time.Duration {
	samples := byteLen / 2
	return time.Duration(samples) * time.Second / SampleRate
}

// DurationMs returns the playback duration of raw PCM-16 bytes in whole
// milliseconds.
func DurationMs(byteLen int) int64 {
	return int64(Duration(byteLen) / time.Millisecond)
}
