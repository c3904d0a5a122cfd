// Package audio converts between the float sample buffers browsers
// capture and the base64 PCM16 payloads the realtime API accepts.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// Float32ToPCM16 clamps samples to [-1, 1] and converts them to
// little-endian 16-bit PCM.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7fff)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 converts little-endian 16-bit PCM back to float
// samples. A trailing odd byte is dropped.
func PCM16ToFloat32(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 0x8000
		} else {
			out[i] = float32(v) / 0x7fff
		}
	}
	return out
}

// EncodeBase64 wraps PCM bytes for JSON transport.
func EncodeBase64(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeBase64 unwraps a base64 PCM payload.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// DurationMillis reports the playback length of a PCM16 buffer at the
// given sample rate.
func DurationMillis(pcmLen, sampleRate int) int {
	if sampleRate <= 0 {
		return 0
	}
	samples := pcmLen / 2
	return int(math.Round(float64(samples) * 1000 / float64(sampleRate)))
}
