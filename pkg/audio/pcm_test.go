package audio

import (
	"math"
	"testing"
)

func TestFloat32ToPCM16Clamps(t *testing.T) {
	pcm := Float32ToPCM16([]float32{0, 1, -1, 2, -2})
	if len(pcm) != 10 {
		t.Fatalf("expected 10 bytes, got %d", len(pcm))
	}
	back := PCM16ToFloat32(pcm)
	if back[0] != 0 {
		t.Fatalf("expected silence, got %f", back[0])
	}
	if back[1] != 1 || back[3] != 1 {
		t.Fatalf("expected positive clamp to 1, got %f %f", back[1], back[3])
	}
	if back[2] != -1 || back[4] != -1 {
		t.Fatalf("expected negative clamp to -1, got %f %f", back[2], back[4])
	}
}

func TestRoundTripWithinTolerance(t *testing.T) {
	in := []float32{0.25, -0.5, 0.75, -0.125}
	out := PCM16ToFloat32(Float32ToPCM16(in))
	for i := range in {
		if math.Abs(float64(in[i]-out[i])) > 1e-3 {
			t.Fatalf("sample %d drifted: %f vs %f", i, in[i], out[i])
		}
	}
}

func TestBase64RoundTrip(t *testing.T) {
	pcm := Float32ToPCM16([]float32{0.1, 0.2, 0.3})
	enc := EncodeBase64(pcm)
	dec, err := DecodeBase64(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dec) != len(pcm) {
		t.Fatalf("length mismatch: %d vs %d", len(dec), len(pcm))
	}
}

func TestDurationMillis(t *testing.T) {
	// 24000 samples at 24kHz is one second.
	if got := DurationMillis(48000, 24000); got != 1000 {
		t.Fatalf("expected 1000ms, got %d", got)
	}
	if got := DurationMillis(48000, 0); got != 0 {
		t.Fatalf("expected 0 for zero rate, got %d", got)
	}
}
