package audio_test

import (
	"testing"

	"github.com/starlinehq/starline/pkg/audio"
)

// TestResampleMono16_SameRate verifies the identity fast path.
func TestResampleMono16_SameRate(t *testing.T) {
	t.Parallel()

	in := []byte{1, 2, 3, 4}
	out := audio.ResampleMono16(in, 16000, 16000)
	if &out[0] != &in[0] {
		t.Error("same-rate resample should return the input unchanged")
	}
}

// TestResampleMono16_Downsample verifies 48 kHz → 16 kHz produces one
// third of the samples.
func TestResampleMono16_Downsample(t *testing.T) {
	t.Parallel()

	in := make([]byte, 480*2)
	out := audio.ResampleMono16(in, 48000, 16000)
	if len(out) != 160*2 {
		t.Errorf("output = %d bytes, want %d", len(out), 160*2)
	}
}

// TestResampleMono16_Upsample verifies interpolated values land between
// their neighbours.
func TestResampleMono16_Upsample(t *testing.T) {
	t.Parallel()

	// Two samples: 0 and 1000.
	in := []byte{0, 0, 0xe8, 0x03}
	out := audio.ResampleMono16(in, 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("output = %d bytes, want 8", len(out))
	}
	mid := int16(out[2]) | int16(out[3])<<8
	if mid < 0 || mid > 1000 {
		t.Errorf("interpolated sample = %d, want within [0, 1000]", mid)
	}
}

// TestResampleMono16_InvalidRates verifies degenerate rates pass the
// input through.
func TestResampleMono16_InvalidRates(t *testing.T) {
	t.Parallel()

	in := []byte{9, 9}
	if out := audio.ResampleMono16(in, 0, 16000); &out[0] != &in[0] {
		t.Error("zero source rate should be a pass-through")
	}
	if out := audio.ResampleMono16(in, 16000, -1); &out[0] != &in[0] {
		t.Error("negative target rate should be a pass-through")
	}
}
