package capture_test

import (
	"testing"

	"github.com/starlinehq/starline/pkg/audio"
	"github.com/starlinehq/starline/pkg/audio/capture"
)

// TestFake_PushDeliversFrames verifies pushed PCM arrives as capture-rate
// frames in order.
func TestFake_PushDeliversFrames(t *testing.T) {
	t.Parallel()
	f := capture.NewFake(4)
	defer f.Close()

	f.Push([]byte{1, 2})
	f.Push([]byte{3, 4})

	got := <-f.Frames()
	if got.Rate != audio.CaptureRate {
		t.Errorf("frame rate = %d, want %d", got.Rate, audio.CaptureRate)
	}
	if got.Data[0] != 1 {
		t.Errorf("frames out of order: first byte = %d, want 1", got.Data[0])
	}
	got = <-f.Frames()
	if got.Data[0] != 3 {
		t.Errorf("frames out of order: first byte = %d, want 3", got.Data[0])
	}
}

// TestFake_MuteKeepsCadence verifies muting silences payloads without
// stopping frame flow.
func TestFake_MuteKeepsCadence(t *testing.T) {
	t.Parallel()
	f := capture.NewFake(4)
	defer f.Close()

	f.SetMuted(true)
	if !f.Muted() {
		t.Fatal("Muted = false after SetMuted(true)")
	}
	if ok := f.Push([]byte{9, 9, 9, 9}); !ok {
		t.Fatal("Push while muted should still emit a frame")
	}

	got := <-f.Frames()
	if len(got.Data) != 4 {
		t.Fatalf("muted frame length = %d, want 4", len(got.Data))
	}
	for i, b := range got.Data {
		if b != 0 {
			t.Errorf("muted frame byte %d = %d, want silence", i, b)
		}
	}
}

// TestFake_DropWhenFull verifies a full channel drops instead of
// blocking the push path.
func TestFake_DropWhenFull(t *testing.T) {
	t.Parallel()
	f := capture.NewFake(1)
	defer f.Close()

	if !f.Push([]byte{1, 1}) {
		t.Fatal("first push should succeed")
	}
	if f.Push([]byte{2, 2}) {
		t.Error("second push should drop when the channel is full")
	}
}

// TestFake_CloseIdempotent verifies Close can be called repeatedly and
// pushes after close are rejected.
func TestFake_CloseIdempotent(t *testing.T) {
	t.Parallel()
	f := capture.NewFake(1)

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if f.Push([]byte{1, 1}) {
		t.Error("Push after Close should report failure")
	}
	if _, ok := <-f.Frames(); ok {
		t.Error("frame channel should be closed")
	}
}
