// Package capture turns a live microphone input into a continuous
// stream of fixed-size outward PCM frames.
//
// The two implementations are [Mic], backed by a real input device via
// malgo, and [Fake], a scripted source for tests. Both emit frames from
// an audio-callback goroutine independent of the caller's goroutine, so
// consumers must treat the frame channel as fully concurrent with their
// own control flow.
package capture

import (
	"fmt"

	"github.com/starlinehq/starline/pkg/audio"
)

// DefaultFrameSamples is the number of 16 kHz samples per emitted frame
// (256 ms). Small enough to keep end-to-end latency in the 100–250 ms
// band once network transit is included; callers can configure smaller
// frames via [Config.FrameSamples].
const DefaultFrameSamples = 4096

// Config describes how to open a capture source.
type Config struct {
	// FrameSamples is the fixed frame size in samples at
	// [audio.CaptureRate]. Zero selects [DefaultFrameSamples].
	FrameSamples int

	// DeviceRate is the sample rate the hardware device is opened at.
	// Zero selects [audio.CaptureRate] directly. Some drivers produce
	// cleaner audio at their native rate; frames are resampled to
	// [audio.CaptureRate] before emission either way.
	DeviceRate int

	// EchoCancellation and NoiseSuppression request the corresponding
	// backend processing where the platform supports it. Best effort:
	// the malgo-backed [Mic] has no such processing and ignores both;
	// they exist for sources whose backend does (browser capture).
	EchoCancellation bool
	NoiseSuppression bool
}

func (c Config) frameSamples() int {
	if c.FrameSamples > 0 {
		return c.FrameSamples
	}
	return DefaultFrameSamples
}

func (c Config) deviceRate() int {
	if c.DeviceRate > 0 {
		return c.DeviceRate
	}
	return audio.CaptureRate
}

// Source is a running capture pipeline.
//
// Frames flow at a steady cadence regardless of mute state: muting
// replaces samples with silence at the source rather than pausing the
// pipeline, which keeps the clock relationship with the remote session
// stable.
type Source interface {
	// Frames returns the channel on which fixed-size outward frames
	// arrive. The channel is closed when the source is closed.
	Frames() <-chan audio.Frame

	// SetMuted enables or disables the input. While muted, frames keep
	// flowing but carry silence.
	SetMuted(muted bool)

	// Muted reports the current mute state.
	Muted() bool

	// Close stops the device callback, releases the input device, and
	// closes the frame channel, in that order. Idempotent.
	Close() error
}

// UnavailableError reports a failure to acquire the input device.
// PermissionDenied distinguishes an access refusal from other device
// failures so the UI can show a targeted message.
type UnavailableError struct {
	PermissionDenied bool
	Err              error
}

func (e *UnavailableError) Error() string {
	if e.PermissionDenied {
		return fmt.Sprintf("capture: microphone permission denied: %v", e.Err)
	}
	return fmt.Sprintf("capture: microphone unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
