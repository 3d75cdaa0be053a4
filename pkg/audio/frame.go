// Package audio provides the PCM sample codec, transport text encoding,
// and frame types shared by the capture and playback pipelines.
//
// All audio in Starline is mono 16-bit little-endian PCM. Microphone
// capture runs at [CaptureRate]; synthesised speech from the model
// arrives at [PlaybackRate].
package audio

import "time"

const (
	// CaptureRate is the sample rate of outward microphone audio in Hz.
	CaptureRate = 16000

	// PlaybackRate is the sample rate of inward synthesised audio in Hz.
	PlaybackRate = 24000
)

// Frame is a chunk of mono 16-bit little-endian PCM in transit between
// the capture pipeline, the transport, and the playback scheduler.
// Frames have no identity; they are values passed by copy.
type Frame struct {
	// Data is the raw PCM payload (2 bytes per sample).
	Data []byte

	// Rate is the sample rate in Hz.
	Rate int
}

// Samples returns the number of complete 16-bit samples in the frame.
func (f Frame) Samples() int {
	return len(f.Data) / 2
}

// Duration returns the playback duration of the frame at its sample rate.
// Returns zero for an empty frame or an unset rate.
func (f Frame) Duration() time.Duration {
	if f.Rate <= 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.Rate)
}
