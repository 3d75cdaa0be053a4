// Package playback renders inward PCM frames gaplessly, in arrival
// order, with support for immediate interruption on barge-in.
//
// The [Scheduler] owns the ordering contract: each frame is scheduled
// on a [Sink] to start at max(cursor, now) and the cursor advances by
// the frame's duration, so bursts of frames play strictly back to back
// and an underrun resynchronises to the output clock instead of
// drifting. The [Sink] abstraction keeps the scheduler testable without
// an output device; [DeviceSink] adapts real hardware.
package playback

import "time"

// Unit is a single scheduled-but-not-necessarily-finished stretch of
// output audio.
type Unit interface {
	// Stop cancels the unit immediately. Stopping a finished unit is a
	// no-op. Done is closed either way.
	Stop()

	// Done is closed when the unit finishes playing or is stopped.
	Done() <-chan struct{}
}

// Sink is an output device abstraction with a monotonic clock.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Now returns the current position of the output clock.
	Now() time.Duration

	// Play schedules mono float samples at the given rate to start at
	// start on the output clock. The samples must be fully rendered
	// before the returned unit's Done channel closes.
	Play(samples []float32, rate int, start time.Duration) (Unit, error)

	// Close releases the output device. Active units are stopped.
	// Idempotent.
	Close() error
}
