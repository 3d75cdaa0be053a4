package capture

import (
	"sync"

	"github.com/starlinehq/starline/pkg/audio"
)

// Fake is a scripted [Source] for tests. Frames are emitted on demand
// via [Fake.Push] rather than on a hardware cadence, so tests control
// exactly when the "audio thread" fires.
type Fake struct {
	frames chan audio.Frame

	mu     sync.Mutex
	muted  bool
	closed bool
}

var _ Source = (*Fake)(nil)

// NewFake creates a Fake source with room for depth unread frames.
func NewFake(depth int) *Fake {
	if depth <= 0 {
		depth = frameChannelDepth
	}
	return &Fake{frames: make(chan audio.Frame, depth)}
}

// Push emits one outward frame carrying the given PCM, simulating a
// device callback. While muted the payload is replaced with silence of
// the same length, matching the real source's behaviour. Returns false
// if the source is closed or the channel is full (frame dropped).
func (f *Fake) Push(pcm []byte) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	if f.muted {
		pcm = make([]byte, len(pcm))
	}
	f.mu.Unlock()

	select {
	case f.frames <- audio.Frame{Data: pcm, Rate: audio.CaptureRate}:
		return true
	default:
		return false
	}
}

// Frames returns the outward frame channel.
func (f *Fake) Frames() <-chan audio.Frame { return f.frames }

// SetMuted enables or disables the input.
func (f *Fake) SetMuted(muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
}

// Muted reports the current mute state.
func (f *Fake) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

// Close closes the frame channel. Idempotent.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.frames)
	return nil
}
