package playback_test

import (
	"sync"
	"testing"
	"time"

	"github.com/starlinehq/starline/pkg/audio"
	"github.com/starlinehq/starline/pkg/audio/playback"
)

// frame builds an inward frame of n samples at the playback rate.
func frame(n int) audio.Frame {
	return audio.Frame{Data: make([]byte, n*2), Rate: audio.PlaybackRate}
}

// speakingRecorder collects speaking transitions in order.
type speakingRecorder struct {
	mu  sync.Mutex
	log []bool
}

func (r *speakingRecorder) record(speaking bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, speaking)
}

func (r *speakingRecorder) transitions() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.log))
	copy(out, r.log)
	return out
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

// TestScheduler_BackToBack verifies start times are non-decreasing and
// consecutive units never overlap, even when frames arrive in a burst.
func TestScheduler_BackToBack(t *testing.T) {
	t.Parallel()
	sink := playback.NewFakeSink()
	s := playback.NewScheduler(sink)
	defer s.Close()

	for range 5 {
		s.Enqueue(frame(2400)) // 100 ms each
	}

	units := sink.Scheduled()
	if len(units) != 5 {
		t.Fatalf("scheduled %d units, want 5", len(units))
	}
	for i := 1; i < len(units); i++ {
		if units[i].Start < units[i-1].Start {
			t.Errorf("unit %d starts at %v, before unit %d at %v",
				i, units[i].Start, i-1, units[i-1].Start)
		}
		if units[i].Start < units[i-1].End {
			t.Errorf("unit %d overlaps previous: start %v < previous end %v",
				i, units[i].Start, units[i-1].End)
		}
	}
}

// TestScheduler_UnderrunResync verifies the cursor snaps to "now" when
// playback has fallen behind the output clock.
func TestScheduler_UnderrunResync(t *testing.T) {
	t.Parallel()
	sink := playback.NewFakeSink()
	s := playback.NewScheduler(sink)
	defer s.Close()

	s.Enqueue(frame(2400)) // covers [0ms, 100ms)
	sink.Advance(500 * time.Millisecond)
	s.Enqueue(frame(2400))

	units := sink.Scheduled()
	if got, want := units[1].Start, 500*time.Millisecond; got != want {
		t.Errorf("post-underrun start = %v, want %v (clock now)", got, want)
	}
}

// TestScheduler_Interrupt verifies barge-in stops every pending unit,
// empties the active set, and resets the cursor so the next frame
// starts immediately.
func TestScheduler_Interrupt(t *testing.T) {
	t.Parallel()
	sink := playback.NewFakeSink()
	s := playback.NewScheduler(sink)
	defer s.Close()

	for range 3 {
		s.Enqueue(frame(2400))
	}
	if !s.Speaking() {
		t.Fatal("Speaking = false with three pending units")
	}

	s.Interrupt()

	waitFor(t, func() bool { return !s.Speaking() })
	for i, u := range sink.Scheduled() {
		if !u.Stopped() {
			t.Errorf("unit %d still running after interrupt", i)
		}
	}

	// Cursor reset: next frame starts at the clock, not after unit C's
	// would-have-been end (300 ms).
	sink.Advance(10 * time.Millisecond)
	s.Enqueue(frame(2400))
	units := sink.Scheduled()
	last := units[len(units)-1]
	if got, want := last.Start, 10*time.Millisecond; got != want {
		t.Errorf("post-interrupt start = %v, want %v", got, want)
	}
}

// TestScheduler_SpeakingMonotonicOnBursts verifies speaking drops only
// when the whole burst finishes, not between consecutive units.
func TestScheduler_SpeakingMonotonicOnBursts(t *testing.T) {
	t.Parallel()
	rec := &speakingRecorder{}
	sink := playback.NewFakeSink()
	s := playback.NewScheduler(sink, playback.WithSpeakingFunc(rec.record))
	defer s.Close()

	s.Enqueue(frame(2400))
	s.Enqueue(frame(2400))
	s.Enqueue(frame(2400))

	// Finish the first unit only: speaking must stay raised.
	sink.Advance(150 * time.Millisecond)
	waitFor(t, func() bool { return sink.Scheduled()[0].Stopped() })
	if !s.Speaking() {
		t.Fatal("Speaking dropped between units of one burst")
	}

	// Finish the rest.
	sink.Advance(200 * time.Millisecond)
	waitFor(t, func() bool { return !s.Speaking() })

	if got := rec.transitions(); len(got) != 2 || !got[0] || got[1] {
		t.Errorf("speaking transitions = %v, want [true false]", got)
	}
}

// TestScheduler_BadFrameDropped verifies a scheduling failure drops one
// frame without poisoning the ones after it.
func TestScheduler_BadFrameDropped(t *testing.T) {
	t.Parallel()
	sink := playback.NewFakeSink()
	s := playback.NewScheduler(sink)
	defer s.Close()

	sink.FailNext()
	s.Enqueue(frame(2400))
	if s.Speaking() {
		t.Error("Speaking raised for a dropped frame")
	}

	s.Enqueue(frame(2400))
	if !s.Speaking() {
		t.Error("frame after a dropped one was not scheduled")
	}
	if got := len(sink.Scheduled()); got != 1 {
		t.Errorf("scheduled units = %d, want 1", got)
	}
}

// TestScheduler_EmptyFrameIgnored verifies zero-sample frames are a
// no-op.
func TestScheduler_EmptyFrameIgnored(t *testing.T) {
	t.Parallel()
	sink := playback.NewFakeSink()
	s := playback.NewScheduler(sink)
	defer s.Close()

	s.Enqueue(audio.Frame{Rate: audio.PlaybackRate})
	if got := len(sink.Scheduled()); got != 0 {
		t.Errorf("scheduled units = %d, want 0", got)
	}
}

// TestScheduler_CloseIdempotent verifies repeated Close calls are safe
// and enqueueing after Close does nothing.
func TestScheduler_CloseIdempotent(t *testing.T) {
	t.Parallel()
	sink := playback.NewFakeSink()
	s := playback.NewScheduler(sink)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	s.Enqueue(frame(2400))
	if got := len(sink.Scheduled()); got != 0 {
		t.Errorf("scheduled after Close = %d, want 0", got)
	}
}
