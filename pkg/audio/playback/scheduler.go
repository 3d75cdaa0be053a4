package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/starlinehq/starline/pkg/audio"
)

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithSpeakingFunc registers a callback invoked whenever the speaking
// state flips: true when the first unit of a burst starts, false only
// when the active set empties. The callback runs with the scheduler's
// lock held so transitions are delivered in order; it must be fast and
// must not call back into the Scheduler.
func WithSpeakingFunc(fn func(speaking bool)) Option {
	return func(s *Scheduler) { s.onSpeaking = fn }
}

// Scheduler renders inward frames on a [Sink] gaplessly and in arrival
// order. All exported methods are safe for concurrent use.
type Scheduler struct {
	sink       Sink
	onSpeaking func(bool)

	mu     sync.Mutex
	cursor time.Duration
	active map[Unit]struct{}
	closed bool
}

// NewScheduler creates a Scheduler targeting the given sink.
func NewScheduler(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:   sink,
		active: make(map[Unit]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue decodes one inward frame and schedules it to start at
// max(cursor, now), advancing the cursor past its end. A decode or
// scheduling failure drops the frame and logs it; one bad frame never
// affects the session or subsequent frames.
func (s *Scheduler) Enqueue(frame audio.Frame) {
	samples := audio.PCM16ToFloats(frame.Data)
	if len(samples) == 0 {
		return
	}
	duration := frame.Duration()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	start := s.cursor
	if now := s.sink.Now(); now > start {
		// Underrun: resync to the output clock instead of scheduling
		// in the past.
		start = now
	}

	unit, err := s.sink.Play(samples, frame.Rate, start)
	if err != nil {
		slog.Warn("playback: scheduling failed, frame dropped", "err", err)
		return
	}

	s.cursor = start + duration
	if len(s.active) == 0 && s.onSpeaking != nil {
		s.onSpeaking(true)
	}
	s.active[unit] = struct{}{}

	go s.watch(unit)
}

// watch removes the unit from the active set once it finishes and
// lowers the speaking state when the set empties.
func (s *Scheduler) watch(unit Unit) {
	<-unit.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[unit]; !ok {
		// Already removed by Interrupt or Close; those paths own the
		// speaking transition.
		return
	}
	delete(s.active, unit)
	if len(s.active) == 0 && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
}

// Interrupt stops every active unit, clears the set, and resets the
// cursor to the current output clock so the next frame starts at "now"
// rather than after the cancelled audio's would-have-been end.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	stopped := make([]Unit, 0, len(s.active))
	for u := range s.active {
		stopped = append(stopped, u)
	}
	s.active = make(map[Unit]struct{})
	s.cursor = s.sink.Now()
	if len(stopped) > 0 && !s.closed && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
	s.mu.Unlock()

	for _, u := range stopped {
		u.Stop()
	}
}

// Speaking reports whether at least one scheduled unit is currently
// audible or pending.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Close interrupts all playback and marks the scheduler unusable.
// The sink is not closed; its lifetime belongs to the caller.
// Idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Interrupt()
	return nil
}
