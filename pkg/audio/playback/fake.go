package playback

import (
	"fmt"
	"sync"
	"time"
)

// FakeSink is a [Sink] driven by a virtual clock for tests. Units
// complete when the clock is advanced past their end time, or when
// stopped explicitly.
type FakeSink struct {
	mu       sync.Mutex
	now      time.Duration
	units    []*FakeUnit
	failNext bool
	closed   bool
}

var _ Sink = (*FakeSink)(nil)

// FakeUnit records one scheduled unit and its computed window.
type FakeUnit struct {
	Start time.Duration
	End   time.Duration

	once sync.Once
	done chan struct{}
}

// Stop closes the unit's done channel. Safe to call repeatedly.
func (u *FakeUnit) Stop() {
	u.once.Do(func() { close(u.done) })
}

// Done is closed when the unit completes or is stopped.
func (u *FakeUnit) Done() <-chan struct{} { return u.done }

// Stopped reports whether the unit's done channel has been closed.
func (u *FakeUnit) Stopped() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

// NewFakeSink creates a FakeSink with the clock at zero.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// Now returns the virtual clock position.
func (f *FakeSink) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Play records a unit covering [start, start+duration).
func (f *FakeSink) Play(samples []float32, rate int, start time.Duration) (Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fmt.Errorf("fake sink: closed")
	}
	if f.failNext {
		f.failNext = false
		return nil, fmt.Errorf("fake sink: scheduled failure")
	}
	if rate <= 0 {
		return nil, fmt.Errorf("fake sink: invalid rate %d", rate)
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(rate)
	u := &FakeUnit{
		Start: start,
		End:   start + duration,
		done:  make(chan struct{}),
	}
	f.units = append(f.units, u)
	return u, nil
}

// Advance moves the virtual clock forward and completes every unit
// whose window has fully elapsed.
func (f *FakeSink) Advance(d time.Duration) {
	f.mu.Lock()
	f.now += d
	var finished []*FakeUnit
	for _, u := range f.units {
		if u.End <= f.now {
			finished = append(finished, u)
		}
	}
	f.mu.Unlock()

	for _, u := range finished {
		u.Stop()
	}
}

// Scheduled returns every unit ever passed to Play, in scheduling order.
func (f *FakeSink) Scheduled() []*FakeUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeUnit, len(f.units))
	copy(out, f.units)
	return out
}

// FailNext makes the next Play call return an error.
func (f *FakeSink) FailNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = true
}

// Close marks the sink closed and stops all units. Idempotent.
func (f *FakeSink) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	units := make([]*FakeUnit, len(f.units))
	copy(units, f.units)
	f.mu.Unlock()

	for _, u := range units {
		u.Stop()
	}
	return nil
}
