package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/starlinehq/starline/pkg/audio"
)

// DeviceSink is a [Sink] backed by the system's default output device.
// Its clock is the count of samples the device callback has consumed,
// which tracks the hardware position closely enough for scheduling.
type DeviceSink struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	rate   int

	mu         sync.Mutex
	samplesOut int64
	pending    []*deviceUnit
	closed     bool
}

var _ Sink = (*DeviceSink)(nil)

type deviceUnit struct {
	startSample int64
	samples     []float32
	consumed    int

	once sync.Once
	done chan struct{}
}

func (u *deviceUnit) Stop()                 { u.once.Do(func() { close(u.done) }) }
func (u *deviceUnit) Done() <-chan struct{} { return u.done }

func (u *deviceUnit) stopped() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

// OpenDeviceSink opens the default output device at [audio.PlaybackRate]
// mono and starts the render callback.
func OpenDeviceSink() (*DeviceSink, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("playback: init context: %w", err)
	}

	s := &DeviceSink{ctx: ctx, rate: audio.PlaybackRate}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(s.rate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			s.render(out, int(frameCount))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("playback: init device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("playback: start device: %w", err)
	}

	return s, nil
}

// Now returns the output clock as a duration of consumed samples.
func (s *DeviceSink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.samplesOut) * time.Second / time.Duration(s.rate)
}

// Play schedules samples to start at the given clock position. Samples
// at a different rate are linearly resampled to the device rate first.
func (s *DeviceSink) Play(samples []float32, rate int, start time.Duration) (Unit, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("playback: invalid rate %d", rate)
	}
	if rate != s.rate {
		samples = resampleFloats(samples, rate, s.rate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("playback: sink closed")
	}

	u := &deviceUnit{
		startSample: int64(start * time.Duration(s.rate) / time.Second),
		samples:     samples,
		done:        make(chan struct{}),
	}
	s.pending = append(s.pending, u)
	return u, nil
}

// render runs on the audio thread, filling out with pending unit
// samples (silence where nothing is scheduled) and completing units as
// they drain.
func (s *DeviceSink) render(out []byte, frameCount int) {
	var finished []*deviceUnit

	s.mu.Lock()
	for i := range frameCount {
		cur := s.samplesOut + int64(i)
		var v int16

		// Drop stopped and drained units from the head.
		for len(s.pending) > 0 {
			head := s.pending[0]
			if head.stopped() || head.consumed >= len(head.samples) {
				finished = append(finished, head)
				s.pending = s.pending[1:]
				continue
			}
			break
		}

		if len(s.pending) > 0 {
			head := s.pending[0]
			if head.startSample <= cur {
				f := head.samples[head.consumed]
				head.consumed++
				if f > 1 {
					f = 1
				} else if f < -1 {
					f = -1
				}
				if f < 0 {
					v = int16(f * 32768)
				} else {
					v = int16(f * 32767)
				}
			}
		}

		out[i*2] = byte(uint16(v))
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	s.samplesOut += int64(frameCount)
	s.mu.Unlock()

	for _, u := range finished {
		u.Stop()
	}
}

// Close stops the render callback, releases the device, and completes
// all pending units. Idempotent.
func (s *DeviceSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	s.device.Stop()
	s.device.Uninit()
	s.ctx.Uninit()
	s.ctx.Free()

	for _, u := range pending {
		u.Stop()
	}
	return nil
}

// resampleFloats linearly resamples mono float samples between rates.
func resampleFloats(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(in) < 2 {
		return in
	}
	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		s0 := in[idx]
		s1 := s0
		if idx+1 < len(in) {
			s1 = in[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}
