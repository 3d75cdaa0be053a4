package capture

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/starlinehq/starline/pkg/audio"
)

// frameChannelDepth bounds the number of unread frames before the
// device callback starts dropping. A slow consumer must never block the
// audio thread.
const frameChannelDepth = 16

// Mic is a [Source] backed by the system's default input device.
type Mic struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	frames chan audio.Frame

	mu        sync.Mutex
	muted     bool
	closed    bool
	remainder []byte // device-rate PCM carried between callbacks
}

var _ Source = (*Mic)(nil)

// OpenMic acquires the default input device as a mono PCM stream and
// starts the capture callback. The returned Mic emits frames of
// cfg.FrameSamples samples at [audio.CaptureRate] until closed.
func OpenMic(cfg Config) (*Mic, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	m := &Mic{
		ctx:    ctx,
		frames: make(chan audio.Frame, frameChannelDepth),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.deviceRate())

	frameBytes := cfg.frameSamples() * 2
	deviceRate := cfg.deviceRate()

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			m.onData(data, deviceRate, frameBytes)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, wrapUnavailable(err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, wrapUnavailable(err)
	}

	return m, nil
}

// onData runs on the audio thread. It resamples device-rate PCM to the
// capture rate, accumulates it, and emits complete fixed-size frames.
func (m *Mic) onData(data []byte, deviceRate, frameBytes int) {
	pcm := audio.ResampleMono16(data, deviceRate, audio.CaptureRate)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.muted {
		// Silence at the source; cadence is preserved.
		pcm = make([]byte, len(pcm))
	}
	m.remainder = append(m.remainder, pcm...)

	var ready [][]byte
	for len(m.remainder) >= frameBytes {
		frame := make([]byte, frameBytes)
		copy(frame, m.remainder[:frameBytes])
		m.remainder = m.remainder[frameBytes:]
		ready = append(ready, frame)
	}
	m.mu.Unlock()

	for _, data := range ready {
		select {
		case m.frames <- audio.Frame{Data: data, Rate: audio.CaptureRate}:
		default:
			slog.Warn("capture: frame channel full, dropping frame")
		}
	}
}

// Frames returns the outward frame channel.
func (m *Mic) Frames() <-chan audio.Frame { return m.frames }

// SetMuted enables or disables the input without pausing the pipeline.
func (m *Mic) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

// Muted reports the current mute state.
func (m *Mic) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// Close stops the device callback before releasing the device context,
// so no callback can fire against torn-down state. Idempotent.
func (m *Mic) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.device.Stop()
	m.device.Uninit()
	m.ctx.Uninit()
	m.ctx.Free()
	close(m.frames)
	return nil
}

// wrapUnavailable classifies a device acquisition failure. malgo does
// not expose a structured permission error, so refusals are detected by
// message signature.
func wrapUnavailable(err error) *UnavailableError {
	msg := strings.ToLower(err.Error())
	denied := strings.Contains(msg, "permission") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "not permitted")
	return &UnavailableError{PermissionDenied: denied, Err: err}
}
