// Package call implements the session state machine at the heart of
// Starline: one active voice call at a time, connecting a microphone
// capture source and a playback scheduler to a live bidirectional
// transport.
//
// The [Manager] enforces the single-active-session rule by fully
// tearing down any prior session before a new connect, and guards every
// asynchronous mutation with a generation token so callbacks from a
// superseded session can never touch current state.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starlinehq/starline/internal/i18n"
	"github.com/starlinehq/starline/internal/observe"
	"github.com/starlinehq/starline/internal/persona"
	"github.com/starlinehq/starline/internal/tier"
	"github.com/starlinehq/starline/pkg/audio"
	"github.com/starlinehq/starline/pkg/audio/capture"
	"github.com/starlinehq/starline/pkg/audio/playback"
	"github.com/starlinehq/starline/pkg/live"
	"github.com/starlinehq/starline/pkg/live/gemini"
)

// ErrSuperseded is returned by Connect when a newer connect or a
// disconnect claimed the manager while this one was still in flight.
var ErrSuperseded = errors.New("call: superseded by a newer connect")

// defaultVoice is used when a persona does not name a prebuilt voice.
const defaultVoice = "Kore"

// defaultReadyTimeout bounds the wait for the backend handshake.
const defaultReadyTimeout = 15 * time.Second

// Snapshot is a value copy of the call state. Transcript is append-only
// in arrival order for the lifetime of a session.
type Snapshot struct {
	Connected  bool     `json:"connected"`
	Connecting bool     `json:"connecting"`
	Speaking   bool     `json:"speaking"`
	Error      string   `json:"error,omitempty"`
	Transcript []string `json:"transcript"`
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Transcript = append([]string(nil), s.Transcript...)
	return out
}

// Config holds the dependencies for a [Manager].
type Config struct {
	// Dialer opens live sessions. Required.
	Dialer live.Dialer

	// APIKey authenticates against the live backend. An empty key makes
	// every Connect fail with the localized missing-credential message.
	APIKey string

	// Model overrides the backend's default model when non-empty.
	Model string

	// Language selects prompt directives, the greet trigger, and error
	// messages.
	Language i18n.Language

	// Capture configures the microphone source.
	Capture capture.Config

	// OpenCapture opens the capture source. Defaults to [capture.OpenMic].
	OpenCapture func(capture.Config) (capture.Source, error)

	// NewSink opens the playback sink. Defaults to
	// [playback.OpenDeviceSink].
	NewSink func() (playback.Sink, error)

	// Metrics receives call instrumentation. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// ReadyTimeout bounds the backend handshake wait. Zero selects a
	// 15 s default.
	ReadyTimeout time.Duration
}

// Manager owns the one active call. All exported methods are safe for
// concurrent use.
type Manager struct {
	dialer       live.Dialer
	openCapture  func(capture.Config) (capture.Source, error)
	newSink      func() (playback.Sink, error)
	apiKey       string
	model        string
	lang         i18n.Language
	captureCfg   capture.Config
	metrics      *observe.Metrics
	readyTimeout time.Duration

	mu           sync.Mutex
	gen          uint64
	genDone      chan struct{}
	res          *resources
	snap         Snapshot
	seq          uint64
	startedAt    time.Time
	activeMetric bool

	subMu     sync.Mutex
	subs      []func(Snapshot)
	delivered uint64
}

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("call: dialer is required")
	}
	if cfg.OpenCapture == nil {
		cfg.OpenCapture = func(c capture.Config) (capture.Source, error) {
			return capture.OpenMic(c)
		}
	}
	if cfg.NewSink == nil {
		cfg.NewSink = func() (playback.Sink, error) {
			return playback.OpenDeviceSink()
		}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	return &Manager{
		dialer:       cfg.Dialer,
		openCapture:  cfg.OpenCapture,
		newSink:      cfg.NewSink,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		lang:         cfg.Language,
		captureCfg:   cfg.Capture,
		metrics:      cfg.Metrics,
		readyTimeout: cfg.ReadyTimeout,
	}, nil
}

// Connect opens a call with the given personas. Any prior session is
// fully torn down first. Blocks through the tier queue delay and the
// backend handshake; on success the snapshot reads connected and the
// model has been prompted to greet the caller.
func (m *Manager) Connect(ctx context.Context, personas []persona.Persona, t tier.Tier) error {
	if len(personas) == 0 {
		return fmt.Errorf("call: at least one persona is required")
	}
	if m.apiKey == "" {
		m.publish(m.swap(Snapshot{Error: i18n.Message(m.lang, i18n.KeyMissingCredential)}))
		return fmt.Errorf("call: missing API key")
	}

	// Claim a new generation, superseding everything in flight.
	m.mu.Lock()
	m.gen++
	gen := m.gen
	if m.genDone != nil {
		close(m.genDone)
	}
	genDone := make(chan struct{})
	m.genDone = genDone
	old := m.res
	m.res = nil
	m.endedLocked()
	m.snap = Snapshot{Connecting: true}
	seq, snap := m.stampLocked()
	m.mu.Unlock()
	m.publish(seq, snap)
	old.teardown()

	caps := tier.Policy(t)
	if caps.PreConnectDelay > 0 {
		timer := time.NewTimer(caps.PreConnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.reset(gen)
			return ctx.Err()
		case <-genDone:
			timer.Stop()
			return ErrSuperseded
		case <-timer.C:
		}
	}

	prompt := buildPrompt(personas, m.lang, caps)
	voice := personas[0].Voice
	if voice == "" {
		voice = defaultVoice
	}

	dialStart := time.Now()

	src, err := m.openCapture(m.captureCfg)
	if err != nil {
		m.fail(gen, err)
		return err
	}

	sink, err := m.newSink()
	if err != nil {
		_ = src.Close()
		m.fail(gen, err)
		return err
	}

	res := &resources{src: src, sink: sink, stop: make(chan struct{})}
	res.sched = playback.NewScheduler(sink, playback.WithSpeakingFunc(func(speaking bool) {
		m.update(gen, func(s *Snapshot) { s.Speaking = speaking })
	}))

	sess, err := m.dialer.Dial(ctx, live.Config{
		APIKey:            m.apiKey,
		Model:             m.model,
		Voice:             voice,
		SystemInstruction: prompt,
	})
	if err != nil {
		res.teardown()
		m.fail(gen, err)
		return err
	}
	res.sess = sess

	if err := waitReady(ctx, sess, m.readyTimeout); err != nil {
		res.teardown()
		m.fail(gen, err)
		return err
	}
	m.metrics.ConnectDuration.Record(ctx, time.Since(dialStart).Seconds())

	// The model speaks first: inject the synthetic opening turn.
	if err := sess.SendText(i18n.GreetTrigger(m.lang)); err != nil {
		res.teardown()
		m.fail(gen, err)
		return err
	}

	// Install the session unless a newer connect claimed the manager
	// while we were dialing.
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		res.teardown()
		return ErrSuperseded
	}
	m.res = res
	m.startedAt = time.Now()
	m.activeMetric = true
	m.snap = Snapshot{Connected: true}
	seq, snap = m.stampLocked()
	m.mu.Unlock()
	m.metrics.ActiveCalls.Add(ctx, 1)
	m.metrics.RecordCallStarted(ctx, string(personas[0].Category), string(t))
	m.publish(seq, snap)

	go m.pumpCapture(res)
	go m.pumpEvents(gen, res)

	slog.Info("call connected", "personas", len(personas), "tier", t, "lang", m.lang)
	return nil
}

// Disconnect ends the active call, if any. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.genDone != nil {
		close(m.genDone)
		m.genDone = nil
	}
	res := m.res
	m.res = nil
	m.endedLocked()
	m.snap = Snapshot{}
	seq, snap := m.stampLocked()
	m.mu.Unlock()
	m.publish(seq, snap)
	res.teardown()
}

// ToggleMute flips the microphone mute state and reports the new state.
// Returns false when no call is active.
func (m *Manager) ToggleMute() bool {
	m.mu.Lock()
	res := m.res
	m.mu.Unlock()
	if res == nil {
		return false
	}
	muted := !res.src.Muted()
	res.src.SetMuted(muted)
	return muted
}

// Snapshot returns a value copy of the current call state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone()
}

// Subscribe registers a callback invoked on every state change, in
// order. The callback runs on internal goroutines; it must be fast and
// must not call back into the Manager.
func (m *Manager) Subscribe(fn func(Snapshot)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subs = append(m.subs, fn)
}

// Close disconnects and renders the manager idle. Idempotent.
func (m *Manager) Close() error {
	m.Disconnect()
	return nil
}

// pumpCapture forwards outward microphone frames to the transport until
// the session is torn down.
func (m *Manager) pumpCapture(r *resources) {
	for {
		select {
		case <-r.stop:
			return
		case frame, ok := <-r.src.Frames():
			if !ok {
				return
			}
			if err := r.sess.SendAudio(frame.Data); err != nil {
				// The event pump surfaces the transport failure.
				return
			}
			m.metrics.FramesSent.Add(context.Background(), 1)
		}
	}
}

// pumpEvents demuxes inbound session events until the terminal close.
func (m *Manager) pumpEvents(gen uint64, r *resources) {
	ctx := context.Background()
	for ev := range r.sess.Events() {
		switch ev := ev.(type) {
		case live.Audio:
			r.sched.Enqueue(audio.Frame{Data: ev.PCM, Rate: ev.Rate})
			m.metrics.FramesReceived.Add(ctx, 1)
		case live.Text:
			m.update(gen, func(s *Snapshot) {
				s.Transcript = append(s.Transcript, ev.Content)
			})
		case live.Interrupted:
			r.sched.Interrupt()
			m.metrics.RecordInterruption(ctx)
		case live.Closed:
			if ev.Err != nil {
				m.fail(gen, ev.Err)
			} else {
				m.reset(gen)
			}
			return
		}
	}
}

// waitReady consumes events until the backend acknowledges setup.
func waitReady(ctx context.Context, sess live.Session, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("call: handshake timed out after %s", timeout)
		case ev, ok := <-sess.Events():
			if !ok {
				return fmt.Errorf("call: session closed during handshake")
			}
			switch ev := ev.(type) {
			case live.Ready:
				return nil
			case live.Closed:
				if ev.Err != nil {
					return ev.Err
				}
				return fmt.Errorf("call: session closed during handshake")
			}
		}
	}
}

// classify maps an internal error to its localized message key and the
// metric class label.
func classify(err error) (i18n.Key, string) {
	var unavailable *capture.UnavailableError
	switch {
	case errors.Is(err, gemini.ErrOverloaded):
		return i18n.KeyHighTraffic, "overloaded"
	case errors.As(err, &unavailable):
		if unavailable.PermissionDenied {
			return i18n.KeyMicPermissionDenied, "mic_permission"
		}
		return i18n.KeyMicUnavailable, "mic_device"
	default:
		return i18n.KeyTransportFailed, "transport"
	}
}

// fail tears down the session of the given generation, if still
// current, and surfaces err as one localized message.
func (m *Manager) fail(gen uint64, err error) {
	key, class := classify(err)
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	res := m.res
	m.res = nil
	m.endedLocked()
	m.snap = Snapshot{Error: i18n.Message(m.lang, key)}
	seq, snap := m.stampLocked()
	m.mu.Unlock()
	m.metrics.RecordTransportError(context.Background(), class)
	m.publish(seq, snap)
	res.teardown()
	slog.Warn("call failed", "class", class, "err", err)
}

// reset returns the manager to idle if gen is still current.
func (m *Manager) reset(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	res := m.res
	m.res = nil
	m.endedLocked()
	m.snap = Snapshot{}
	seq, snap := m.stampLocked()
	m.mu.Unlock()
	m.publish(seq, snap)
	res.teardown()
}

// update applies a snapshot mutation if gen is still current and
// notifies subscribers.
func (m *Manager) update(gen uint64, mutate func(*Snapshot)) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	mutate(&m.snap)
	seq, snap := m.stampLocked()
	m.mu.Unlock()
	m.publish(seq, snap)
}

// swap replaces the snapshot unconditionally and returns the stamped
// copy to publish.
func (m *Manager) swap(snap Snapshot) (uint64, Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	return m.stampLocked()
}

// stampLocked clones the snapshot and assigns it the next publish
// sequence number. Caller holds mu, so stamping order is mutation
// order.
func (m *Manager) stampLocked() (uint64, Snapshot) {
	m.seq++
	return m.seq, m.snap.clone()
}

// publish delivers a snapshot to every subscriber in registration
// order. A delivery that lost the race to a newer snapshot between
// releasing mu and acquiring subMu is dropped, so subscribers observe
// mutations in order and never rest on stale state.
func (m *Manager) publish(seq uint64, snap Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if seq <= m.delivered {
		return
	}
	m.delivered = seq
	for _, fn := range m.subs {
		fn(snap)
	}
}

// endedLocked folds end-of-call metrics. Caller holds mu.
func (m *Manager) endedLocked() {
	if !m.activeMetric {
		return
	}
	m.activeMetric = false
	m.metrics.ActiveCalls.Add(context.Background(), -1)
	if !m.startedAt.IsZero() {
		m.metrics.CallDuration.Record(context.Background(), time.Since(m.startedAt).Seconds())
	}
	m.startedAt = time.Time{}
}

// resources bundles everything owned by one session.
type resources struct {
	src   capture.Source
	sched *playback.Scheduler
	sink  playback.Sink
	sess  live.Session
	stop  chan struct{}
	once  sync.Once
}

// teardown releases everything in a fixed order: detach capture, stop
// playback, release the microphone, close the sink, close the
// transport. Safe on a nil receiver and on partial initialization.
func (r *resources) teardown() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		close(r.stop)
		if r.sched != nil {
			_ = r.sched.Close()
		}
		if r.src != nil {
			_ = r.src.Close()
		}
		if r.sink != nil {
			_ = r.sink.Close()
		}
		if r.sess != nil {
			_ = r.sess.Close()
		}
	})
}
