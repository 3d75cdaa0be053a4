// Package live defines the contract between the call layer and a
// bidirectional audio streaming backend.
//
// A [Session] accepts outward microphone audio and text turns, and
// surfaces everything inbound as a single ordered [Event] stream. The
// [Dialer] indirection keeps the call layer testable against a scripted
// backend.
package live

import "context"

// Config carries everything a dialer needs to open a session.
type Config struct {
	// APIKey authenticates against the backend. Required.
	APIKey string

	// Model overrides the backend's default model when non-empty.
	Model string

	// Voice selects a prebuilt voice when non-empty.
	Voice string

	// SystemInstruction is the session-level system prompt.
	SystemInstruction string
}

// Event is one inbound session event. The concrete types are [Ready],
// [Audio], [Text], [Interrupted] and [Closed].
type Event interface{ event() }

// Ready signals the backend acknowledged session setup.
type Ready struct{}

// Audio carries one decoded inward PCM chunk.
type Audio struct {
	PCM  []byte
	Rate int
}

// Text carries one inward text part.
type Text struct {
	Content string
}

// Interrupted signals the backend cancelled its in-flight response,
// typically because the user started speaking over it.
type Interrupted struct{}

// Closed is the terminal event. Err is nil on an orderly local close
// and non-nil when the transport failed; it is always the last event
// before the channel closes.
type Closed struct {
	Err error
}

func (Ready) event()       {}
func (Audio) event()       {}
func (Text) event()        {}
func (Interrupted) event() {}
func (Closed) event()      {}

// Session is one live bidirectional audio conversation.
type Session interface {
	// SendAudio delivers one outward PCM chunk (16 kHz, s16le, mono).
	SendAudio(pcm []byte) error

	// SendText delivers a complete text turn on behalf of the user.
	SendText(text string) error

	// Events returns the inbound event stream. The channel is closed
	// after the terminal [Closed] event.
	Events() <-chan Event

	// Close terminates the session and releases all resources.
	// Idempotent.
	Close() error
}

// Dialer opens live sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}
