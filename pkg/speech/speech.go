// Package speech speaks narration text aloud.
//
// A Speaker plays at most what it is told: callers that need a single
// active utterance cancel before speaking. Callbacks always fire on a
// goroutine owned by the speaker, never inside Speak.
package speech

import (
	"errors"
)

var (
	// ErrUnsupported is returned by speakers that cannot produce audio.
	ErrUnsupported = errors.New("speech: synthesis unsupported")

	// ErrCanceled is passed to OnError when an utterance is canceled.
	ErrCanceled = errors.New("speech: utterance canceled")

	// ErrEmptyText is returned for blank utterances.
	ErrEmptyText = errors.New("speech: empty text")
)

// Options controls how an utterance sounds.
type Options struct {
	Rate   float64 // 1.0 is normal speed
	Pitch  float64 // 1.0 is the voice's natural pitch
	Volume float64 // 0-1
	Voice  string  // Provider voice name, empty for the default
}

// DefaultOptions returns normal rate and pitch at 80% volume.
func DefaultOptions() Options {
	return Options{Rate: 1.0, Pitch: 1.0, Volume: 0.8}
}

// Callbacks report an utterance's progress. Any may be nil.
type Callbacks struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

func (c Callbacks) start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

func (c Callbacks) end() {
	if c.OnEnd != nil {
		c.OnEnd()
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Speaker is a text-to-speech output.
type Speaker interface {
	// Speak starts an utterance and returns without waiting for it.
	Speak(text string, opts Options, cb Callbacks) error

	// CancelAll stops every pending or playing utterance.
	CancelAll()

	// Supported reports whether Speak can produce audio at all.
	Supported() bool
}

// Unsupported is the Speaker used when no synthesis backend exists.
type Unsupported struct{}

// Speak returns ErrUnsupported.
func (Unsupported) Speak(string, Options, Callbacks) error { return ErrUnsupported }

// CancelAll does nothing.
func (Unsupported) CancelAll() {}

// Supported returns false.
func (Unsupported) Supported() bool { return false }

var _ Speaker = Unsupported{}
