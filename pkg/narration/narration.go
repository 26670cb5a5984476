// Package narration announces changes in the number of visible faces.
//
// The trigger speaks only when the face count moves away from the last
// announced count, and never lets two utterances overlap: every dispatch
// cancels whatever the speaker is doing first.
package narration

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/teslashibe/go-facewatch/pkg/detection"
	"github.com/teslashibe/go-facewatch/pkg/speech"
)

// State is a snapshot for the dashboard.
type State struct {
	IsSpeaking             bool   `json:"is_speaking"`
	LastAnnouncedFaceCount int    `json:"last_announced_face_count"`
	Enabled                bool   `json:"enabled"`
	Supported              bool   `json:"supported"`
	LastText               string `json:"last_text,omitempty"`
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trigger) {
		t.logger = logger.With("component", "narration")
	}
}

// WithVoice sets the speech options for every utterance.
func WithVoice(opts speech.Options) Option {
	return func(t *Trigger) {
		t.voice = opts
	}
}

// WithSettle delays the decision until the face count has stopped
// changing for d, so a count that flickers for a frame or two is not
// announced. Batches with an unchanged count do not restart the wait.
// Zero decides on every batch.
func WithSettle(d time.Duration) Option {
	return func(t *Trigger) {
		t.settle = d
	}
}

// WithFrameFallback sets the frame size used for positions when a batch
// carries none.
func WithFrameFallback(width, height int) Option {
	return func(t *Trigger) {
		t.fallbackW, t.fallbackH = width, height
	}
}

// WithEnabled sets the initial enabled flag.
func WithEnabled(enabled bool) Option {
	return func(t *Trigger) {
		t.enabled = enabled
	}
}

// Trigger decides when to narrate and owns the speaking state.
type Trigger struct {
	speaker   speech.Speaker
	supported bool
	voice     speech.Options
	logger    *slog.Logger

	settle    time.Duration
	debounced func(func())

	fallbackW, fallbackH int

	// dispatchMu serializes cancel+speak pairs.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	enabled   bool
	speaking  bool
	last      int
	lastText  string
	utterance uint64
	pending   detection.Batch
	seen      int // count of the latest batch, for the settle window
}

// New creates a trigger speaking through speaker. Narration starts enabled
// unless the speaker is unsupported, in which case it stays disabled.
func New(speaker speech.Speaker, opts ...Option) *Trigger {
	t := &Trigger{
		speaker:   speaker,
		supported: speaker.Supported(),
		voice:     speech.DefaultOptions(),
		logger:    slog.Default().With("component", "narration"),
		fallbackW: 640,
		fallbackH: 480,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(t)
	}
	if !t.supported {
		t.enabled = false
		t.logger.Warn("speech synthesis unsupported, narration disabled")
	}
	if t.settle > 0 {
		t.debounced = debounce.New(t.settle)
	}
	return t
}

// OnBatch feeds a detection batch. It speaks when the face count differs
// from the last announced count.
func (t *Trigger) OnBatch(batch detection.Batch) {
	if !t.Enabled() {
		return
	}
	if t.debounced == nil {
		t.evaluate(batch)
		return
	}

	t.mu.Lock()
	t.pending = batch
	changed := batch.Count() != t.seen
	t.seen = batch.Count()
	t.mu.Unlock()

	if !changed {
		return
	}
	t.debounced(func() {
		t.mu.Lock()
		b := t.pending
		t.mu.Unlock()
		t.evaluate(b)
	})
}

func (t *Trigger) evaluate(batch detection.Batch) {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	enabled := t.enabled
	delta := batch.Count() - t.last
	t.mu.Unlock()

	if !enabled {
		return
	}
	if delta < 0 {
		delta = -delta
	}
	if delta < 1 {
		return
	}

	if err := t.dispatch(t.Compose(batch), batch.Count()); err != nil {
		t.logger.Warn("narration failed", "error", err)
	}
}

// DescribeNow speaks the full description of batch regardless of the
// count delta. The last announced count is left alone.
func (t *Trigger) DescribeNow(batch detection.Batch) (string, error) {
	if !t.supported {
		return "", speech.ErrUnsupported
	}
	text := t.Describe(batch)

	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()
	return text, t.dispatch(text, -1)
}

// dispatch cancels the active utterance and starts text. count < 0 keeps
// the last announced count. Callers hold dispatchMu.
func (t *Trigger) dispatch(text string, count int) error {
	t.speaker.CancelAll()

	t.mu.Lock()
	t.utterance++
	id := t.utterance
	t.speaking = true
	if count >= 0 {
		t.last = count
	}
	t.lastText = text
	t.mu.Unlock()

	t.logger.Info("narrating", "text", text)

	err := t.speaker.Speak(text, t.voice, speech.Callbacks{
		OnEnd: func() { t.settled(id) },
		OnError: func(err error) {
			if t.settled(id) {
				t.logger.Warn("utterance error", "error", err)
			}
		},
	})
	if err != nil {
		t.settled(id)
		return err
	}
	return nil
}

// settled clears the speaking flag if id is still the current utterance.
// Completions from replaced utterances are ignored.
func (t *Trigger) settled(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id != t.utterance {
		return false
	}
	t.speaking = false
	return true
}

// SetEnabled turns narration on or off. Turning it off silences the
// speaker. It has no effect when speech is unsupported.
func (t *Trigger) SetEnabled(enabled bool) {
	if !t.supported {
		return
	}

	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.mu.Lock()
	t.enabled = enabled
	if enabled {
		t.seen = t.last
	}
	if !enabled {
		t.utterance++
		t.speaking = false
	}
	t.mu.Unlock()

	if !enabled {
		t.speaker.CancelAll()
	}
}

// Enabled reports whether batches can trigger narration.
func (t *Trigger) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled && t.supported
}

// State returns a snapshot.
func (t *Trigger) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		IsSpeaking:             t.speaking,
		LastAnnouncedFaceCount: t.last,
		Enabled:                t.enabled && t.supported,
		Supported:              t.supported,
		LastText:               t.lastText,
	}
}

// Reset silences the speaker and forgets the last announced count.
func (t *Trigger) Reset() {
	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()

	t.speaker.CancelAll()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.utterance++
	t.speaking = false
	t.last = 0
	t.seen = 0
	t.lastText = ""
}
