package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-facewatch/pkg/tts"
)

// Synth speaks by synthesizing through a tts.Provider and handing the clip
// to a Player. Each utterance runs on its own goroutine.
type Synth struct {
	provider tts.Provider
	player   Player
	logger   *slog.Logger
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	current map[string]context.CancelFunc
}

// Option configures a Synth.
type Option func(*Synth)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synth) {
		s.logger = logger.With("component", "speech")
	}
}

// WithSynthesisTimeout bounds how long one synthesis may take.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(s *Synth) {
		s.timeout = d
	}
}

// NewSynth creates a speaker on top of provider and player.
func NewSynth(provider tts.Provider, player Player, opts ...Option) *Synth {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synth{
		provider: provider,
		player:   player,
		logger:   slog.Default().With("component", "speech"),
		timeout:  15 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
		current:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detect returns a Synth when both a provider and a player are available,
// Unsupported otherwise.
func Detect(provider tts.Provider, player Player, opts ...Option) Speaker {
	if provider == nil || player == nil {
		return Unsupported{}
	}
	return NewSynth(provider, player, opts...)
}

// Supported returns true.
func (s *Synth) Supported() bool { return true }

// Speak starts the utterance on a new goroutine and returns.
func (s *Synth) Speak(text string, opts Options, cb Callbacks) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrUnsupported
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	s.current[id] = cancel

	// Counted under mu: once closed is set, no new goroutine can join wg.
	s.wg.Add(1)
	go s.run(ctx, id, text, opts, cb)
	return nil
}

// CancelAll cancels every active utterance. Their OnError receives ErrCanceled.
func (s *Synth) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.current {
		cancel()
		delete(s.current, id)
	}
}

// Active returns the number of utterances still synthesizing or playing.
func (s *Synth) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current)
}

// Close cancels everything, waits for utterance goroutines to exit and
// closes the provider. Later calls to Speak return ErrUnsupported.
func (s *Synth) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, cancel := range s.current {
		cancel()
		delete(s.current, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return s.provider.Close()
}

func (s *Synth) run(ctx context.Context, id, text string, opts Options, cb Callbacks) {
	defer s.wg.Done()
	defer s.forget(id)

	logger := s.logger.With("utterance", id)

	synthCtx, cancel := context.WithTimeout(ctx, s.timeout)
	clip, err := s.provider.Synthesize(synthCtx, tts.Request{
		Text:   text,
		Voice:  opts.Voice,
		Rate:   opts.Rate,
		Pitch:  opts.Pitch,
		Volume: opts.Volume,
	})
	cancel()
	if err != nil {
		s.finish(ctx, logger, cb, err)
		return
	}
	if ctx.Err() != nil {
		cb.fail(ErrCanceled)
		return
	}

	logger.Debug("speaking", "chars", len(text), "latency_ms", clip.LatencyMs)
	cb.start()

	s.finish(ctx, logger, cb, s.player.Play(ctx, clip, opts.Volume))
}

// finish reports the utterance outcome. Cancellation wins over whatever
// error the canceled call produced.
func (s *Synth) finish(ctx context.Context, logger *slog.Logger, cb Callbacks, err error) {
	switch {
	case ctx.Err() != nil:
		cb.fail(ErrCanceled)
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			logger.Warn("utterance failed", "error", err)
		}
		cb.fail(err)
	default:
		cb.end()
	}
}

func (s *Synth) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.current[id]; ok {
		cancel()
		delete(s.current, id)
	}
}

var _ Speaker = (*Synth)(nil)
