package scheduler

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Config holds the loop timing parameters
type Config struct {
	// MinInterval is the minimum time between accepted detector calls.
	// 67ms caps detection at ~15 Hz regardless of display refresh.
	MinInterval time.Duration

	// DisplayInterval is the period of the per-frame callback (display refresh).
	DisplayInterval time.Duration

	// FPSWindow publishes a new rate estimate every N accepted cycles.
	FPSWindow int
}

// DefaultConfig returns the recommended loop timing
func DefaultConfig() Config {
	return Config{
		MinInterval:     67 * time.Millisecond,
		DisplayInterval: time.Second / 60, // 60 Hz display
		FPSWindow:       15,
	}
}

// Option is a functional option for configuring the scheduler.
type Option func(*Scheduler)

// WithClock sets the clock driving the loop. Tests pass clock.NewMock().
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger.With("component", "scheduler")
	}
}

// WithFPSListener registers a callback invoked whenever a new rate is published.
func WithFPSListener(fn func(fps float64)) Option {
	return func(s *Scheduler) {
		s.onFPS = fn
	}
}
