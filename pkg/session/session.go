// Package session keeps running statistics for a detection session.
package session

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/teslashibe/go-facewatch/pkg/detection"
)

// Stats is a snapshot of the session counters.
type Stats struct {
	ID                    string  `json:"id"`
	TotalDetectionEvents  int     `json:"total_detection_events"`
	ElapsedSeconds        int     `json:"elapsed_seconds"`
	LastAverageConfidence float64 `json:"last_average_confidence"`
	Active                bool    `json:"active"`
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the clock driving the elapsed-seconds cadence.
func WithClock(c clock.Clock) Option {
	return func(a *Aggregator) {
		a.clock = c
	}
}

// Aggregator counts detection events and session time.
type Aggregator struct {
	clock clock.Clock

	mu      sync.Mutex
	stats   Stats
	stop    chan struct{}
	stopped chan struct{}
}

// New creates an idle aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{clock: clock.New()}
	for _, opt := range opts {
		opt(a)
	}
	a.stats.ID = uuid.NewString()
	return a
}

// OnBatch counts a batch with at least one face as one event and records
// the batch's average confidence (0 when empty).
func (a *Aggregator) OnBatch(batch detection.Batch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if batch.Count() > 0 {
		a.stats.TotalDetectionEvents++
	}
	a.stats.LastAverageConfidence = batch.AverageConfidence()
}

// Start begins ticking ElapsedSeconds once per second. Starting an active
// session does nothing.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stats.Active {
		return
	}
	a.stats.Active = true
	a.stop = make(chan struct{})
	a.stopped = make(chan struct{})

	ticker := a.clock.Ticker(time.Second)
	go a.tick(ticker, a.stop, a.stopped)
}

func (a *Aggregator) tick(ticker *clock.Ticker, stop, stopped chan struct{}) {
	defer close(stopped)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			a.stats.ElapsedSeconds++
			a.mu.Unlock()
		}
	}
}

// Stop halts the cadence and keeps every counter. It waits for the ticker
// goroutine so no increment lands after it returns.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.stats.Active {
		a.mu.Unlock()
		return
	}
	a.stats.Active = false
	stop, stopped := a.stop, a.stopped
	a.stop, a.stopped = nil, nil
	a.mu.Unlock()

	close(stop)
	<-stopped
}

// Restart zeroes the counters under a new session ID and starts again.
func (a *Aggregator) Restart() {
	a.Stop()

	a.mu.Lock()
	a.stats = Stats{ID: uuid.NewString()}
	a.mu.Unlock()

	a.Start()
}

// Snapshot returns the current counters.
func (a *Aggregator) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
