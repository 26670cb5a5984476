// Package scheduler drives face detection from a per-display-frame loop.
//
// The loop ticks at display rate but only hands a frame to the detector when
// the throttle interval has elapsed and no detection is in flight. Results are
// delivered back on the loop goroutine, so onBatch consumers never run
// concurrently with each other.
package scheduler

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/teslashibe/go-facewatch/pkg/capture"
	"github.com/teslashibe/go-facewatch/pkg/debug"
	"github.com/teslashibe/go-facewatch/pkg/detection"
)

// ErrAlreadyRunning is returned by Start when the loop is active.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// BatchFunc receives each completed detection cycle.
type BatchFunc func(detection.Batch)

// Stats counts what the loop did with each tick.
type Stats struct {
	Accepted        uint64 `json:"accepted"`
	SkippedNotReady uint64 `json:"skipped_not_ready"`
	SkippedBusy     uint64 `json:"skipped_busy"`
	SkippedThrottle uint64 `json:"skipped_throttle"`
	Failed          uint64 `json:"failed"`
	Discarded       uint64 `json:"discarded"`
}

// Scheduler runs the detection loop
type Scheduler struct {
	config   Config
	detector detection.Detector
	clock    clock.Clock
	logger   *slog.Logger
	onFPS    func(float64)

	mu      sync.Mutex
	current *run

	fpsBits atomic.Uint64

	accepted        atomic.Uint64
	skippedNotReady atomic.Uint64
	skippedBusy     atomic.Uint64
	skippedThrottle atomic.Uint64
	failed          atomic.Uint64
	discarded       atomic.Uint64
}

// run is the state of one Start..Stop session. Fields below alive are owned
// by the loop goroutine.
type run struct {
	ctx     context.Context
	cancel  context.CancelFunc
	alive   atomic.Bool
	done    chan struct{}
	results chan result

	source  capture.Source
	onBatch BatchFunc

	inFlight     bool
	hasAccepted  bool
	lastAccepted time.Time
	prevCycle    time.Time
	cycles       int
	seq          uint64
}

type result struct {
	seq        uint64
	detections []detection.Detection
	err        error
	capturedAt time.Time
	size       image.Point
}

// New creates a scheduler for the given detector
func New(config Config, detector detection.Detector, opts ...Option) *Scheduler {
	defaults := DefaultConfig()
	if config.MinInterval <= 0 {
		config.MinInterval = defaults.MinInterval
	}
	if config.DisplayInterval <= 0 {
		config.DisplayInterval = defaults.DisplayInterval
	}
	if config.FPSWindow <= 0 {
		config.FPSWindow = defaults.FPSWindow
	}

	s := &Scheduler{
		config:   config,
		detector: detector,
		clock:    clock.New(),
		logger:   slog.Default().With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the per-frame loop over source. onBatch is called on the loop
// goroutine once per completed detection.
func (s *Scheduler) Start(source capture.Source, onBatch BatchFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return ErrAlreadyRunning
	}

	r := s.newRun(source, onBatch)
	s.current = r
	go s.loop(r)

	s.logger.Info("detection loop started",
		"min_interval", s.config.MinInterval,
		"display_interval", s.config.DisplayInterval,
	)
	return nil
}

// Stop cancels the loop. It is idempotent and safe to call before Start.
// A detection still in flight completes in the background and its result is
// discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	r := s.current
	s.current = nil
	s.mu.Unlock()

	if r == nil {
		return
	}
	r.alive.Store(false)
	r.cancel()
	s.logger.Info("detection loop stopped")
}

// Running reports whether the loop is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// FPS returns the most recently published detection rate
func (s *Scheduler) FPS() float64 {
	return math.Float64frombits(s.fpsBits.Load())
}

// Stats returns a snapshot of the loop counters
func (s *Scheduler) Stats() Stats {
	return Stats{
		Accepted:        s.accepted.Load(),
		SkippedNotReady: s.skippedNotReady.Load(),
		SkippedBusy:     s.skippedBusy.Load(),
		SkippedThrottle: s.skippedThrottle.Load(),
		Failed:          s.failed.Load(),
		Discarded:       s.discarded.Load(),
	}
}

func (s *Scheduler) newRun(source capture.Source, onBatch BatchFunc) *run {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		results: make(chan result, 1), // at most one detection in flight
		source:  source,
		onBatch: onBatch,
	}
	r.alive.Store(true)
	return r
}

func (s *Scheduler) loop(r *run) {
	defer close(r.done)

	ticker := s.clock.Ticker(s.config.DisplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-ticker.C:
			s.step(r, now)
		case res := <-r.results:
			s.complete(r, res)
		}
	}
}

// step is the per-display-frame callback.
func (s *Scheduler) step(r *run, now time.Time) {
	if !r.alive.Load() {
		return
	}

	if r.source == nil || !r.source.Ready() {
		s.skippedNotReady.Add(1)
		return
	}

	if r.inFlight {
		s.skippedBusy.Add(1)
		return
	}

	if r.hasAccepted && now.Sub(r.lastAccepted) < s.config.MinInterval {
		s.skippedThrottle.Add(1)
		return
	}

	frame, err := r.source.Frame()
	if err != nil {
		// Source raced to not-ready (closed or between frames)
		s.skippedNotReady.Add(1)
		debug.FrameLog("⏭️  frame unavailable: %v\n", err)
		return
	}

	r.inFlight = true
	r.hasAccepted = true
	r.lastAccepted = now
	r.seq++
	s.accepted.Add(1)
	s.trackRate(r, now)

	seq := r.seq
	size := frame.Bounds().Size()
	go func() {
		dets, err := s.detector.Detect(r.ctx, frame)
		r.results <- result{
			seq:        seq,
			detections: dets,
			err:        err,
			capturedAt: now,
			size:       size,
		}
	}()
}

// complete applies a settled detection on the loop goroutine.
func (s *Scheduler) complete(r *run, res result) {
	r.inFlight = false

	if !r.alive.Load() {
		s.discarded.Add(1)
		return
	}

	if res.err != nil {
		s.failed.Add(1)
		s.logger.Warn("detection failed, skipping frame",
			"seq", res.seq,
			"error", res.err,
		)
		return
	}

	batch := detection.Batch{
		Seq:         res.seq,
		Detections:  res.detections,
		CapturedAt:  res.capturedAt,
		FrameWidth:  res.size.X,
		FrameHeight: res.size.Y,
	}
	debug.FrameLog("👁️  cycle %d: %d face(s)\n", batch.Seq, batch.Count())

	if r.onBatch != nil {
		r.onBatch(batch)
	}
}

// trackRate publishes an instantaneous rate every FPSWindow accepted cycles.
func (s *Scheduler) trackRate(r *run, now time.Time) {
	r.cycles++
	if r.cycles%s.config.FPSWindow == 0 && !r.prevCycle.IsZero() {
		if delta := now.Sub(r.prevCycle); delta > 0 {
			fps := float64(time.Second) / float64(delta)
			s.fpsBits.Store(math.Float64bits(fps))
			if s.onFPS != nil {
				s.onFPS(fps)
			}
		}
	}
	r.prevCycle = now
}
