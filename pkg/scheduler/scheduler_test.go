package scheduler

import (
	"context"
	"errors"
	"image"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facewatch/pkg/capture"
	"github.com/teslashibe/go-facewatch/pkg/detection"
)

func testFrame() *capture.Static {
	return capture.NewStatic(image.NewRGBA(image.Rect(0, 0, 640, 480)))
}

func oneFace() detection.Detection {
	return detection.Detection{
		TopLeft:     detection.Point{X: 10, Y: 10},
		BottomRight: detection.Point{X: 60, Y: 80},
		Confidence:  0.95,
	}
}

// callRecorder is a detector that records the clock time of every call.
type callRecorder struct {
	clock clock.Clock
	mu    sync.Mutex
	times []time.Time
}

func (c *callRecorder) Detect(ctx context.Context, frame image.Image) ([]detection.Detection, error) {
	c.mu.Lock()
	c.times = append(c.times, c.clock.Now())
	c.mu.Unlock()
	return []detection.Detection{oneFace()}, nil
}

func (c *callRecorder) Close() error { return nil }

func (c *callRecorder) Times() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.times...)
}

// tick runs one display frame at the mock clock's time and, if a detection
// was accepted, waits for it to settle and delivers it.
func tick(s *Scheduler, r *run, mc *clock.Mock) {
	before := s.accepted.Load()
	s.step(r, mc.Now())
	if s.accepted.Load() > before {
		s.complete(r, <-r.results)
	}
}

func TestThrottle_RegularDisplayTicks(t *testing.T) {
	mc := clock.NewMock()
	rec := &callRecorder{clock: mc}
	s := New(DefaultConfig(), rec, WithClock(mc))
	r := s.newRun(testFrame(), nil)

	for i := 0; i < 120; i++ { // two seconds at 60 Hz
		tick(s, r, mc)
		mc.Add(s.config.DisplayInterval)
	}

	times := rec.Times()
	require.NotEmpty(t, times)
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, gap, 67*time.Millisecond, "calls %d and %d too close", i-1, i)
	}
	// ~15 Hz ceiling: 2s of ticks yields at most 30 accepted cycles
	assert.LessOrEqual(t, len(times), 30)
	assert.Greater(t, s.Stats().SkippedThrottle, uint64(0))
}

func TestThrottle_ArbitraryTickSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 10; trial++ {
		mc := clock.NewMock()
		rec := &callRecorder{clock: mc}
		s := New(DefaultConfig(), rec, WithClock(mc))
		r := s.newRun(testFrame(), nil)

		for i := 0; i < 150; i++ {
			tick(s, r, mc)
			mc.Add(time.Duration(rng.Intn(90)) * time.Millisecond)
		}

		times := rec.Times()
		for i := 1; i < len(times); i++ {
			if gap := times[i].Sub(times[i-1]); gap < 67*time.Millisecond {
				t.Fatalf("trial %d: calls %d and %d only %v apart", trial, i-1, i, gap)
			}
		}
	}
}

func TestSingleDetectionInFlight(t *testing.T) {
	mc := clock.NewMock()
	release := make(chan struct{})
	mock := &detection.Mock{
		DetectFunc: func(ctx context.Context, frame image.Image) ([]detection.Detection, error) {
			<-release
			return nil, nil
		},
	}
	s := New(DefaultConfig(), mock, WithClock(mc))
	r := s.newRun(testFrame(), nil)

	s.step(r, mc.Now())
	for i := 0; i < 10; i++ {
		mc.Add(100 * time.Millisecond) // well past the throttle
		s.step(r, mc.Now())
	}

	assert.Equal(t, uint64(1), s.Stats().Accepted)
	assert.Equal(t, uint64(10), s.Stats().SkippedBusy)

	close(release)
	s.complete(r, <-r.results)

	mc.Add(100 * time.Millisecond)
	s.step(r, mc.Now())
	s.complete(r, <-r.results)
	assert.Equal(t, 2, mock.Calls())
}

func TestNotReadySourceSkipsDetector(t *testing.T) {
	mc := clock.NewMock()
	mock := detection.NewMock(oneFace())
	s := New(DefaultConfig(), mock, WithClock(mc))

	src := capture.NewStatic(nil)
	r := s.newRun(src, nil)

	for i := 0; i < 5; i++ {
		s.step(r, mc.Now())
		mc.Add(100 * time.Millisecond)
	}
	assert.Equal(t, 0, mock.Calls())
	assert.Equal(t, uint64(5), s.Stats().SkippedNotReady)

	// Becomes ready mid-stream
	src.Set(image.NewRGBA(image.Rect(0, 0, 320, 240)))
	tick(s, r, mc)
	assert.Equal(t, 1, mock.Calls())
}

func TestDetectorErrorIsSwallowed(t *testing.T) {
	mc := clock.NewMock()
	var batches []detection.Batch
	s := New(DefaultConfig(), detection.WithError(errors.New("inference failed")), WithClock(mc))
	r := s.newRun(testFrame(), func(b detection.Batch) { batches = append(batches, b) })

	for i := 0; i < 3; i++ {
		tick(s, r, mc)
		mc.Add(100 * time.Millisecond)
	}

	assert.Empty(t, batches)
	assert.Equal(t, uint64(3), s.Stats().Failed)
	assert.Equal(t, uint64(3), s.Stats().Accepted, "loop keeps accepting after failures")
}

func TestBatchContents(t *testing.T) {
	mc := clock.NewMock()
	var batches []detection.Batch
	s := New(DefaultConfig(), detection.NewMock(oneFace()), WithClock(mc))
	r := s.newRun(testFrame(), func(b detection.Batch) { batches = append(batches, b) })

	start := mc.Now()
	tick(s, r, mc)
	mc.Add(70 * time.Millisecond)
	tick(s, r, mc)

	require.Len(t, batches, 2)
	assert.Equal(t, uint64(1), batches[0].Seq)
	assert.Equal(t, uint64(2), batches[1].Seq)
	assert.Equal(t, start, batches[0].CapturedAt)
	assert.Equal(t, 640, batches[0].FrameWidth)
	assert.Equal(t, 480, batches[0].FrameHeight)
	assert.Equal(t, 1, batches[0].Count())
}

func TestStopDiscardsInFlightDetection(t *testing.T) {
	mc := clock.NewMock()
	release := make(chan struct{})
	mock := &detection.Mock{
		DetectFunc: func(ctx context.Context, frame image.Image) ([]detection.Detection, error) {
			<-release
			return []detection.Detection{oneFace()}, nil
		},
	}
	called := false
	s := New(DefaultConfig(), mock, WithClock(mc))
	r := s.newRun(testFrame(), func(detection.Batch) { called = true })
	s.current = r

	s.step(r, mc.Now())
	s.Stop()
	close(release)
	s.complete(r, <-r.results)

	assert.False(t, called, "batch delivered after stop")
	assert.Equal(t, uint64(1), s.Stats().Discarded)
}

func TestFPSEstimate(t *testing.T) {
	mc := clock.NewMock()
	var published []float64
	s := New(DefaultConfig(), detection.NewMock(), WithClock(mc),
		WithFPSListener(func(fps float64) { published = append(published, fps) }))
	r := s.newRun(testFrame(), nil)

	for i := 0; i < 30; i++ {
		tick(s, r, mc)
		mc.Add(100 * time.Millisecond)
	}

	require.Len(t, published, 2, "one estimate per 15 accepted cycles")
	assert.InDelta(t, 10.0, published[0], 1e-9)
	assert.InDelta(t, 10.0, s.FPS(), 1e-9)
	assert.False(t, math.IsNaN(s.FPS()))
}

func TestStartStopLifecycle(t *testing.T) {
	mc := clock.NewMock()
	mock := detection.NewMock(oneFace())
	s := New(DefaultConfig(), mock, WithClock(mc))

	// Stop before Start is a no-op
	s.Stop()
	assert.False(t, s.Running())

	batches := make(chan detection.Batch, 64)
	require.NoError(t, s.Start(testFrame(), func(b detection.Batch) { batches <- b }))
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(testFrame(), nil), ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		mc.Add(20 * time.Millisecond)
		return len(batches) > 0
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	// Let a trailing in-flight call settle, then no further calls
	time.Sleep(20 * time.Millisecond)
	calls := mock.Calls()
	for i := 0; i < 20; i++ {
		mc.Add(100 * time.Millisecond)
	}
	assert.Equal(t, calls, mock.Calls())

	// Restart after stop
	require.NoError(t, s.Start(testFrame(), nil))
	s.Stop()
}

func TestNewFillsZeroConfig(t *testing.T) {
	s := New(Config{}, detection.NewMock())
	assert.Equal(t, DefaultConfig(), s.config)
}
