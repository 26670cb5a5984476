package session

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facewatch/pkg/detection"
)

func batch(confs ...float64) detection.Batch {
	b := detection.Batch{FrameWidth: 640, FrameHeight: 480}
	for i, c := range confs {
		x := float64(i * 50)
		b.Detections = append(b.Detections, detection.Detection{
			TopLeft:     detection.Point{X: x, Y: 0},
			BottomRight: detection.Point{X: x + 40, Y: 40},
			Confidence:  c,
		})
	}
	return b
}

// advance moves the mock clock one second at a time and waits for the
// ticker goroutine to record each tick.
func advance(t *testing.T, a *Aggregator, mock *clock.Mock, seconds int) {
	t.Helper()
	for i := 0; i < seconds; i++ {
		want := a.Snapshot().ElapsedSeconds + 1
		mock.Add(time.Second)
		require.Eventually(t, func() bool { return a.Snapshot().ElapsedSeconds == want },
			time.Second, time.Millisecond)
	}
}

func TestOnBatchCountsEventsNotFaces(t *testing.T) {
	a := New()

	a.OnBatch(batch(0.9, 0.8, 0.7))
	a.OnBatch(batch())
	a.OnBatch(batch(0.95))

	s := a.Snapshot()
	assert.Equal(t, 2, s.TotalDetectionEvents)
	assert.InDelta(t, 0.95, s.LastAverageConfidence, 1e-9)
}

func TestEmptyBatchZeroesConfidence(t *testing.T) {
	a := New()

	a.OnBatch(batch(0.9, 0.7))
	assert.InDelta(t, 0.8, a.Snapshot().LastAverageConfidence, 1e-9)

	a.OnBatch(batch())
	assert.Equal(t, 0.0, a.Snapshot().LastAverageConfidence)
}

func TestElapsedSeconds(t *testing.T) {
	mock := clock.NewMock()
	a := New(WithClock(mock))

	a.Start()
	assert.True(t, a.Snapshot().Active)
	advance(t, a, mock, 3)

	a.Stop()
	mock.Add(5 * time.Second)
	s := a.Snapshot()
	assert.Equal(t, 3, s.ElapsedSeconds, "stopped sessions keep their time")
	assert.False(t, s.Active)

	a.Start()
	advance(t, a, mock, 2)
	assert.Equal(t, 5, a.Snapshot().ElapsedSeconds, "resume continues counting")
	a.Stop()
}

func TestStartStopIdempotent(t *testing.T) {
	mock := clock.NewMock()
	a := New(WithClock(mock))

	a.Stop()
	a.Start()
	a.Start()
	advance(t, a, mock, 1)
	assert.Equal(t, 1, a.Snapshot().ElapsedSeconds, "second Start must not add a ticker")
	a.Stop()
	a.Stop()
}

func TestRestart(t *testing.T) {
	mock := clock.NewMock()
	a := New(WithClock(mock))

	a.Start()
	a.OnBatch(batch(0.9))
	advance(t, a, mock, 2)
	id := a.Snapshot().ID

	a.Restart()
	s := a.Snapshot()
	assert.Equal(t, 0, s.TotalDetectionEvents)
	assert.Equal(t, 0, s.ElapsedSeconds)
	assert.Equal(t, 0.0, s.LastAverageConfidence)
	assert.True(t, s.Active)
	assert.NotEqual(t, id, s.ID)

	advance(t, a, mock, 1)
	a.Stop()
}
