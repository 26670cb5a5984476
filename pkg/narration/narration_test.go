package narration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facewatch/pkg/detection"
	"github.com/teslashibe/go-facewatch/pkg/speech"
)

func face(x1, y1, x2, y2, conf float64) detection.Detection {
	return detection.Detection{
		TopLeft:     detection.Point{X: x1, Y: y1},
		BottomRight: detection.Point{X: x2, Y: y2},
		Confidence:  conf,
	}
}

func batchOf(dets ...detection.Detection) detection.Batch {
	return detection.Batch{Detections: dets, FrameWidth: 640, FrameHeight: 480}
}

func faces(n int) detection.Batch {
	dets := make([]detection.Detection, n)
	for i := range dets {
		x := float64(10 + i*100)
		dets[i] = face(x, 100, x+60, 180, 0.9)
	}
	return batchOf(dets...)
}

func TestComposeSingleFace(t *testing.T) {
	tr := New(speech.NewMock())

	text := tr.Compose(batchOf(face(10, 10, 60, 80, 0.95)))
	assert.Equal(t, "One face detected with 95% confidence, positioned in the upper left of the frame.", text)
	assert.Contains(t, text, "One face detected with 95% confidence")
	assert.Contains(t, text, "upper left")
}

func TestComposeCounts(t *testing.T) {
	tr := New(speech.NewMock())

	assert.Equal(t, NoFacesText, tr.Compose(detection.Batch{}))

	b := batchOf(face(0, 0, 10, 10, 0.9), face(20, 20, 40, 40, 0.8), face(50, 50, 60, 60, 0.76))
	assert.Equal(t, "3 faces detected with an average confidence of 82%.", tr.Compose(b))
}

func TestPosition(t *testing.T) {
	tests := []struct {
		name       string
		d          detection.Detection
		vertical   string
		horizontal string
	}{
		{"upper left", face(10, 10, 60, 80, 0.9), "upper", "left"},
		{"middle center", face(300, 220, 340, 260, 0.9), "middle", "center"},
		{"lower right", face(600, 400, 640, 480, 0.9), "lower", "right"},
		{"upper right", face(500, 0, 600, 100, 0.9), "upper", "right"},
		{"lower center", face(250, 350, 390, 470, 0.9), "lower", "center"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, h := Position(tc.d, 640, 480)
			assert.Equal(t, tc.vertical, v)
			assert.Equal(t, tc.horizontal, h)
		})
	}
}

func TestComposeUsesBatchFrameSize(t *testing.T) {
	tr := New(speech.NewMock())

	// Center (35,45) is middle-center on a 90x90 frame.
	b := detection.Batch{Detections: []detection.Detection{face(10, 10, 60, 80, 0.95)}, FrameWidth: 90, FrameHeight: 90}
	assert.Contains(t, tr.Compose(b), "middle center")

	// Without a size the fallback applies.
	b.FrameWidth, b.FrameHeight = 0, 0
	assert.Contains(t, tr.Compose(b), "upper left")

	tr = New(speech.NewMock(), WithFrameFallback(90, 90))
	assert.Contains(t, tr.Compose(b), "middle center")
}

func TestTier(t *testing.T) {
	assert.Equal(t, "excellent", Tier(0.95))
	assert.Equal(t, "excellent", Tier(0.999))
	assert.Equal(t, "good", Tier(0.949))
	assert.Equal(t, "good", Tier(0.80))
	assert.Equal(t, "fair", Tier(0.79))
}

func TestDescribe(t *testing.T) {
	tr := New(speech.NewMock())

	assert.Equal(t, "No faces detected in the current view.", tr.Describe(detection.Batch{}))

	text := tr.Describe(batchOf(face(10, 10, 60, 80, 0.95), face(500, 400, 600, 470, 0.7)))
	assert.Equal(t,
		"2 faces in view."+
			" Face 1 is in the upper left, 50 by 70 pixels, with excellent confidence at 95%."+
			" Face 2 is in the lower right, 100 by 70 pixels, with fair confidence at 70%.",
		text)
}

func TestDeltaGating(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp)

	tr.OnBatch(faces(2))
	require.Equal(t, 1, len(sp.Texts()))
	require.Equal(t, 2, tr.State().LastAnnouncedFaceCount)

	tr.OnBatch(faces(2))
	assert.Len(t, sp.Texts(), 1, "same count must not narrate")

	tr.OnBatch(faces(3))
	assert.Len(t, sp.Texts(), 2)

	tr.OnBatch(faces(2))
	assert.Len(t, sp.Texts(), 3)
	assert.Equal(t, 2, tr.State().LastAnnouncedFaceCount)
}

func TestInitialEmptyBatchIsSilent(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp)

	tr.OnBatch(detection.Batch{})
	assert.Empty(t, sp.Texts())
}

func TestEmptyAfterOneFace(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp)

	tr.OnBatch(batchOf(face(10, 10, 60, 80, 0.95)))
	require.Equal(t, 1, tr.State().LastAnnouncedFaceCount)

	tr.OnBatch(batchOf())
	last, ok := sp.Last()
	require.True(t, ok)
	assert.Equal(t, NoFacesText, last.Text)
	assert.Equal(t, 0, tr.State().LastAnnouncedFaceCount)
}

func TestAtMostOneUtterance(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp)

	tr.OnBatch(faces(1))
	tr.OnBatch(faces(2))

	assert.Equal(t, 1, sp.MaxActive())
	assert.Equal(t, 1, sp.Active())
	assert.Equal(t, 2, sp.Cancels())

	us := sp.Utterances()
	require.Len(t, us, 2)
	assert.True(t, us[0].Canceled)
	assert.False(t, us[1].Canceled)
}

func TestSpeakingState(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp)

	tr.OnBatch(faces(1))
	assert.True(t, tr.State().IsSpeaking, "set optimistically at dispatch")

	first, _ := sp.Last()
	tr.OnBatch(faces(2))
	second, _ := sp.Last()

	// The replaced utterance finishing late must not clear the flag.
	sp.Finish(first.ID)
	assert.True(t, tr.State().IsSpeaking)

	sp.Finish(second.ID)
	assert.False(t, tr.State().IsSpeaking)
}

func TestSpeakingClearedOnError(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp)

	tr.OnBatch(faces(1))
	u, _ := sp.Last()
	sp.Fail(u.ID, errors.New("audio device lost"))

	st := tr.State()
	assert.False(t, st.IsSpeaking)
	assert.Equal(t, 1, st.LastAnnouncedFaceCount, "count updates at dispatch, not completion")
}

func TestSpeakFailureClearsSpeaking(t *testing.T) {
	sp := speech.NewMock()
	sp.SpeakErr = errors.New("busy")
	tr := New(sp)

	tr.OnBatch(faces(1))
	assert.False(t, tr.State().IsSpeaking)
}

func TestDisabled(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp, WithEnabled(false))

	tr.OnBatch(faces(3))
	assert.Empty(t, sp.Texts())

	tr.SetEnabled(true)
	tr.OnBatch(faces(3))
	assert.Len(t, sp.Texts(), 1)

	tr.SetEnabled(false)
	assert.False(t, tr.State().IsSpeaking)
	assert.Equal(t, 0, sp.Active())
}

func TestUnsupportedSpeaker(t *testing.T) {
	tr := New(speech.Unsupported{})

	st := tr.State()
	assert.False(t, st.Supported)
	assert.False(t, st.Enabled)

	tr.SetEnabled(true)
	assert.False(t, tr.Enabled())

	tr.OnBatch(faces(2))
	_, err := tr.DescribeNow(faces(2))
	assert.ErrorIs(t, err, speech.ErrUnsupported)
}

func TestDescribeNowBypassesDelta(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp)

	tr.OnBatch(faces(2))
	tr.OnBatch(faces(2))
	require.Len(t, sp.Texts(), 1)

	text, err := tr.DescribeNow(faces(2))
	require.NoError(t, err)
	assert.Contains(t, text, "2 faces in view.")

	assert.Len(t, sp.Texts(), 2)
	assert.Equal(t, 1, sp.Active())
	assert.Equal(t, 2, tr.State().LastAnnouncedFaceCount)
	assert.Equal(t, text, tr.State().LastText)
}

func TestReset(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp)

	tr.OnBatch(faces(2))
	u, _ := sp.Last()
	tr.Reset()

	st := tr.State()
	assert.False(t, st.IsSpeaking)
	assert.Equal(t, 0, st.LastAnnouncedFaceCount)
	assert.Equal(t, 0, sp.Active())

	// Late completion from before the reset is ignored.
	tr.OnBatch(faces(1))
	sp.Finish(u.ID)
	assert.True(t, tr.State().IsSpeaking)
}

func TestSettleWindow(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp, WithSettle(40*time.Millisecond))

	tr.OnBatch(faces(1))
	tr.OnBatch(faces(2))
	tr.OnBatch(faces(3))
	assert.Empty(t, sp.Texts(), "nothing before the window settles")

	assert.Eventually(t, func() bool { return len(sp.Texts()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "3 faces detected with an average confidence of 90%.", sp.Texts()[0])
}

func TestSettleWindowSteadyStream(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp, WithSettle(300*time.Millisecond))

	// Detection cadence: a batch every 67ms, count never changes.
	ticker := time.NewTicker(67 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(time.Second)

loop:
	for {
		select {
		case <-ticker.C:
			tr.OnBatch(faces(1))
		case <-deadline:
			break loop
		}
	}

	require.Len(t, sp.Texts(), 1)
	assert.Equal(t, 1, tr.State().LastAnnouncedFaceCount)
}

func TestSettleWindowIgnoresFlicker(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp, WithSettle(50*time.Millisecond))

	tr.OnBatch(faces(1))
	tr.OnBatch(faces(0))
	for i := 0; i < 10; i++ {
		tr.OnBatch(faces(0))
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sp.Texts(), "count returned to the announced value")
}

func TestSettleWindowAfterReenable(t *testing.T) {
	sp := speech.NewMock()
	tr := New(sp, WithSettle(30*time.Millisecond))

	tr.OnBatch(faces(1))
	tr.SetEnabled(false)
	time.Sleep(60 * time.Millisecond)
	require.Empty(t, sp.Texts())

	tr.SetEnabled(true)
	tr.OnBatch(faces(1))
	assert.Eventually(t, func() bool { return len(sp.Texts()) == 1 }, time.Second, 5*time.Millisecond)
}
