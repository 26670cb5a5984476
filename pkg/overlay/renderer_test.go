package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facewatch/pkg/detection"
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

func TestHueForIndex(t *testing.T) {
	tests := []struct {
		i    int
		want float64
	}{
		{0, 120}, {1, 180}, {2, 240}, {3, 300}, {4, 0}, {5, 60}, {6, 120},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, HueForIndex(tc.i), "index %d", tc.i)
	}
}

func TestLabelText(t *testing.T) {
	assert.Equal(t, "Face 1 • 95%", LabelText(0, 0.95))
	assert.Equal(t, "Face 3 • 88%", LabelText(2, 0.875))
	assert.Equal(t, "Face 2 • 100%", LabelText(1, 0.999))
}

func TestRender_OneLabelPerFaceWithIndexHue(t *testing.T) {
	r := NewRenderer(LiveStyle())
	c := NewRecorder(640, 480)

	b := batchOf(
		face(100, 100, 200, 220, 0.91),
		face(300, 120, 380, 230, 0.85),
		face(420, 200, 500, 300, 0.66),
		face(20, 300, 90, 390, 0.99),
		face(520, 40, 600, 140, 0.72),
	)
	r.Render(c, b)

	texts := c.OpsOf("text")
	fills := c.OpsOf("fill")
	rects := c.OpsOf("rect")
	require.Len(t, texts, len(b.Detections))
	require.Len(t, fills, len(b.Detections))
	require.Len(t, rects, len(b.Detections))
	assert.Len(t, c.OpsOf("line"), 8*len(b.Detections), "four L-shaped corners per face")

	for i, d := range b.Detections {
		want := colorful.Hsl(float64((120+60*i)%360), 1.0, 0.5).Clamped()
		assert.Equal(t, LabelText(i, d.Confidence), texts[i].Text)
		assert.Equal(t, color.Color(want), fills[i].Color, "badge %d hue", i)
		assert.Equal(t, color.Color(want), rects[i].Color, "box %d hue", i)
	}
}

func TestRender_ClearsBeforeDrawing(t *testing.T) {
	r := NewRenderer(StillStyle())
	c := NewRecorder(640, 480)

	r.Render(c, batchOf(face(10, 10, 60, 80, 0.95), face(100, 100, 150, 170, 0.8)))
	require.NotEmpty(t, c.OpsOf("text"))

	r.Render(c, detection.Batch{})
	ops := c.Ops()
	require.Len(t, ops, 1)
	assert.Equal(t, "clear", ops[0].Kind)
}

func TestRender_EmptyBatchOnPixels(t *testing.T) {
	r := NewRenderer(StillStyle())
	c := NewGGCanvas(320, 240, 12)

	r.Render(c, batchOf(face(40, 60, 160, 200, 0.95)))
	assert.True(t, hasPixels(c.Image()), "expected drawn content")

	r.Render(c, detection.Batch{})
	assert.False(t, hasPixels(c.Image()), "expected a fully cleared surface")
}

func TestLabelPlacement(t *testing.T) {
	r := NewRenderer(LiveStyle())
	c := NewRecorder(640, 480)

	t.Run("above when there is room", func(t *testing.T) {
		d := face(100, 200, 200, 300, 0.9)
		_, y, _, h := r.LabelPlacement(c, d, "Face 1 • 90%")
		assert.Less(t, y+h, d.TopLeft.Y)
	})

	t.Run("below at the top of the frame", func(t *testing.T) {
		d := face(10, 10, 60, 80, 0.95)
		_, y, _, _ := r.LabelPlacement(c, d, "Face 1 • 95%")
		assert.Greater(t, y, d.BottomRight.Y)
	})

	t.Run("kept inside the right edge", func(t *testing.T) {
		d := face(600, 200, 639, 260, 0.9)
		x, _, w, _ := r.LabelPlacement(c, d, "Face 1 • 90%")
		assert.LessOrEqual(t, x+w, 640.0)
	})
}

func TestCornerLength(t *testing.T) {
	d := face(0, 0, 100, 50, 0.9)
	assert.Equal(t, 10.0, NewRenderer(StillStyle()).cornerLength(d))
	assert.Equal(t, 20.0, NewRenderer(LiveStyle()).cornerLength(d))
}

func hasPixels(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				return true
			}
		}
	}
	return false
}
