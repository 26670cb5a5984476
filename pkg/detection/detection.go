// Package detection provides face detection backends and the detection data model.
package detection

import (
	"context"
	"errors"
	"image"
	"math"
	"time"
)

// DefaultConfidence is used when a backend reports boxes without probabilities.
const DefaultConfidence = 0.9

// ErrEmptyFrame is returned when a detector is handed a frame with no pixels.
var ErrEmptyFrame = errors.New("detection: empty frame")

// Point is a position in source-frame pixel space.
type Point struct {
	X, Y float64
}

// Detection represents one detected face in a single frame.
// Boxes are in pixels of the frame the detector saw.
type Detection struct {
	TopLeft     Point
	BottomRight Point
	Confidence  float64 // Detection confidence (0-1)
}

// Width returns the box width in pixels
func (d Detection) Width() float64 {
	return d.BottomRight.X - d.TopLeft.X
}

// Height returns the box height in pixels
func (d Detection) Height() float64 {
	return d.BottomRight.Y - d.TopLeft.Y
}

// Center returns the center point of the detection
func (d Detection) Center() Point {
	return Point{
		X: (d.TopLeft.X + d.BottomRight.X) / 2,
		Y: (d.TopLeft.Y + d.BottomRight.Y) / 2,
	}
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.Width() * d.Height()
}

// Rect returns the box rounded to integer pixel coordinates
func (d Detection) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(d.TopLeft.X)), int(math.Round(d.TopLeft.Y)),
		int(math.Round(d.BottomRight.X)), int(math.Round(d.BottomRight.Y)),
	)
}

// Valid reports whether the box is non-degenerate and the confidence is a number.
func (d Detection) Valid() bool {
	return d.BottomRight.X > d.TopLeft.X &&
		d.BottomRight.Y > d.TopLeft.Y &&
		!math.IsNaN(d.Confidence)
}

// Batch is the ordered set of detections from one detection cycle.
type Batch struct {
	Seq         uint64
	Detections  []Detection
	CapturedAt  time.Time
	FrameWidth  int
	FrameHeight int
}

// Count returns the number of faces in the batch
func (b Batch) Count() int {
	return len(b.Detections)
}

// AverageConfidence returns the mean confidence, or 0 for an empty batch
func (b Batch) AverageConfidence() float64 {
	if len(b.Detections) == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range b.Detections {
		sum += d.Confidence
	}
	return sum / float64(len(b.Detections))
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in the frame and returns their boxes
	Detect(ctx context.Context, frame image.Image) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model (YuNet) or cascade XML
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
	MaxFaces         int     // Keep at most this many faces (0 = unlimited)
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
		MaxFaces:         10,
	}
}

// Sanitize is the adapter boundary: it drops degenerate boxes and clamps
// confidence into [0,1]. The input slice is not modified.
func Sanitize(dets []Detection) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if !d.Valid() {
			continue
		}
		d.Confidence = clamp(d.Confidence, 0, 1)
		out = append(out, d)
	}
	return out
}

// FromRects builds detections from pixel rectangles and a parallel slice of
// probabilities. A missing or short probability slice falls back to
// DefaultConfidence for the uncovered boxes.
func FromRects(rects []image.Rectangle, probs []float64) []Detection {
	dets := make([]Detection, 0, len(rects))
	for i, r := range rects {
		conf := DefaultConfidence
		if i < len(probs) {
			conf = probs[i]
		}
		dets = append(dets, Detection{
			TopLeft:     Point{X: float64(r.Min.X), Y: float64(r.Min.Y)},
			BottomRight: Point{X: float64(r.Max.X), Y: float64(r.Max.Y)},
			Confidence:  conf,
		})
	}
	return Sanitize(dets)
}

// Limit keeps at most max detections, preserving order. max <= 0 keeps all.
func Limit(dets []Detection, max int) []Detection {
	if max <= 0 || len(dets) <= max {
		return dets
	}
	return dets[:max]
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
