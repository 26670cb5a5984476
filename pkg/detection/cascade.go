package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-facewatch/pkg/debug"
	"gocv.io/x/gocv"
)

// CascadeDetector uses a Haar cascade for face detection.
// Cascades report no per-box probability, so every face gets DefaultConfidence.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	config     CascadeConfig
	mu         sync.Mutex
}

// CascadeConfig holds cascade detector configuration
type CascadeConfig struct {
	ModelPath    string
	ScaleFactor  float64
	MinNeighbors int
	MinSize      image.Point
	MaxFaces     int
}

// DefaultCascadeConfig returns defaults for the frontal face cascade shipped with OpenCV
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		ModelPath:    "models/haarcascade_frontalface_default.xml",
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      image.Pt(30, 30),
		MaxFaces:     10,
	}
}

// NewCascade creates a new Haar cascade face detector
func NewCascade(cfg CascadeConfig) (*CascadeDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.ModelPath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade from %s", cfg.ModelPath)
	}

	return &CascadeDetector{
		classifier: classifier,
		config:     cfg,
	}, nil
}

// Detect finds faces in the frame
func (d *CascadeDetector) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := toBGRMat(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	rects := d.classifier.DetectMultiScaleWithParams(
		img,
		d.config.ScaleFactor,
		d.config.MinNeighbors,
		0,
		d.config.MinSize,
		image.Pt(0, 0),
	)

	// No probabilities from a cascade
	detections := Limit(FromRects(rects, nil), d.config.MaxFaces)
	if len(detections) > 0 {
		debug.FrameLog("🔍 Cascade found %d face(s)\n", len(detections))
	}

	return detections, nil
}

// Close releases the detector resources
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

// Verify CascadeDetector implements Detector at compile time.
var _ Detector = (*CascadeDetector)(nil)
