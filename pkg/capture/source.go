// Package capture provides frame sources for the detection loop: a live
// camera, a still image file and an in-memory image.
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// Sentinel errors for capture sources.
var (
	// ErrUnavailable is returned when a camera cannot be opened
	// (permission denied, no device).
	ErrUnavailable = errors.New("capture: source unavailable")

	// ErrNotReady is returned by Frame before the first frame arrives.
	ErrNotReady = errors.New("capture: no frame yet")

	// ErrClosed is returned by Frame after Close.
	ErrClosed = errors.New("capture: source closed")
)

// Source is a frame provider. Its lifecycle belongs to the caller; the
// detection loop only reads from it.
type Source interface {
	// Ready reports whether a frame with non-zero dimensions is available.
	Ready() bool

	// Size returns the current frame dimensions (zero when not ready).
	Size() image.Point

	// Frame returns the current frame. The image is valid for one cycle.
	Frame() (image.Image, error)

	// Close releases the source.
	Close() error
}

// Static serves a fixed in-memory image. Useful for uploaded images and tests.
type Static struct {
	mu     sync.RWMutex
	img    image.Image
	closed bool
}

// NewStatic wraps img. A nil image is allowed and reports not ready.
func NewStatic(img image.Image) *Static {
	return &Static{img: img}
}

// Set replaces the served image.
func (s *Static) Set(img image.Image) {
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
}

// Ready reports whether an image with pixels is set.
func (s *Static) Ready() bool {
	return s.Size() != image.Point{}
}

// Size returns the image dimensions.
func (s *Static) Size() image.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil || s.closed {
		return image.Point{}
	}
	return s.img.Bounds().Size()
}

// Frame returns the wrapped image.
func (s *Static) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.img == nil || s.img.Bounds().Empty() {
		return nil, ErrNotReady
	}
	return s.img, nil
}

// Close marks the source closed.
func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Still is a Static source loaded from an image file.
type Still struct {
	*Static
	path string
}

// OpenStill loads an image file, honoring EXIF orientation.
func OpenStill(path string) (*Still, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: still %s: %v", ErrUnavailable, path, err)
	}
	return &Still{Static: NewStatic(img), path: path}, nil
}

// Path returns the file the image was loaded from.
func (s *Still) Path() string {
	return s.path
}

// Verify sources implement Source at compile time.
var (
	_ Source = (*Static)(nil)
	_ Source = (*Still)(nil)
)
