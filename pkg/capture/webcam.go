package capture

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

// Webcam reads frames from a local camera in the background and keeps the
// latest one for the detection loop.
type Webcam struct {
	device int
	cap    *gocv.VideoCapture
	logger *slog.Logger

	// Latest frame
	latest  image.Image
	frameMu sync.RWMutex

	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// OpenWebcam opens the camera with the given device index and starts reading.
// Open failures wrap ErrUnavailable so callers can offer a retry.
func OpenWebcam(device int, logger *slog.Logger) (*Webcam, error) {
	if logger == nil {
		logger = slog.Default()
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrUnavailable, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrUnavailable, device)
	}

	w := &Webcam{
		device:  device,
		cap:     vc,
		logger:  logger.With("component", "capture.webcam", "device", device),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.readLoop()
	return w, nil
}

// readLoop pulls frames until Close. VideoCapture.Read blocks for the
// camera's frame period, which paces the loop.
func (w *Webcam) readLoop() {
	defer close(w.stopped)

	mat := gocv.NewMat()
	defer mat.Close()

	misses := 0
	for {
		select {
		case <-w.done:
			return
		default:
		}

		if ok := w.cap.Read(&mat); !ok || mat.Empty() {
			misses++
			if misses == 30 {
				w.logger.Warn("camera returning empty frames")
			}
			continue
		}
		misses = 0

		img, err := mat.ToImage()
		if err != nil {
			w.logger.Debug("frame conversion failed", "error", err)
			continue
		}

		w.frameMu.Lock()
		w.latest = img
		w.frameMu.Unlock()
	}
}

// Ready reports whether at least one frame has been read.
func (w *Webcam) Ready() bool {
	return w.Size() != image.Point{}
}

// Size returns the latest frame size.
func (w *Webcam) Size() image.Point {
	w.frameMu.RLock()
	defer w.frameMu.RUnlock()
	if w.latest == nil {
		return image.Point{}
	}
	return w.latest.Bounds().Size()
}

// Frame returns the most recent frame.
func (w *Webcam) Frame() (image.Image, error) {
	select {
	case <-w.done:
		return nil, ErrClosed
	default:
	}

	w.frameMu.RLock()
	defer w.frameMu.RUnlock()
	if w.latest == nil {
		return nil, ErrNotReady
	}
	return w.latest, nil
}

// Close stops the reader and releases the camera. Safe to call twice.
func (w *Webcam) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		<-w.stopped
		err = w.cap.Close()
	})
	return err
}

// Verify Webcam implements Source at compile time.
var _ Source = (*Webcam)(nil)
