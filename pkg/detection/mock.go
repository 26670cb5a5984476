package detection

import (
	"context"
	"image"
	"sync"
	"time"
)

// Mock implements Detector for testing.
// DetectFunc can be swapped to script results, errors or latency.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, returns an empty result.
	DetectFunc func(ctx context.Context, frame image.Image) ([]Detection, error)

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewMock creates a mock that always returns the given detections.
func NewMock(dets ...Detection) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, frame image.Image) ([]Detection, error) {
			out := make([]Detection, len(dets))
			copy(out, dets)
			return out, nil
		},
	}
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	m.mu.Lock()
	m.calls++
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(ctx, frame)
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Detect was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// WithError returns a mock whose Detect always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, frame image.Image) ([]Detection, error) {
			return nil, err
		},
	}
}

// WithLatency wraps a mock so Detect blocks for delay or until ctx is done.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	original := m.DetectFunc
	m.DetectFunc = func(ctx context.Context, frame image.Image) ([]Detection, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if original == nil {
			return nil, nil
		}
		return original(ctx, frame)
	}
	return m
}

// Verify Mock implements Detector at compile time.
var _ Detector = (*Mock)(nil)
