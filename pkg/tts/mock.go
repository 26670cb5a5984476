package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for tests. Behavior is set through the Func fields.
type Mock struct {
	// SynthesizeFunc handles Synthesize. Nil returns ErrProviderUnavailable.
	SynthesizeFunc func(ctx context.Context, req Request) (*AudioResult, error)

	// HealthFunc handles Health. Nil means healthy.
	HealthFunc func(ctx context.Context) error

	// CloseFunc handles Close.
	CloseFunc func() error

	// MockName is returned by Name, "mock" if empty.
	MockName string

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one method invocation.
type MockCall struct {
	Method  string
	Request Request
	Time    time.Time
}

// NewMock creates a mock that returns a silent clip sized to the text.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, req Request) (*AudioResult, error) {
			// 20ms of 24kHz PCM16 per character
			return &AudioResult{
				Audio:     make([]byte, len(req.Text)*960),
				Format:    AudioFormat{Encoding: EncodingPCM, SampleRate: 24000, Channels: 1},
				Duration:  time.Duration(len(req.Text)) * 20 * time.Millisecond,
				CharCount: len(req.Text),
				LatencyMs: 10,
			}, nil
		},
	}
}

// Name returns MockName or "mock".
func (m *Mock) Name() string {
	if m.MockName != "" {
		return m.MockName
	}
	return "mock"
}

// Synthesize records the call and runs SynthesizeFunc.
func (m *Mock) Synthesize(ctx context.Context, req Request) (*AudioResult, error) {
	m.record("Synthesize", req)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return nil, WrapError(m.Name(), ErrProviderUnavailable)
}

// Health records the call and runs HealthFunc.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", Request{})
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call and runs CloseFunc.
func (m *Mock) Close() error {
	m.record("Close", Request{})
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) record(method string, req Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Request: req, Time: time.Now()})
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError returns a mock whose every method fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, req Request) (*AudioResult, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency delays m's synthesis by delay, honoring cancellation.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	next := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, req Request) (*AudioResult, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next != nil {
			return next(ctx, req)
		}
		return nil, WrapError(m.Name(), ErrProviderUnavailable)
	}
	return m
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
