package speech

import (
	"sync"

	"github.com/google/uuid"
)

// Utterance is one Speak call recorded by Mock.
type Utterance struct {
	ID       string
	Text     string
	Options  Options
	Canceled bool
	Done     bool

	cb Callbacks
}

// Mock is a Speaker for tests. It never plays anything: tests drive
// completion with Finish and Fail. Callbacks run on the caller's goroutine.
type Mock struct {
	// Unsupported makes Speak fail with ErrUnsupported.
	Unsupported bool

	// SpeakErr, if set, is returned by Speak.
	SpeakErr error

	mu         sync.Mutex
	utterances []*Utterance
	cancels    int
	maxActive  int
}

// NewMock creates a supported mock speaker.
func NewMock() *Mock {
	return &Mock{}
}

// Supported reports !Unsupported.
func (m *Mock) Supported() bool {
	return !m.Unsupported
}

// Speak records the utterance. It does not cancel earlier ones.
func (m *Mock) Speak(text string, opts Options, cb Callbacks) error {
	if m.Unsupported {
		return ErrUnsupported
	}
	if m.SpeakErr != nil {
		return m.SpeakErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.utterances = append(m.utterances, &Utterance{
		ID:      uuid.NewString(),
		Text:    text,
		Options: opts,
		cb:      cb,
	})
	if n := m.activeLocked(); n > m.maxActive {
		m.maxActive = n
	}
	return nil
}

// CancelAll marks every active utterance canceled. No callbacks fire.
func (m *Mock) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
	for _, u := range m.utterances {
		if !u.Done {
			u.Canceled = true
		}
	}
}

// Utterances returns copies of everything spoken so far.
func (m *Mock) Utterances() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Utterance, len(m.utterances))
	for i, u := range m.utterances {
		out[i] = *u
	}
	return out
}

// Texts returns the spoken texts in order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.utterances))
	for i, u := range m.utterances {
		out[i] = u.Text
	}
	return out
}

// Last returns the most recent utterance.
func (m *Mock) Last() (Utterance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.utterances) == 0 {
		return Utterance{}, false
	}
	return *m.utterances[len(m.utterances)-1], true
}

// Active returns the number of utterances neither canceled nor done.
func (m *Mock) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

// MaxActive returns the highest Active count observed after any Speak.
func (m *Mock) MaxActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// Cancels returns how many times CancelAll was called.
func (m *Mock) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

// Start fires OnStart for the utterance with id.
func (m *Mock) Start(id string) {
	if u := m.find(id); u != nil && u.cb.OnStart != nil {
		u.cb.OnStart()
	}
}

// Finish marks the utterance done and fires OnEnd, even if it was
// canceled. That mimics a late completion from a replaced utterance.
func (m *Mock) Finish(id string) {
	u := m.find(id)
	if u == nil {
		return
	}
	m.mu.Lock()
	u.Done = true
	m.mu.Unlock()
	u.cb.end()
}

// Fail marks the utterance done and fires OnError.
func (m *Mock) Fail(id string, err error) {
	u := m.find(id)
	if u == nil {
		return
	}
	m.mu.Lock()
	u.Done = true
	m.mu.Unlock()
	u.cb.fail(err)
}

// FinishLast finishes the most recent utterance.
func (m *Mock) FinishLast() {
	if u, ok := m.Last(); ok {
		m.Finish(u.ID)
	}
}

// Reset forgets all recorded utterances.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utterances = nil
	m.cancels = 0
	m.maxActive = 0
}

func (m *Mock) find(id string) *Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.utterances {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *Mock) activeLocked() int {
	n := 0
	for _, u := range m.utterances {
		if !u.Canceled && !u.Done {
			n++
		}
	}
	return n
}

var _ Speaker = (*Mock)(nil)
