package overlay

import (
	"image/color"
	"sync"
)

// Op is one recorded drawing call.
type Op struct {
	Kind  string // clear, rect, line, fill, text
	X, Y  float64
	W, H  float64
	Text  string
	Color color.Color
}

// Recorder is a Canvas that records calls instead of drawing. Text is
// measured with a fixed advance so placement is deterministic.
type Recorder struct {
	W, H int

	// CharWidth and LineHeight drive MeasureText.
	CharWidth  float64
	LineHeight float64

	mu  sync.Mutex
	ops []Op
}

// NewRecorder creates a recording canvas of the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{W: width, H: height, CharWidth: 7, LineHeight: 14}
}

// Width returns the canvas width
func (r *Recorder) Width() int { return r.W }

// Height returns the canvas height
func (r *Recorder) Height() int { return r.H }

// Clear drops everything recorded so far, like a real surface.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = []Op{{Kind: "clear"}}
}

// StrokeRect records a box outline.
func (r *Recorder) StrokeRect(x, y, w, h float64, c color.Color, lineWidth float64) {
	r.add(Op{Kind: "rect", X: x, Y: y, W: w, H: h, Color: c})
}

// Line records a segment.
func (r *Recorder) Line(x1, y1, x2, y2 float64, c color.Color, lineWidth float64) {
	r.add(Op{Kind: "line", X: x1, Y: y1, W: x2 - x1, H: y2 - y1, Color: c})
}

// FillRoundedRect records a badge background.
func (r *Recorder) FillRoundedRect(x, y, w, h, radius float64, c color.Color) {
	r.add(Op{Kind: "fill", X: x, Y: y, W: w, H: h, Color: c})
}

// Text records a text draw.
func (r *Recorder) Text(text string, x, y float64, c color.Color) {
	r.add(Op{Kind: "text", X: x, Y: y, Text: text, Color: c})
}

// MeasureText returns a fixed-advance size.
func (r *Recorder) MeasureText(text string) (float64, float64) {
	return float64(len([]rune(text))) * r.CharWidth, r.LineHeight
}

// Ops returns a copy of the recorded calls since the last Clear.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// OpsOf returns the recorded calls of one kind.
func (r *Recorder) OpsOf(kind string) []Op {
	var out []Op
	for _, op := range r.Ops() {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

func (r *Recorder) add(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// Verify Recorder implements Canvas at compile time.
var _ Canvas = (*Recorder)(nil)
