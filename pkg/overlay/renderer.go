// Package overlay draws annotated face boxes on a transparent surface and
// composites the result onto the source image for export.
package overlay

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/teslashibe/go-facewatch/pkg/detection"
)

// Style controls box and label geometry
type Style struct {
	LineWidth float64 // Box outline width

	// Corner accents: CornerFraction of the shorter box side when > 0,
	// otherwise a fixed CornerLength in pixels.
	CornerFraction float64
	CornerLength   float64
	CornerWidth    float64

	LabelPadding float64 // Space between badge edge and text
	LabelGap     float64 // Space between badge and box
	LabelRadius  float64

	Saturation float64 // HSL saturation of box colors (0-1)
	Lightness  float64 // HSL lightness of box colors (0-1)
}

// StillStyle returns the style for still images (corners scale with the box)
func StillStyle() Style {
	return Style{
		LineWidth:      3,
		CornerFraction: 0.2,
		CornerWidth:    5,
		LabelPadding:   6,
		LabelGap:       4,
		LabelRadius:    4,
		Saturation:     1.0,
		Lightness:      0.5,
	}
}

// LiveStyle returns the style for the live stream (fixed-length corners)
func LiveStyle() Style {
	s := StillStyle()
	s.CornerFraction = 0
	s.CornerLength = 20
	return s
}

// Renderer draws detection batches. It keeps no per-frame state.
type Renderer struct {
	style Style
}

// NewRenderer creates a renderer with the given style
func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Style returns the renderer's style
func (r *Renderer) Style() Style {
	return r.style
}

// HueForIndex returns the hue (degrees) assigned to the i-th face.
func HueForIndex(i int) float64 {
	return float64((120 + i*60) % 360)
}

// ColorForIndex returns the box color for the i-th face in this style.
func (r *Renderer) ColorForIndex(i int) color.Color {
	return colorful.Hsl(HueForIndex(i), r.style.Saturation, r.style.Lightness).Clamped()
}

// LabelText returns the badge text for the i-th face.
func LabelText(i int, confidence float64) string {
	return fmt.Sprintf("Face %d • %d%%", i+1, int(math.Round(confidence*100)))
}

// Render clears the canvas and draws every detection in batch order.
func (r *Renderer) Render(c Canvas, batch detection.Batch) {
	c.Clear()

	for i, d := range batch.Detections {
		col := r.ColorForIndex(i)
		r.drawBox(c, d, col)
		r.drawCorners(c, d, col)
		r.drawLabel(c, i, d, col)
	}
}

func (r *Renderer) drawBox(c Canvas, d detection.Detection, col color.Color) {
	c.StrokeRect(d.TopLeft.X, d.TopLeft.Y, d.Width(), d.Height(), col, r.style.LineWidth)
}

// cornerLength returns the accent length for a box
func (r *Renderer) cornerLength(d detection.Detection) float64 {
	if r.style.CornerFraction > 0 {
		return math.Min(d.Width(), d.Height()) * r.style.CornerFraction
	}
	return r.style.CornerLength
}

func (r *Renderer) drawCorners(c Canvas, d detection.Detection, col color.Color) {
	l := r.cornerLength(d)
	w := r.style.CornerWidth
	x1, y1 := d.TopLeft.X, d.TopLeft.Y
	x2, y2 := d.BottomRight.X, d.BottomRight.Y

	// top-left
	c.Line(x1, y1, x1+l, y1, col, w)
	c.Line(x1, y1, x1, y1+l, col, w)
	// top-right
	c.Line(x2, y1, x2-l, y1, col, w)
	c.Line(x2, y1, x2, y1+l, col, w)
	// bottom-left
	c.Line(x1, y2, x1+l, y2, col, w)
	c.Line(x1, y2, x1, y2-l, col, w)
	// bottom-right
	c.Line(x2, y2, x2-l, y2, col, w)
	c.Line(x2, y2, x2, y2-l, col, w)
}

// LabelPlacement returns the badge's top-left corner and size. The badge sits
// above the box unless that would cross the top of the frame.
func (r *Renderer) LabelPlacement(c Canvas, d detection.Detection, text string) (x, y, w, h float64) {
	tw, th := c.MeasureText(text)
	w = tw + 2*r.style.LabelPadding
	h = th + 2*r.style.LabelPadding

	y = d.TopLeft.Y - h - r.style.LabelGap
	if y < 0 {
		y = d.BottomRight.Y + r.style.LabelGap
	}

	x = d.TopLeft.X
	if maxX := float64(c.Width()) - w; x > maxX {
		x = maxX
	}
	if x < 0 {
		x = 0
	}
	return x, y, w, h
}

func (r *Renderer) drawLabel(c Canvas, i int, d detection.Detection, col color.Color) {
	text := LabelText(i, d.Confidence)
	x, y, w, h := r.LabelPlacement(c, d, text)

	c.FillRoundedRect(x, y, w, h, r.style.LabelRadius, col)
	c.Text(text, x+r.style.LabelPadding, y+r.style.LabelPadding, color.White)
}
