package overlay

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Canvas is the 2D surface the renderer draws on. It is sized to the source frame.
type Canvas interface {
	Width() int
	Height() int

	// Clear erases everything previously drawn (fully transparent).
	Clear()

	StrokeRect(x, y, w, h float64, c color.Color, lineWidth float64)
	Line(x1, y1, x2, y2 float64, c color.Color, lineWidth float64)
	FillRoundedRect(x, y, w, h, radius float64, c color.Color)

	// Text draws text with its top-left corner at (x, y).
	Text(text string, x, y float64, c color.Color)
	MeasureText(text string) (w, h float64)
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
)

// labelFont returns the parsed Go Regular font.
func labelFont() *truetype.Font {
	fontOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			panic(err)
		}
		fontTTF = f
	})
	return fontTTF
}

// GGCanvas is a Canvas backed by a fogleman/gg context.
type GGCanvas struct {
	dc   *gg.Context
	face font.Face
}

// NewGGCanvas creates a transparent canvas of the given size with a label
// font of fontSize points.
func NewGGCanvas(width, height int, fontSize float64) *GGCanvas {
	dc := gg.NewContext(width, height)
	face := truetype.NewFace(labelFont(), &truetype.Options{Size: fontSize})
	dc.SetFontFace(face)
	return &GGCanvas{dc: dc, face: face}
}

// Width returns the canvas width
func (c *GGCanvas) Width() int { return c.dc.Width() }

// Height returns the canvas height
func (c *GGCanvas) Height() int { return c.dc.Height() }

// Clear resets every pixel to transparent.
func (c *GGCanvas) Clear() {
	c.dc.SetColor(color.Transparent)
	c.dc.Clear()
}

// StrokeRect outlines a rectangle.
func (c *GGCanvas) StrokeRect(x, y, w, h float64, col color.Color, lineWidth float64) {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(lineWidth)
	c.dc.DrawRectangle(x, y, w, h)
	c.dc.Stroke()
}

// Line draws a straight segment.
func (c *GGCanvas) Line(x1, y1, x2, y2 float64, col color.Color, lineWidth float64) {
	c.dc.SetColor(col)
	c.dc.SetLineWidth(lineWidth)
	c.dc.SetLineCapSquare()
	c.dc.DrawLine(x1, y1, x2, y2)
	c.dc.Stroke()
}

// FillRoundedRect fills a rectangle with rounded corners.
func (c *GGCanvas) FillRoundedRect(x, y, w, h, radius float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRoundedRectangle(x, y, w, h, radius)
	c.dc.Fill()
}

// Text draws text anchored at its top-left corner.
func (c *GGCanvas) Text(text string, x, y float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawStringAnchored(text, x, y, 0, 1)
}

// MeasureText returns the rendered size of text.
func (c *GGCanvas) MeasureText(text string) (float64, float64) {
	return c.dc.MeasureString(text)
}

// Image returns the canvas pixels.
func (c *GGCanvas) Image() image.Image {
	return c.dc.Image()
}

// Verify GGCanvas implements Canvas at compile time.
var _ Canvas = (*GGCanvas)(nil)
