package narration

import (
	"fmt"
	"math"
	"strings"

	"github.com/teslashibe/go-facewatch/pkg/detection"
)

// Fixed announcement for an empty view.
const NoFacesText = "No faces detected."

// Position labels a face by which third of the frame holds its center.
func Position(d detection.Detection, frameWidth, frameHeight int) (vertical, horizontal string) {
	c := d.Center()
	w, h := float64(frameWidth), float64(frameHeight)

	switch {
	case c.X < w/3:
		horizontal = "left"
	case c.X < 2*w/3:
		horizontal = "center"
	default:
		horizontal = "right"
	}

	switch {
	case c.Y < h/3:
		vertical = "upper"
	case c.Y < 2*h/3:
		vertical = "middle"
	default:
		vertical = "lower"
	}
	return vertical, horizontal
}

// Tier buckets a confidence for spoken descriptions.
func Tier(confidence float64) string {
	switch p := percent(confidence); {
	case p >= 95:
		return "excellent"
	case p >= 80:
		return "good"
	default:
		return "fair"
	}
}

func percent(confidence float64) int {
	return int(math.Round(confidence * 100))
}

// Compose builds the automatic announcement for a batch.
func (t *Trigger) Compose(batch detection.Batch) string {
	switch n := batch.Count(); n {
	case 0:
		return NoFacesText
	case 1:
		d := batch.Detections[0]
		w, h := t.frameSize(batch)
		vertical, horizontal := Position(d, w, h)
		return fmt.Sprintf("One face detected with %d%% confidence, positioned in the %s %s of the frame.",
			percent(d.Confidence), vertical, horizontal)
	default:
		return fmt.Sprintf("%d faces detected with an average confidence of %d%%.",
			n, percent(batch.AverageConfidence()))
	}
}

// Describe builds the full, on-demand description of every face.
func (t *Trigger) Describe(batch detection.Batch) string {
	n := batch.Count()
	if n == 0 {
		return "No faces detected in the current view."
	}

	var sb strings.Builder
	if n == 1 {
		sb.WriteString("One face in view.")
	} else {
		fmt.Fprintf(&sb, "%d faces in view.", n)
	}

	w, h := t.frameSize(batch)
	for i, d := range batch.Detections {
		vertical, horizontal := Position(d, w, h)
		fmt.Fprintf(&sb, " Face %d is in the %s %s, %d by %d pixels, with %s confidence at %d%%.",
			i+1, vertical, horizontal,
			int(math.Round(d.Width())), int(math.Round(d.Height())),
			Tier(d.Confidence), percent(d.Confidence))
	}
	return sb.String()
}

func (t *Trigger) frameSize(batch detection.Batch) (int, int) {
	if batch.FrameWidth > 0 && batch.FrameHeight > 0 {
		return batch.FrameWidth, batch.FrameHeight
	}
	return t.fallbackW, t.fallbackH
}
