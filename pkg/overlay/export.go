package overlay

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
)

// ExportFilename returns the download name for an export taken at t.
func ExportFilename(t time.Time) string {
	return "face-detection-" + t.Format("20060102-150405") + ".png"
}

// Composite draws the overlay on top of a copy of base. An overlay of a
// different size is stretched to the base dimensions.
func Composite(base, overlay image.Image) *image.NRGBA {
	dst := imaging.Clone(base)
	if overlay == nil {
		return dst
	}

	size := base.Bounds().Size()
	if overlay.Bounds().Size() != size {
		overlay = imaging.Resize(overlay, size.X, size.Y, imaging.Linear)
	}
	return imaging.Overlay(dst, overlay, image.Pt(0, 0), 1.0)
}

// Export writes the composited image as PNG.
func Export(w io.Writer, base, overlay image.Image) error {
	if base == nil {
		return fmt.Errorf("export: no source image")
	}
	if err := imaging.Encode(w, Composite(base, overlay), imaging.PNG); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}

// SaveExport writes the composite into dir and returns the file path.
func SaveExport(dir string, base, overlay image.Image, at time.Time) (string, error) {
	if base == nil {
		return "", fmt.Errorf("export: no source image")
	}
	path := filepath.Join(dir, ExportFilename(at))
	if err := imaging.Save(Composite(base, overlay), path); err != nil {
		return "", fmt.Errorf("export: save %s: %w", path, err)
	}
	return path, nil
}
