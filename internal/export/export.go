// Package export turns an accepted bounding box into a cropped PNG on disk.
package export

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ekuzmin/pdffig/internal/coords"
)

// Padding fractions applied around the accepted box before cropping.
const (
	DefaultPadding   = 0.01
	SubregionPadding = 0.005
)

// Crop returns the page region under box, expanded by padding on every side.
// Degenerate geometry (zero-area crop after pixel conversion) is reported as
// a warning and the unmodified page image is returned instead, so a bad box
// never fails the whole operation.
func Crop(img image.Image, box coords.BoundingBox, padding float64, log *logrus.Logger) image.Image {
	bounds := img.Bounds()
	rect := box.WithPadding(padding).ToPixels(bounds.Dx(), bounds.Dy()).Add(bounds.Min)

	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		log.WithField("rect", rect.String()).Warn("Degenerate crop geometry, keeping full page")
		return img
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// SavePNG writes img to path, creating parent directories as needed.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

var unsafeNameRe = regexp.MustCompile(`[^\w\-]`)

// OutputPath resolves the destination file for an extraction. An explicit
// path wins; otherwise the file lands in <dir>/extracted_figures next to the
// input (or in outputDir when given) named <input-stem>_<safe-region>.png.
func OutputPath(inputPath, regionName, explicit, outputDir string) string {
	if explicit != "" {
		return explicit
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	safeName := unsafeNameRe.ReplaceAllString(regionName, "_")

	dir := outputDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(inputPath), "extracted_figures")
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.png", stem, safeName))
}
