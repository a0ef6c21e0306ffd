// Package overlay produces annotated and resized copies of page rasters.
// All functions are pure with respect to their input image.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/ekuzmin/pdffig/internal/coords"
	"github.com/ekuzmin/pdffig/internal/system"
)

// markerWidth is the frame thickness in pixels.
const markerWidth = 3

var markerColor = color.RGBA{R: 255, A: 255}

// DrawMarker returns a copy of img with a red rectangle drawn at box.
// The input image is never mutated. The copy comes from the marker buffer
// pool; hand it back with Recycle once it is no longer referenced.
func DrawMarker(img image.Image, box coords.BoundingBox) image.Image {
	bounds := img.Bounds()
	dst := system.GetImage(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	r := box.ToPixels(bounds.Dx(), bounds.Dy()).Add(bounds.Min).Intersect(bounds)
	if r.Empty() {
		return dst
	}

	red := image.NewUniform(markerColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+markerWidth),
		image.Rect(r.Min.X, r.Max.Y-markerWidth, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+markerWidth, r.Max.Y),
		image.Rect(r.Max.X-markerWidth, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(bounds), red, image.Point{}, draw.Src)
	}

	return dst
}

// Recycle returns a DrawMarker copy to the buffer pool. Images of other
// origins are ignored.
func Recycle(img image.Image) {
	if rgba, ok := img.(*image.RGBA); ok {
		system.PutImage(rgba)
	}
}

// ScaleDown returns img resized so that its longer edge does not exceed
// maxEdge, preserving aspect ratio. Images already within the limit are
// returned as-is.
func ScaleDown(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}

	scale := float64(maxEdge) / float64(w)
	if h > w {
		scale = float64(maxEdge) / float64(h)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst
}
