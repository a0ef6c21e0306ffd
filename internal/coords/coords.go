package coords

import (
	"image"
	"math"
)

// BoundingBox is a normalized region on a page image. Coordinates are
// fractions of the image width/height in [0, 1], with X1 <= X2 and Y1 <= Y2.
// A box is a value: refinement produces a new box, never mutates one.
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// FromRaw converts a raw oracle box into a normalized BoundingBox.
//
// The oracle does not tag its coordinate system, so the scale is inferred
// from magnitude, in order:
//  1. all four values <= 1: already fractional
//  2. max value <= 1000: 0-1000 grid, divide by 1000
//  3. otherwise: pixel coordinates, divide by image width/height
//
// A pixel-space box that fits under 1000 on both axes is indistinguishable
// from a 0-1000 grid box and lands in branch 2. That false-positive class is
// inherent to the heuristic; callers get no better signal from the oracle.
func FromRaw(raw [4]float64, width, height int) BoundingBox {
	x1, y1, x2, y2 := raw[0], raw[1], raw[2], raw[3]

	maxCoord := math.Max(math.Max(x1, x2), math.Max(y1, y2))
	switch {
	case maxCoord <= 1:
		// fractional, no scaling
	case maxCoord <= 1000:
		x1, y1, x2, y2 = x1/1000, y1/1000, x2/1000, y2/1000
	default:
		w, h := float64(width), float64(height)
		x1, y1, x2, y2 = x1/w, y1/h, x2/w, y2/h
	}

	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	return BoundingBox{
		X1: clamp01(x1),
		Y1: clamp01(y1),
		X2: clamp01(x2),
		Y2: clamp01(y2),
	}
}

// Delta returns the largest per-coordinate difference between two boxes on
// the 0-1000 equivalent scale, i.e. the units the oracle natively replies in.
func Delta(a, b BoundingBox) float64 {
	d := math.Abs(a.X1 - b.X1)
	d = math.Max(d, math.Abs(a.Y1-b.Y1))
	d = math.Max(d, math.Abs(a.X2-b.X2))
	d = math.Max(d, math.Abs(a.Y2-b.Y2))
	return d * 1000
}

// IsDegenerate reports whether the box has zero width or height.
func (b BoundingBox) IsDegenerate() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// WithPadding expands the box by the given fraction on every side, clamped
// to the unit square.
func (b BoundingBox) WithPadding(pad float64) BoundingBox {
	return BoundingBox{
		X1: clamp01(b.X1 - pad),
		Y1: clamp01(b.Y1 - pad),
		X2: clamp01(b.X2 + pad),
		Y2: clamp01(b.Y2 + pad),
	}
}

// ToPixels converts the box to integer pixel coordinates for an image of the
// given dimensions.
func (b BoundingBox) ToPixels(width, height int) image.Rectangle {
	w, h := float64(width), float64(height)
	return image.Rect(
		int(b.X1*w),
		int(b.Y1*h),
		int(b.X2*w),
		int(b.Y2*h),
	)
}

// Scaled1000 renders the box on the 0-1000 grid, the scale assessment
// instructions quote the current box in.
func (b BoundingBox) Scaled1000() [4]int {
	return [4]int{
		int(math.Round(b.X1 * 1000)),
		int(math.Round(b.Y1 * 1000)),
		int(math.Round(b.X2 * 1000)),
		int(math.Round(b.Y2 * 1000)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
