package locator

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ekuzmin/pdffig/internal/coords"
)

// funcOracle scripts oracle replies per call and counts every request,
// recording the bounds of each raster it was shown.
type funcOracle struct {
	calls int
	seen  []image.Rectangle
	fn    func(call int) (string, error)
}

func (o *funcOracle) Ask(_ context.Context, img image.Image, _ string, _ float64) (string, error) {
	call := o.calls
	o.calls++
	o.seen = append(o.seen, img.Bounds())
	return o.fn(call)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testPage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 1000, 1000))
}

func testQuery() RegionQuery {
	return NewRegionQuery("Figure 1", true)
}

const groundingHit = `{"bbox": [100, 200, 900, 800], "found": true}`

func wantRound1Box(t *testing.T, got coords.BoundingBox) {
	t.Helper()
	want := coords.BoundingBox{X1: 0.1, Y1: 0.2, X2: 0.9, Y2: 0.8}
	if math.Abs(got.X1-want.X1) > 1e-9 || math.Abs(got.Y2-want.Y2) > 1e-9 {
		t.Errorf("box = %+v, want %+v", got, want)
	}
}

func TestExtractNotFoundStopsAfterGrounding(t *testing.T) {
	o := &funcOracle{fn: func(int) (string, error) {
		return `{"bbox": null, "found": false}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())

	res := loop.Extract(context.Background(), testPage(), testQuery())

	if res.Outcome != OutcomeNotFound || res.Found() {
		t.Errorf("outcome = %v, want not_found", res.Outcome)
	}
	if o.calls != 1 {
		t.Errorf("oracle calls = %d, want 1 (no assessment after a grounding miss)", o.calls)
	}
}

func TestExtractThresholdShortCircuit(t *testing.T) {
	o := &funcOracle{fn: func(call int) (string, error) {
		if call == 0 {
			return groundingHit, nil
		}
		return `{"quality_score": 10, "issues": [], "needs_refinement": false, "refined_bbox": null}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())

	res := loop.Extract(context.Background(), testPage(), testQuery())

	if res.Outcome != OutcomeConverged {
		t.Fatalf("outcome = %v, want converged", res.Outcome)
	}
	if o.calls != 2 || res.Rounds != 2 {
		t.Errorf("calls = %d, rounds = %d, want exactly 2", o.calls, res.Rounds)
	}
	if res.Quality != 10 {
		t.Errorf("quality = %d, want 10", res.Quality)
	}
	wantRound1Box(t, res.Box)
}

func TestExtractRoundBudgetBound(t *testing.T) {
	const maxRounds = 7
	o := &funcOracle{fn: func(call int) (string, error) {
		if call == 0 {
			return groundingHit, nil
		}
		// Every assessment demands a refinement that moves the box by a
		// non-plateau amount, so only the budget can stop the loop.
		x1 := 100 + 10*call
		return fmt.Sprintf(`{"quality_score": 6, "issues": [], "needs_refinement": true, "refined_bbox": [%d, 200, 900, 800]}`, x1), nil
	}}
	loop := NewRefineLoop(o, maxRounds, 10, 0, quietLogger())

	res := loop.Extract(context.Background(), testPage(), testQuery())

	if res.Outcome != OutcomeMaxRounds {
		t.Fatalf("outcome = %v, want max_rounds", res.Outcome)
	}
	if o.calls != maxRounds {
		t.Errorf("oracle calls = %d, want at most %d", o.calls, maxRounds)
	}
	if !res.Found() {
		t.Error("max-rounds exit must still be a soft success")
	}
}

func TestExtractConvergesOnPlateau(t *testing.T) {
	o := &funcOracle{fn: func(call int) (string, error) {
		if call == 0 {
			return groundingHit, nil
		}
		// Suggestion differs by at most 2 units per coordinate: below the
		// plateau threshold of 5.
		return `{"quality_score": 6, "issues": [], "needs_refinement": true, "refined_bbox": [102, 200, 900, 798]}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())

	res := loop.Extract(context.Background(), testPage(), testQuery())

	if res.Outcome != OutcomeConverged {
		t.Fatalf("outcome = %v, want converged", res.Outcome)
	}
	if o.calls != 2 {
		t.Errorf("oracle calls = %d, want 2", o.calls)
	}
	// The current box wins over the marginal suggestion.
	wantRound1Box(t, res.Box)
	if res.Quality != 6 {
		t.Errorf("quality = %d, want 6", res.Quality)
	}
}

func TestExtractAssessorFailureKeepsLastBox(t *testing.T) {
	o := &funcOracle{fn: func(call int) (string, error) {
		switch call {
		case 0:
			return groundingHit, nil
		case 1:
			return `{"quality_score": 7, "issues": [], "needs_refinement": true, "refined_bbox": [150, 200, 900, 800]}`, nil
		default:
			return "this is not json at all", nil
		}
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())

	res := loop.Extract(context.Background(), testPage(), testQuery())

	if res.Outcome != OutcomeGaveUp {
		t.Fatalf("outcome = %v, want gave_up", res.Outcome)
	}
	if o.calls != 3 || res.Rounds != 3 {
		t.Errorf("calls = %d, rounds = %d, want 3", o.calls, res.Rounds)
	}
	// Round 2 adopted the suggestion; the round-3 failure keeps it along
	// with the round-2 score.
	if math.Abs(res.Box.X1-0.15) > 1e-9 {
		t.Errorf("box.X1 = %f, want 0.15 (round-2 suggestion)", res.Box.X1)
	}
	if res.Quality != 7 {
		t.Errorf("quality = %d, want round-2 score 7", res.Quality)
	}
}

func TestExtractTransportErrorGivesUp(t *testing.T) {
	o := &funcOracle{fn: func(call int) (string, error) {
		if call == 0 {
			return groundingHit, nil
		}
		return "", fmt.Errorf("connection reset")
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())

	res := loop.Extract(context.Background(), testPage(), testQuery())

	if res.Outcome != OutcomeGaveUp {
		t.Fatalf("outcome = %v, want gave_up", res.Outcome)
	}
	// No assessment ever completed, so the neutral score is carried.
	if res.Quality != neutralQuality {
		t.Errorf("quality = %d, want neutral %d", res.Quality, neutralQuality)
	}
	wantRound1Box(t, res.Box)
}

func TestExtractNoSuggestionConverges(t *testing.T) {
	o := &funcOracle{fn: func(call int) (string, error) {
		if call == 0 {
			return groundingHit, nil
		}
		// needs_refinement without a usable suggestion: accept as-is.
		return `{"quality_score": 8, "issues": ["slightly loose"], "needs_refinement": true, "refined_bbox": null}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())

	res := loop.Extract(context.Background(), testPage(), testQuery())

	if res.Outcome != OutcomeConverged {
		t.Fatalf("outcome = %v, want converged", res.Outcome)
	}
	if res.Quality != 8 || o.calls != 2 {
		t.Errorf("quality = %d, calls = %d", res.Quality, o.calls)
	}
	wantRound1Box(t, res.Box)
}

func TestExtractLoweredThreshold(t *testing.T) {
	o := &funcOracle{fn: func(call int) (string, error) {
		if call == 0 {
			return groundingHit, nil
		}
		return `{"quality_score": 8, "issues": [], "needs_refinement": true, "refined_bbox": [200, 200, 900, 800]}`, nil
	}}
	loop := NewRefineLoop(o, 7, 8, 0, quietLogger())

	res := loop.Extract(context.Background(), testPage(), testQuery())

	if res.Outcome != OutcomeConverged || res.Quality != 8 {
		t.Errorf("outcome = %v quality = %d, want converged at lowered threshold", res.Outcome, res.Quality)
	}
	if o.calls != 2 {
		t.Errorf("oracle calls = %d, want 2", o.calls)
	}
}

func TestExtractNormalizesAgainstTransmittedRaster(t *testing.T) {
	// A 4000x4000 page gets downscaled to 2000x2000 before transmission.
	// The oracle answers in pixel coordinates of the image it was shown,
	// with values above 1000, so normalization must divide by the
	// transmitted dimensions and not by the full page's.
	o := &funcOracle{fn: func(call int) (string, error) {
		if call == 0 {
			return `{"bbox": [200, 400, 1800, 1600], "found": true}`, nil
		}
		return `{"quality_score": 10, "issues": [], "needs_refinement": false, "refined_bbox": null}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 2000, quietLogger())

	page := image.NewRGBA(image.Rect(0, 0, 4000, 4000))
	res := loop.Extract(context.Background(), page, testQuery())

	if res.Outcome != OutcomeConverged {
		t.Fatalf("outcome = %v, want converged", res.Outcome)
	}
	for i, b := range o.seen {
		if b.Dx() != 2000 || b.Dy() != 2000 {
			t.Errorf("call %d saw a %dx%d raster, want 2000x2000", i, b.Dx(), b.Dy())
		}
	}
	want := coords.BoundingBox{X1: 0.1, Y1: 0.2, X2: 0.9, Y2: 0.8}
	if math.Abs(res.Box.X1-want.X1) > 1e-9 || math.Abs(res.Box.Y1-want.Y1) > 1e-9 ||
		math.Abs(res.Box.X2-want.X2) > 1e-9 || math.Abs(res.Box.Y2-want.Y2) > 1e-9 {
		t.Errorf("box = %+v, want %+v", res.Box, want)
	}
}

func TestMarkerIsPure(t *testing.T) {
	o := &funcOracle{fn: func(call int) (string, error) {
		if call == 0 {
			return groundingHit, nil
		}
		return `{"quality_score": 10, "issues": [], "needs_refinement": false, "refined_bbox": null}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())

	var markerInputs []image.Image
	loop.mark = func(img image.Image, box coords.BoundingBox) image.Image {
		markerInputs = append(markerInputs, img)
		return img
	}

	page := testPage()
	loop.Extract(context.Background(), page, testQuery())

	if len(markerInputs) != 1 {
		t.Fatalf("marker drawn %d times, want 1", len(markerInputs))
	}
	if markerInputs[0] != page {
		t.Error("marker must be drawn on the original page raster")
	}
}
