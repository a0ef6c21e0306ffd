package locator

import (
	"context"
	"fmt"
	"image"
	"testing"
)

// fakeSource serves fixed-size pages and records which indices were rendered.
// Indices listed in failPages return a render error instead.
type fakeSource struct {
	pages     int
	rendered  []int
	failPages map[int]bool
}

func (s *fakeSource) PageCount() int { return s.pages }

func (s *fakeSource) GetPageDimensions(int) (float64, float64, error) {
	return 1000, 1000, nil
}

func (s *fakeSource) RenderPage(index int, _ int) (image.Image, error) {
	if s.failPages[index] {
		return nil, fmt.Errorf("render page %d: corrupt stream", index)
	}
	s.rendered = append(s.rendered, index)
	return image.NewRGBA(image.Rect(0, 0, 1000, 1000)), nil
}

func (s *fakeSource) Close() error { return nil }

func TestRunExhaustedIsNegativeNotError(t *testing.T) {
	src := &fakeSource{pages: 3}
	o := &funcOracle{fn: func(int) (string, error) {
		return `{"bbox": null, "found": false}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())
	search := NewPageSearch(src, loop, 300, 0, 0, quietLogger())

	match, ok := search.Run(context.Background(), testQuery())

	if ok || match != nil {
		t.Fatalf("Run = (%v, %v), want (nil, false)", match, ok)
	}
	if len(src.rendered) != 3 {
		t.Errorf("rendered %d pages, want every page scanned once", len(src.rendered))
	}
	// Each miss costs one grounding call and zero assessments.
	if o.calls != 3 {
		t.Errorf("oracle calls = %d, want 3", o.calls)
	}
}

func TestRunFirstMatchWins(t *testing.T) {
	src := &fakeSource{pages: 3}
	misses := 0
	o := &funcOracle{fn: func(int) (string, error) {
		if misses < 1 {
			misses++
			return `{"bbox": null, "found": false}`, nil
		}
		if misses == 1 {
			misses++
			return groundingHit, nil
		}
		return `{"quality_score": 10, "issues": [], "needs_refinement": false, "refined_bbox": null}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())
	search := NewPageSearch(src, loop, 300, 0, 0, quietLogger())

	match, ok := search.Run(context.Background(), testQuery())

	if !ok || match == nil {
		t.Fatal("expected a match on page 1")
	}
	if match.PageIndex != 1 {
		t.Errorf("PageIndex = %d, want 1", match.PageIndex)
	}
	if len(src.rendered) != 2 {
		t.Errorf("rendered pages = %v, pages past the match must not be touched", src.rendered)
	}
	if match.Image == nil {
		t.Error("match must carry the page raster for cropping")
	}
	wantRound1Box(t, match.Box)
}

func TestRunSkipsRenderFailures(t *testing.T) {
	src := &fakeSource{pages: 3, failPages: map[int]bool{0: true}}
	misses := 0
	o := &funcOracle{fn: func(int) (string, error) {
		if misses == 0 {
			misses++
			return groundingHit, nil
		}
		return `{"quality_score": 10, "issues": [], "needs_refinement": false, "refined_bbox": null}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())
	search := NewPageSearch(src, loop, 300, 0, 0, quietLogger())

	match, ok := search.Run(context.Background(), testQuery())

	if !ok {
		t.Fatal("search must continue past a failed render")
	}
	if match.PageIndex != 1 {
		t.Errorf("PageIndex = %d, want 1 (page 0 failed to render)", match.PageIndex)
	}
}

func TestRunHonorsPageRange(t *testing.T) {
	src := &fakeSource{pages: 10}
	o := &funcOracle{fn: func(int) (string, error) {
		return `{"bbox": null, "found": false}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())
	search := NewPageSearch(src, loop, 300, 2, 3, quietLogger())

	if _, ok := search.Run(context.Background(), testQuery()); ok {
		t.Fatal("no page in range should match")
	}
	want := []int{2, 3, 4}
	if len(src.rendered) != len(want) {
		t.Fatalf("rendered pages = %v, want %v", src.rendered, want)
	}
	for i, p := range want {
		if src.rendered[i] != p {
			t.Fatalf("rendered pages = %v, want %v", src.rendered, want)
		}
	}
}

func TestRunClampsRangePastEnd(t *testing.T) {
	src := &fakeSource{pages: 4}
	o := &funcOracle{fn: func(int) (string, error) {
		return `{"bbox": null, "found": false}`, nil
	}}
	loop := NewRefineLoop(o, 7, 10, 0, quietLogger())
	search := NewPageSearch(src, loop, 300, 2, 50, quietLogger())

	search.Run(context.Background(), testQuery())

	if len(src.rendered) != 2 || src.rendered[0] != 2 || src.rendered[1] != 3 {
		t.Errorf("rendered pages = %v, want [2 3]", src.rendered)
	}
}
