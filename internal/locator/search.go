package locator

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ekuzmin/pdffig/internal/coords"
	"github.com/ekuzmin/pdffig/internal/source"
)

// SearchState tracks one query's walk over candidate pages. It is owned by
// PageSearch for the duration of a single Run and mutated by nothing else.
type SearchState struct {
	Page    int
	EndPage int
	Query   RegionQuery
	DPI     int
}

// Match is the successful output of a page search, handed to the crop/export
// stage together with the page raster it refers to.
type Match struct {
	PageIndex int
	Box       coords.BoundingBox
	Image     image.Image
	Quality   int
	Rounds    int
}

// PageSearch walks candidate pages in document order, rendering each once
// and driving a full refinement loop attempt on it. Pages are scanned
// strictly sequentially: there are no retries, no backoff and no parallel
// probing, so the first matching page in document order always wins.
type PageSearch struct {
	source    source.Source
	loop      *RefineLoop
	dpi       int
	startPage int
	maxPages  int
	log       *logrus.Logger
}

// NewPageSearch builds a search over [startPage, startPage+maxPages) clamped
// to the document. maxPages <= 0 means "to the end of the document".
func NewPageSearch(src source.Source, loop *RefineLoop, dpi, startPage, maxPages int, log *logrus.Logger) *PageSearch {
	return &PageSearch{
		source:    src,
		loop:      loop,
		dpi:       dpi,
		startPage: startPage,
		maxPages:  maxPages,
		log:       log,
	}
}

// Run scans the page range for the query. It returns the first match in
// document order, or (nil, false) after every candidate page has been
// scanned without a box. An exhausted search is a normal negative result,
// not an error; render failures skip the affected page.
func (s *PageSearch) Run(ctx context.Context, q RegionQuery) (*Match, bool) {
	pageCount := s.source.PageCount()
	maxPages := s.maxPages
	if maxPages <= 0 || s.startPage+maxPages > pageCount {
		maxPages = pageCount - s.startPage
	}

	state := SearchState{
		Page:    s.startPage,
		EndPage: s.startPage + maxPages,
		Query:   q,
		DPI:     s.dpi,
	}

	s.log.WithFields(logrus.Fields{
		"target":    q.Name,
		"firstPage": state.Page + 1,
		"lastPage":  state.EndPage,
		"subregion": q.IsSubregion,
	}).Info("Searching for region")

	for ; state.Page < state.EndPage; state.Page++ {
		s.log.WithField("page", state.Page+1).Debug("Checking page")

		page, err := s.source.RenderPage(state.Page, state.DPI)
		if err != nil {
			s.log.WithError(err).WithField("page", state.Page+1).Warn("Page render failed, skipping")
			continue
		}

		result := s.loop.Extract(ctx, page, q)
		if !result.Found() {
			continue
		}

		s.log.WithFields(logrus.Fields{
			"target":  q.Name,
			"page":    state.Page + 1,
			"score":   result.Quality,
			"rounds":  result.Rounds,
			"outcome": result.Outcome.String(),
		}).Info("Region located")

		return &Match{
			PageIndex: state.Page,
			Box:       result.Box,
			Image:     page,
			Quality:   result.Quality,
			Rounds:    result.Rounds,
		}, true
	}

	s.log.WithField("target", q.Name).Info("Region not found in page range")
	return nil, false
}
