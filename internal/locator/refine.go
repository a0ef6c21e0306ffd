package locator

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ekuzmin/pdffig/internal/coords"
	"github.com/ekuzmin/pdffig/internal/oracle"
	"github.com/ekuzmin/pdffig/internal/overlay"
)

// Outcome is the terminal state of one per-page localization attempt.
type Outcome int

const (
	// OutcomeNotFound means round-1 grounding produced no box; the page
	// holds nothing for this query.
	OutcomeNotFound Outcome = iota
	// OutcomeConverged means the score met the threshold, the suggestion
	// plateaued, or the assessor saw nothing left to refine.
	OutcomeConverged
	// OutcomeGaveUp means an assessment call failed and the last good box
	// was kept.
	OutcomeGaveUp
	// OutcomeMaxRounds means the round budget ran out; the current box is
	// returned as a soft success.
	OutcomeMaxRounds
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConverged:
		return "converged"
	case OutcomeGaveUp:
		return "gave_up"
	case OutcomeMaxRounds:
		return "max_rounds"
	default:
		return "unknown"
	}
}

// Result is the terminal output of one page attempt. When the outcome is
// anything but OutcomeNotFound, Box carries the best box found and Rounds
// the number of oracle calls spent.
type Result struct {
	Outcome Outcome
	Box     coords.BoundingBox
	Quality int
	Rounds  int
}

// Found reports whether the attempt produced a usable box. Max-rounds and
// gave-up are soft successes: the caller still receives a box, only the
// carried quality score differs.
func (r Result) Found() bool {
	return r.Outcome != OutcomeNotFound
}

// Refinement constants: suggestions moving every coordinate by less than
// plateauDelta oracle units are treated as converged, and the quality score
// falls back to neutralQuality when no assessment ever completed.
const (
	plateauDelta   = 5.0
	neutralQuality = 5
)

// MarkerFunc draws a candidate box on a page image, returning an annotated
// copy. It must not mutate its input.
type MarkerFunc func(image.Image, coords.BoundingBox) image.Image

// RefineLoop drives grounding and multi-round assessment for one page.
// Worst-case cost is bounded by MaxRounds oracle calls total, counting the
// initial grounding as round 1. Once grounding yields a box the loop never
// rejects it; the output is always the best box found.
//
// The page is downscaled to maxImageEdge once up front, so the grounding
// call, every marker copy and every assessment share one raster and pixel
// replies are normalized against the bounds the oracle actually saw. The
// resulting box is fractional and applies to the full-resolution page too.
type RefineLoop struct {
	localizer *Localizer
	assessor  *Assessor
	mark      MarkerFunc

	maxRounds        int
	qualityThreshold int
	maxImageEdge     int
	log              *logrus.Logger
}

// NewRefineLoop wires the loop to one oracle. maxRounds, qualityThreshold
// and maxImageEdge follow the controller defaults when zero.
func NewRefineLoop(o oracle.Oracle, maxRounds, qualityThreshold, maxImageEdge int, log *logrus.Logger) *RefineLoop {
	if maxRounds < 1 {
		maxRounds = 7
	}
	if qualityThreshold < 1 {
		qualityThreshold = 10
	}
	if maxImageEdge < 1 {
		maxImageEdge = 2048
	}
	return &RefineLoop{
		localizer:        NewLocalizer(o, log),
		assessor:         NewAssessor(o, log),
		mark:             overlay.DrawMarker,
		maxRounds:        maxRounds,
		qualityThreshold: qualityThreshold,
		maxImageEdge:     maxImageEdge,
		log:              log,
	}
}

// Extract runs the full state machine for one page image:
//
//	INITIAL_GROUNDING -> ASSESSING -> (CONVERGED | REFINING | GIVE_UP) -> ASSESSING ...
//
// terminating in CONVERGED, GIVE_UP, MAX_ROUNDS or, from round 1 only,
// NOT_FOUND.
func (l *RefineLoop) Extract(ctx context.Context, page image.Image, q RegionQuery) Result {
	l.log.WithFields(logrus.Fields{
		"target":    q.Name,
		"maxRounds": l.maxRounds,
	}).Debug("Initial grounding")

	// One analysis raster for the whole attempt; pixel-coordinate replies
	// refer to its bounds.
	analysis := overlay.ScaleDown(page, l.maxImageEdge)

	current, found := l.localizer.Locate(ctx, analysis, q)
	if !found {
		return Result{Outcome: OutcomeNotFound, Rounds: 1}
	}

	quality := neutralQuality
	for round := 2; round <= l.maxRounds; round++ {
		annotated := l.mark(analysis, current)

		attempt, err := l.assessor.Assess(ctx, annotated, q, current, round)
		if annotated != analysis {
			overlay.Recycle(annotated)
		}
		if err != nil {
			l.log.WithError(err).Warn("Assessment failed, keeping current box")
			return Result{Outcome: OutcomeGaveUp, Box: current, Quality: quality, Rounds: round}
		}

		quality = attempt.QualityScore
		if quality >= l.qualityThreshold {
			l.log.WithFields(logrus.Fields{"round": round, "score": quality}).Debug("Quality meets threshold")
			return Result{Outcome: OutcomeConverged, Box: current, Quality: quality, Rounds: round}
		}

		if attempt.NeedsRefinement && attempt.Suggested != nil {
			delta := coords.Delta(*attempt.Suggested, current)
			if delta < plateauDelta {
				l.log.WithFields(logrus.Fields{"round": round, "delta": delta}).Debug("Suggestion plateaued, converged")
				return Result{Outcome: OutcomeConverged, Box: current, Quality: quality, Rounds: round}
			}
			l.log.WithFields(logrus.Fields{
				"round": round,
				"from":  current.Scaled1000(),
				"to":    attempt.Suggested.Scaled1000(),
				"delta": delta,
			}).Debug("Adopting refined box")
			current = *attempt.Suggested
			continue
		}

		l.log.WithField("round", round).Debug("No refinement suggested, keeping current box")
		return Result{Outcome: OutcomeConverged, Box: current, Quality: quality, Rounds: round}
	}

	l.log.WithField("rounds", l.maxRounds).Debug("Round budget exhausted, keeping current box")
	return Result{Outcome: OutcomeMaxRounds, Box: current, Quality: quality, Rounds: l.maxRounds}
}
