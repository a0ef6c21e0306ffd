package locator

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ekuzmin/pdffig/internal/coords"
	"github.com/ekuzmin/pdffig/internal/oracle"
	"github.com/ekuzmin/pdffig/internal/prompt"
)

// RefinementAttempt is the per-round record the loop decides on. It is not
// persisted beyond the loop.
type RefinementAttempt struct {
	Round           int
	Box             coords.BoundingBox
	QualityScore    int
	Issues          []string
	NeedsRefinement bool
	Suggested       *coords.BoundingBox
}

// Assessor issues one "score this candidate box" request per round against
// the marker-annotated page image.
type Assessor struct {
	oracle oracle.Oracle
	log    *logrus.Logger
}

func NewAssessor(o oracle.Oracle, log *logrus.Logger) *Assessor {
	return &Assessor{oracle: o, log: log}
}

// Assess evaluates the current box. A transport failure or malformed reply
// is returned as an error; the loop treats it as "stop refining, keep the
// current box", never as a hard failure.
func (a *Assessor) Assess(ctx context.Context, annotated image.Image, q RegionQuery, current coords.BoundingBox, round int) (RefinementAttempt, error) {
	instructions := prompt.Assessment(q.Name, q.IsSubregion, q.IncludeAuxiliary, current.Scaled1000())

	raw, err := a.oracle.Ask(ctx, annotated, instructions, assessmentTemperature)
	if err != nil {
		return RefinementAttempt{}, fmt.Errorf("assessment round %d: %w", round, err)
	}

	reply, err := oracle.ParseAssessmentReply(raw)
	if err != nil {
		return RefinementAttempt{}, fmt.Errorf("assessment round %d: %w", round, err)
	}

	attempt := RefinementAttempt{
		Round:           round,
		Box:             current,
		QualityScore:    int(math.Round(reply.QualityScore)),
		Issues:          reply.Issues,
		NeedsRefinement: reply.NeedsRefinement,
	}
	if reply.RefinedBBox != nil {
		bounds := annotated.Bounds()
		suggested := coords.FromRaw(*reply.RefinedBBox, bounds.Dx(), bounds.Dy())
		attempt.Suggested = &suggested
	}

	fields := logrus.Fields{
		"target": q.Name,
		"round":  round,
		"score":  attempt.QualityScore,
	}
	if q.IncludeAuxiliary && !q.IsSubregion && reply.CaptionStatus != "" {
		fields["captionStatus"] = reply.CaptionStatus
	}
	a.log.WithFields(fields).Debug("Assessment reply")
	for _, issue := range attempt.Issues {
		a.log.WithField("round", round).Debugf("Issue: %s", issue)
	}

	return attempt, nil
}
