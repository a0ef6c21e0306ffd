package locator

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/ekuzmin/pdffig/internal/coords"
	"github.com/ekuzmin/pdffig/internal/oracle"
	"github.com/ekuzmin/pdffig/internal/prompt"
)

// Oracle call temperatures, per call purpose.
const (
	groundingTemperature  = 0.1
	assessmentTemperature = 0.2
)

// Localizer issues the single initial "where is region X" request for a page.
type Localizer struct {
	oracle oracle.Oracle
	log    *logrus.Logger
}

func NewLocalizer(o oracle.Oracle, log *logrus.Logger) *Localizer {
	return &Localizer{oracle: o, log: log}
}

// Locate asks the oracle for the region's bounding box on the given page
// image. It returns the normalized box and true on a hit. A transport
// failure, a malformed reply and an explicit not-found all come back as
// (zero, false): the caller cannot distinguish them and must not try.
func (l *Localizer) Locate(ctx context.Context, img image.Image, q RegionQuery) (coords.BoundingBox, bool) {
	instructions := prompt.Grounding(q.Name, q.IsSubregion, q.IncludeAuxiliary)

	raw, err := l.oracle.Ask(ctx, img, instructions, groundingTemperature)
	if err != nil {
		l.log.WithError(err).WithField("target", q.Name).Warn("Grounding request failed, treating as no box")
		return coords.BoundingBox{}, false
	}

	reply, err := oracle.ParseGroundingReply(raw)
	if err != nil {
		l.log.WithError(err).WithField("target", q.Name).Warn("Grounding reply unusable, treating as no box")
		return coords.BoundingBox{}, false
	}

	if !reply.Found || reply.BBox == nil {
		return coords.BoundingBox{}, false
	}

	bounds := img.Bounds()
	box := coords.FromRaw(*reply.BBox, bounds.Dx(), bounds.Dy())
	l.log.WithFields(logrus.Fields{
		"target": q.Name,
		"bbox":   box.Scaled1000(),
	}).Debug("Initial grounding hit")
	return box, true
}
