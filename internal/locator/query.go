// Package locator contains the closed-loop region localization controller:
// a one-shot localizer, a one-shot quality assessor, the multi-round
// refinement loop that drives them, and the page search that walks candidate
// pages until the loop succeeds.
package locator

import (
	"regexp"
	"strings"
)

// RegionQuery identifies the target region. Its three fields fully determine
// which oracle instructions are used and are fixed for the lifetime of one
// localization attempt.
type RegionQuery struct {
	// Name is the normalized display name, e.g. "Figure 1" or "Table 2".
	Name string
	// IsSubregion is true when the name denotes a lettered sub-part of a
	// numbered figure/table, e.g. "Figure 1(a)".
	IsSubregion bool
	// IncludeAuxiliary selects whether caption, legend and notes belong in
	// the box, or only the primary visual content.
	IncludeAuxiliary bool
}

var (
	openParenRe  = regexp.MustCompile(`\s*\(\s*`)
	closeParenRe = regexp.MustCompile(`\s*\)\s*`)
	subregionRe  = regexp.MustCompile(`(?i)^(Figure|Table|Fig\.?)\s*\d+\s*[\(\[]?[a-zA-Z][\)\]]?`)
)

// NewRegionQuery normalizes the display name and derives the sub-region flag
// from its syntax.
func NewRegionQuery(name string, includeAuxiliary bool) RegionQuery {
	normalized := NormalizeName(name)
	return RegionQuery{
		Name:             normalized,
		IsSubregion:      subregionRe.MatchString(normalized),
		IncludeAuxiliary: includeAuxiliary,
	}
}

// NormalizeName trims the name and tightens whitespace around parentheses so
// "Figure 1 ( a )" and "Figure 1(a)" ask for the same region.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = openParenRe.ReplaceAllString(name, "(")
	name = closeParenRe.ReplaceAllString(name, ")")
	return name
}
