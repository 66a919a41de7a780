// Package suggest produces "did you mean" candidates for unresolved
// identifiers by case-insensitive edit distance.
package suggest

import (
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
)

// maxDistance is the inclusive edit-distance threshold: a candidate at
// distance 0, 1, or 2 from the target is accepted.
const maxDistance = 2

var fold = cases.Fold()

// Find returns the best candidate within maxDistance of name, comparing
// case-insensitively, or "" if none qualifies. Ties are broken by the
// order candidates are given in.
func Find(name string, candidates []string) (string, bool) {
	folded := fold.String(name)

	best := ""
	bestDist := maxDistance + 1
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(folded, fold.String(c))
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist > maxDistance {
		return "", false
	}
	return best, true
}
