package matcher

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Similarity returns a normalized edit-distance ratio in [0,1] between a and b,
// ignoring case. Identical strings score 1 and an empty side scores 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	fold := cases.Fold()
	a, b = fold.String(a), fold.String(b)
	if a == b {
		return 1
	}

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}

	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// equalFold reports whether a and b are equal under Unicode case folding.
func equalFold(a, b string) bool {
	fold := cases.Fold()
	return fold.String(a) == fold.String(b)
}
