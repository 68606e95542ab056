package model

// MatchKind describes how the matcher resolved a candidate.
type MatchKind string

// Match outcomes.
const (
	MatchExact          MatchKind = "exact"
	MatchFuzzy          MatchKind = "fuzzy"
	NoMatchEmptyCatalog MatchKind = "empty_catalog"
	NoMatchNoCandidates MatchKind = "no_candidates"
	NoMatchScoreTooLow  MatchKind = "score_too_low"
)

// MatchScore pairs a catalog drug with the weighted score a candidate earned against it.
type MatchScore struct {
	Reasons []string
	Drug    Drug
	Score   float64
}

// MatchResult is the matcher's decision for one candidate.
type MatchResult struct {
	Drug   *Drug       // Nil unless Matched
	Best   *MatchScore // Highest scoring candidate, kept for diagnostics
	Kind   MatchKind
	Reason string // Operator-facing explanation
}

// Matched reports whether a catalog drug was selected.
func (r MatchResult) Matched() bool {
	return r.Drug != nil
}
