// Package matcher resolves extracted drug records against the catalog.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/drug-deposit/internal/common"
	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/service"
)

// Config holds the scoring thresholds and weights.
type Config struct {
	NameThreshold   float64 // Name similarity must exceed this to count
	DoseThreshold   float64 // Dose similarity must exceed this for the partial dose credit
	LoteThreshold   float64 // Lote similarity must exceed this to count
	NameWeight      float64
	DoseExactWeight float64
	DoseNearWeight  float64
	UnitsWeight     float64
	ExpiryWeight    float64
	LoteWeight      float64
	AcceptScore     float64 // Minimum total score for a fuzzy match
}

// DefaultConfig returns the standard rubric.
func DefaultConfig() Config {
	return Config{
		NameThreshold:   0.85,
		DoseThreshold:   0.8,
		LoteThreshold:   0.7,
		NameWeight:      4,
		DoseExactWeight: 2,
		DoseNearWeight:  1,
		UnitsWeight:     1,
		ExpiryWeight:    2,
		LoteWeight:      0.5,
		AcceptScore:     5.0,
	}
}

// Accepts reports whether a fuzzy score is high enough to select a drug.
func (c Config) Accepts(score float64) bool {
	return score >= c.AcceptScore
}

// Matcher decides which catalog drug, if any, a candidate refers to.
type Matcher struct {
	catalog service.Catalog
	config  Config
}

// New creates a matcher over the given catalog.
func New(catalog service.Catalog, config Config) *Matcher {
	return &Matcher{
		catalog: catalog,
		config:  config,
	}
}

// Match resolves a candidate record. A result without a drug is not an error;
// its Kind and Reason explain why nothing was selected.
func (m *Matcher) Match(ctx context.Context, candidate model.CandidateRecord) (model.MatchResult, error) {
	c := candidate.Normalized()
	if c.Name == "" {
		return model.MatchResult{}, common.ErrMissingName
	}

	drugs, err := m.catalog.ListDrugs(ctx)
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("failed to list drugs: %w", err)
	}
	if len(drugs) == 0 {
		return model.MatchResult{
			Kind:   model.NoMatchEmptyCatalog,
			Reason: "database is empty",
		}, nil
	}

	exact, err := m.catalog.FindExact(ctx, c.Name, c.Dose, c.Lote)
	if err != nil {
		return model.MatchResult{}, fmt.Errorf("failed to find exact match: %w", err)
	}
	if exact != nil {
		return model.MatchResult{
			Drug:   exact,
			Kind:   model.MatchExact,
			Reason: fmt.Sprintf("exact match found (ID: %d)", exact.ID),
		}, nil
	}

	var best *model.MatchScore
	for _, drug := range drugs {
		scored := m.Score(c, drug)
		if scored.Score <= 0 {
			continue
		}
		if best == nil || scored.Score > best.Score {
			best = &scored
			continue
		}
		if scored.Score == best.Score {
			slog.Debug("Ambiguous match, keeping first candidate",
				"name", c.Name,
				"kept_id", best.Drug.ID,
				"tied_id", drug.ID,
				"score", scored.Score)
		}
	}

	if best == nil {
		return model.MatchResult{
			Kind:   model.NoMatchNoCandidates,
			Reason: "no similar drugs found in database",
		}, nil
	}

	if !m.config.Accepts(best.Score) {
		return model.MatchResult{
			Best:   best,
			Kind:   model.NoMatchScoreTooLow,
			Reason: fmt.Sprintf("best match score too low (%.1f)", best.Score),
		}, nil
	}

	drug := best.Drug
	return model.MatchResult{
		Drug: &drug,
		Best: best,
		Kind: model.MatchFuzzy,
		Reason: fmt.Sprintf("close match (ID: %d, score: %.1f, %s)",
			drug.ID, best.Score, strings.Join(best.Reasons, ", ")),
	}, nil
}

// Score applies the weighted rubric of one normalized candidate against one drug.
func (m *Matcher) Score(c model.CandidateRecord, drug model.Drug) model.MatchScore {
	var (
		score   float64
		reasons []string
	)

	if sim := Similarity(c.Name, drug.Name); sim > m.config.NameThreshold {
		score += sim * m.config.NameWeight
		reasons = append(reasons, fmt.Sprintf("name:%.2f", sim))
	}

	if c.Dose != "" && drug.Dose != "" {
		switch {
		case equalFold(c.Dose, drug.Dose):
			score += m.config.DoseExactWeight
			reasons = append(reasons, "dose:exact")
		case Similarity(c.Dose, drug.Dose) > m.config.DoseThreshold:
			score += m.config.DoseNearWeight
			reasons = append(reasons, "dose:similar")
		}
	}

	if c.Units != "" && drug.Units != "" && equalFold(c.Units, drug.Units) {
		score += m.config.UnitsWeight
		reasons = append(reasons, "units:match")
	}

	if c.Expiration != "" && drug.Expiration != "" && c.Expiration == drug.Expiration {
		score += m.config.ExpiryWeight
		reasons = append(reasons, "exp:match")
	}

	if c.Lote != "" && drug.Lote != "" {
		if sim := Similarity(c.Lote, drug.Lote); sim > m.config.LoteThreshold {
			score += sim * m.config.LoteWeight
			reasons = append(reasons, fmt.Sprintf("lote:%.2f", sim))
		}
	}

	return model.MatchScore{
		Drug:    drug,
		Score:   score,
		Reasons: reasons,
	}
}
