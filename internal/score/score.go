// Package score implements the weighted-blend composite credibility scorer.
package score

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/internal/signal"
)

// UnscoredCategoryError reports a category with no base score reaching the
// scorer. It is fatal for the record unless a fallback policy resolves it
// upstream; the scorer never silently defaults.
type UnscoredCategoryError struct {
	Category model.Category
}

func (e *UnscoredCategoryError) Error() string {
	return fmt.Sprintf("category %q has no base score", e.Category)
}

// OtherPolicy controls how records categorized "other" are scored.
type OtherPolicy string

const (
	// OtherAsMixed scores "other" with the "mixed" base score.
	OtherAsMixed OtherPolicy = "mixed"
	// OtherRejected fails "other" records with UnscoredCategoryError.
	OtherRejected OtherPolicy = "reject"
)

// Scorer computes composite credibility scores from a record's category and
// raw enrichment signals. It is pure over its inputs: identical records
// always produce identical scores.
type Scorer struct {
	weights Weights
	policy  OtherPolicy
}

// New creates a Scorer. An empty policy defaults to OtherAsMixed.
func New(w Weights, policy OtherPolicy) *Scorer {
	if policy == "" {
		policy = OtherAsMixed
	}
	return &Scorer{weights: w, policy: policy}
}

// Components normalizes the record's available raw signals. Range errors
// degrade the affected signal to absent and are logged, never propagated.
func (s *Scorer) Components(rec *model.DomainRecord) (*model.ScoreComponents, error) {
	cat, err := s.categoryScore(rec.Category)
	if err != nil {
		return nil, err
	}

	c := &model.ScoreComponents{
		Cat:          cat,
		Iffy:         normalize(rec.Domain, rec.IffyScore, signal.Iffy),
		Tranco:       normalize(rec.Domain, rec.TrancoRank, signal.Tranco),
		Age:          normalize(rec.Domain, rec.DomainAgeYears, signal.Age),
		Factcheck:    normalize(rec.Domain, rec.FactcheckClaims, signal.Factcheck),
		SafeBrowsing: rec.SafeBrowsingFlagged,
	}
	return c, nil
}

// Composite blends the available components with fixed weights. Weight
// unused by absent signals falls back to the category signal, so the total
// weight is always exactly 1. The safe-browsing override caps the result at
// 0.05 and is applied last, never averaged in.
func (s *Scorer) Composite(c *model.ScoreComponents) float64 {
	w := s.weights

	sum := 0.0
	active := 0.0
	if v, ok := c.Iffy.Get(); ok {
		sum += w.Iffy * v
		active += w.Iffy
	}
	if v, ok := c.Factcheck.Get(); ok {
		sum += w.Factcheck * v
		active += w.Factcheck
	}
	if v, ok := c.Tranco.Get(); ok {
		sum += w.Tranco * v
		active += w.Tranco
	}
	if v, ok := c.Age.Get(); ok {
		sum += w.Age * v
		active += w.Age
	}

	wFill := 1.0 - w.Cat - active
	composite := (w.Cat+wFill)*c.Cat + sum

	if c.SafeBrowsing {
		composite = math.Min(composite, 0.05)
	}

	return clamp01(composite)
}

// Score recomputes the record's derived state: normalized components and the
// composite score rounded to 3 decimals.
func (s *Scorer) Score(rec *model.DomainRecord) error {
	c, err := s.Components(rec)
	if err != nil {
		return err
	}
	rec.Components = c
	rec.CredibilityScore = Round(s.Composite(c), 3)
	return nil
}

func (s *Scorer) categoryScore(cat model.Category) (float64, error) {
	if v, ok := cat.BaseScore(); ok {
		return v, nil
	}
	if cat == model.CategoryOther && s.policy == OtherAsMixed {
		v, _ := model.CategoryMixed.BaseScore()
		return v, nil
	}
	return 0, &UnscoredCategoryError{Category: cat}
}

// normalize runs a signal normalizer and degrades range errors to absence.
func normalize[T any](domain string, raw model.Option[T], fn func(model.Option[T]) (model.Option[float64], error)) model.Option[float64] {
	v, err := fn(raw)
	if err != nil {
		zap.L().Warn("score: raw signal out of range, treating as absent",
			zap.String("domain", domain),
			zap.Error(err),
		)
		return model.None[float64]()
	}
	return v
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
