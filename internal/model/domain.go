// Package model defines the unified category taxonomy and the per-domain
// record that flows through the merge, enrichment, and scoring stages.
package model

// Category is a unified credibility category. Both source lists map their
// native label vocabularies into this taxonomy.
type Category string

const (
	CategoryFake           Category = "fake"
	CategoryConspiracy     Category = "conspiracy"
	CategoryUnreliable     Category = "unreliable"
	CategorySatire         Category = "satire"
	CategoryMixed          Category = "mixed"
	CategoryMostlyReliable Category = "mostly_reliable"
	CategoryReliable       Category = "reliable"
	CategoryOther          Category = "other"
)

// baseScores maps each category to its base credibility score. Loaded once,
// never mutated. "other" has no base score on purpose: an unclassifiable
// domain must be resolved by policy before it can be scored.
var baseScores = map[Category]float64{
	CategoryFake:           0.0,
	CategoryConspiracy:     0.1,
	CategoryUnreliable:     0.2,
	CategorySatire:         0.3,
	CategoryMixed:          0.5,
	CategoryMostlyReliable: 0.8,
	CategoryReliable:       1.0,
}

// BaseScore returns the category's base credibility score. The second return
// is false for "other" and for unknown categories.
func (c Category) BaseScore() (float64, bool) {
	s, ok := baseScores[c]
	return s, ok
}

// Valid reports whether c is one of the taxonomy's categories.
func (c Category) Valid() bool {
	if c == CategoryOther {
		return true
	}
	_, ok := baseScores[c]
	return ok
}

// Short returns the category's single-letter code used by the compact output.
func (c Category) Short() string {
	if c == "" {
		return ""
	}
	return string(c[0])
}

// Worse returns the less credible of two categories, i.e. the one with the
// lower base score. "other" has no base score and loses to any real category;
// two "other"s stay "other".
func Worse(a, b Category) Category {
	sa, oka := a.BaseScore()
	sb, okb := b.BaseScore()
	switch {
	case !oka && !okb:
		return CategoryOther
	case !oka:
		return b
	case !okb:
		return a
	case sb < sa:
		return b
	default:
		return a
	}
}

// Source identifies an upstream label source.
type Source string

const (
	SourceOpenSources Source = "opensources"
	SourceIffy        Source = "iffy"
)

// ScoreComponents holds the normalized per-signal scores that feed the
// composite. Cat is set for every scored record; the rest mirror the
// optionality of their raw signals.
type ScoreComponents struct {
	Cat          float64         `json:"category"`
	Iffy         Option[float64] `json:"iffy,omitzero"`
	Tranco       Option[float64] `json:"tranco,omitzero"`
	Age          Option[float64] `json:"age,omitzero"`
	Factcheck    Option[float64] `json:"factcheck,omitzero"`
	SafeBrowsing bool            `json:"safe_browsing,omitempty"`
}

// DomainRecord is one row of the credibility registry, keyed by the
// canonical domain. Raw signals are filled in by the enrichment steps;
// each is independently present or absent.
type DomainRecord struct {
	Domain        string     `json:"domain"`
	Category      Category   `json:"category"`
	CategoriesAll []Category `json:"categories_all,omitempty"`
	Sources       []Source   `json:"sources"`

	// Native label provenance.
	OpenSourcesTypes []string `json:"opensources_types,omitempty"`
	IffyFactual      string   `json:"iffy_factual,omitempty"`
	IffyName         string   `json:"iffy_name,omitempty"`

	// Raw enrichment signals.
	IffyScore           Option[float64] `json:"iffy_score,omitzero"`
	TrancoRank          Option[int]     `json:"tranco_rank,omitzero"`
	DomainRegistered    Option[string]  `json:"domain_registered,omitzero"`
	DomainAgeYears      Option[float64] `json:"domain_age_years,omitzero"`
	FactcheckClaims     Option[int]     `json:"factcheck_claims,omitzero"`
	SafeBrowsingFlagged bool            `json:"safe_browsing_flagged,omitempty"`

	// Derived state, recomputed whenever any input changes.
	Components       *ScoreComponents `json:"score_components,omitempty"`
	CredibilityScore float64          `json:"credibility_score"`
}

// ConsensusCount is the number of distinct sources that flagged the domain.
func (r *DomainRecord) ConsensusCount() int {
	return len(r.Sources)
}

// HasSource reports whether the record carries a label from the given source.
func (r *DomainRecord) HasSource(s Source) bool {
	for _, src := range r.Sources {
		if src == s {
			return true
		}
	}
	return false
}
