// Package dataset assembles scored domain records into the two published
// output formats: the full 18-column CSV and the compact JSON map. Optional
// fields are left empty (full) or omitted (compact), never zero-filled.
package dataset

import (
	"strconv"
	"strings"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/internal/score"
)

// sourceSeparator joins source names inside a single CSV field.
const sourceSeparator = "|"

// scoreSafeBrowsingFlagged is the score_safebrowsing column value for
// flagged domains; unflagged domains leave the column empty.
const scoreSafeBrowsingFlagged = "flagged"

// FullRow is one row of the full-precision CSV output. Pointer fields encode
// as empty cells when nil.
type FullRow struct {
	Domain              string   `csv:"domain" json:"domain"`
	Category            string   `csv:"category" json:"category"`
	Sources             string   `csv:"sources" json:"sources"`
	N                   int      `csv:"n" json:"n"`
	IffyFactual         string   `csv:"iffy_factual" json:"iffy_factual,omitempty"`
	IffyScore           *float64 `csv:"iffy_score" json:"iffy_score,omitempty"`
	TrancoRank          *int     `csv:"tranco_rank" json:"tranco_rank,omitempty"`
	DomainRegistered    string   `csv:"domain_registered" json:"domain_registered,omitempty"`
	DomainAgeYears      *float64 `csv:"domain_age_years" json:"domain_age_years,omitempty"`
	FactcheckClaims     *int     `csv:"factcheck_claims" json:"factcheck_claims,omitempty"`
	SafeBrowsingFlagged *bool    `csv:"safe_browsing_flagged" json:"safe_browsing_flagged,omitempty"`
	ScoreCat            float64  `csv:"score_cat" json:"score_cat"`
	ScoreIffy           *float64 `csv:"score_iffy" json:"score_iffy,omitempty"`
	ScoreTranco         *float64 `csv:"score_tranco" json:"score_tranco,omitempty"`
	ScoreAge            *float64 `csv:"score_age" json:"score_age,omitempty"`
	ScoreFactcheck      *float64 `csv:"score_factcheck" json:"score_factcheck,omitempty"`
	ScoreSafeBrowsing   string   `csv:"score_safebrowsing" json:"score_safebrowsing,omitempty"`
	CredibilityScore    float64  `csv:"credibility_score" json:"credibility_score"`
}

// RowFromRecord flattens a scored record into a FullRow. The record must
// have been scored (Components set); unscored records produce a row with
// zero scores, which the caller should treat as a bug.
func RowFromRecord(rec *model.DomainRecord) FullRow {
	row := FullRow{
		Domain:           rec.Domain,
		Category:         string(rec.Category),
		Sources:          joinSources(rec.Sources),
		N:                rec.ConsensusCount(),
		IffyFactual:      rec.IffyFactual,
		IffyScore:        optFloat(rec.IffyScore),
		TrancoRank:       optInt(rec.TrancoRank),
		DomainRegistered: rec.DomainRegistered.OrElse(""),
		DomainAgeYears:   optFloat(rec.DomainAgeYears),
		FactcheckClaims:  optInt(rec.FactcheckClaims),
		CredibilityScore: rec.CredibilityScore,
	}

	if rec.SafeBrowsingFlagged {
		t := true
		row.SafeBrowsingFlagged = &t
	}

	if c := rec.Components; c != nil {
		row.ScoreCat = c.Cat
		row.ScoreIffy = optFloat(c.Iffy)
		row.ScoreTranco = optFloat(c.Tranco)
		row.ScoreAge = optFloat(c.Age)
		row.ScoreFactcheck = optFloat(c.Factcheck)
		if c.SafeBrowsing {
			row.ScoreSafeBrowsing = scoreSafeBrowsingFlagged
		}
	}

	return row
}

// CompactEntry is one value of the compact JSON map: score, category code,
// consensus count, and optionally the Tranco rank and domain age.
type CompactEntry struct {
	S float64  `json:"s"`
	C string   `json:"c"`
	N int      `json:"n"`
	R *int     `json:"r,omitempty"`
	A *float64 `json:"a,omitempty"`
}

// CompactFromRecord builds the compact entry for a scored record.
func CompactFromRecord(rec *model.DomainRecord) CompactEntry {
	e := CompactEntry{
		S: score.Round(rec.CredibilityScore, 2),
		C: rec.Category.Short(),
		N: rec.ConsensusCount(),
		R: optInt(rec.TrancoRank),
	}
	if a, ok := rec.DomainAgeYears.Get(); ok {
		r := score.Round(a, 1)
		e.A = &r
	}
	return e
}

// CompactFromRow reconstructs the compact entry from a full-format row.
// It matches CompactFromRecord for the same underlying record.
func CompactFromRow(row FullRow) CompactEntry {
	e := CompactEntry{
		S: score.Round(row.CredibilityScore, 2),
		C: model.Category(row.Category).Short(),
		N: row.N,
	}
	if row.TrancoRank != nil {
		r := *row.TrancoRank
		e.R = &r
	}
	if row.DomainAgeYears != nil {
		a := score.Round(*row.DomainAgeYears, 1)
		e.A = &a
	}
	return e
}

func joinSources(sources []model.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, sourceSeparator)
}

// SplitSources parses a sources CSV field back into source flags.
func SplitSources(field string) []model.Source {
	if field == "" {
		return nil
	}
	parts := strings.Split(field, sourceSeparator)
	out := make([]model.Source, len(parts))
	for i, p := range parts {
		out[i] = model.Source(p)
	}
	return out
}

func optFloat(o model.Option[float64]) *float64 {
	if v, ok := o.Get(); ok {
		return &v
	}
	return nil
}

func optInt(o model.Option[int]) *int {
	if v, ok := o.Get(); ok {
		return &v
	}
	return nil
}

// FormatRank renders a rank for logs and tables.
func FormatRank(r *int) string {
	if r == nil {
		return ""
	}
	return strconv.Itoa(*r)
}
