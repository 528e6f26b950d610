package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/internal/score"
)

func scoredRecord(t *testing.T, rec *model.DomainRecord) *model.DomainRecord {
	t.Helper()
	s := score.New(score.DefaultWeights(), score.OtherAsMixed)
	require.NoError(t, s.Score(rec))
	return rec
}

func TestRowFromRecord(t *testing.T) {
	rec := scoredRecord(t, &model.DomainRecord{
		Domain:              "hoax.example",
		Category:            model.CategoryFake,
		Sources:             []model.Source{model.SourceOpenSources, model.SourceIffy},
		IffyFactual:         "VL",
		IffyScore:           model.Some(0.02),
		TrancoRank:          model.Some(3509),
		DomainRegistered:    model.Some("1999-05-12"),
		DomainAgeYears:      model.Some(27.3),
		SafeBrowsingFlagged: true,
	})

	row := RowFromRecord(rec)
	assert.Equal(t, "hoax.example", row.Domain)
	assert.Equal(t, "fake", row.Category)
	assert.Equal(t, "opensources|iffy", row.Sources)
	assert.Equal(t, 2, row.N)
	require.NotNil(t, row.TrancoRank)
	assert.Equal(t, 3509, *row.TrancoRank)
	assert.Equal(t, "1999-05-12", row.DomainRegistered)
	require.NotNil(t, row.SafeBrowsingFlagged)
	assert.True(t, *row.SafeBrowsingFlagged)
	assert.Equal(t, "flagged", row.ScoreSafeBrowsing)
	assert.Equal(t, 0.0, row.ScoreCat)
	// flagged domains cap at 0.05, and fake with a low iffy score sits below it
	assert.LessOrEqual(t, row.CredibilityScore, 0.05)

	// absent signals stay empty, never zero-filled
	assert.Nil(t, row.FactcheckClaims)
	assert.Nil(t, row.ScoreFactcheck)
}

func TestRowsSortedByScoreThenDomain(t *testing.T) {
	records := []*model.DomainRecord{
		scoredRecord(t, &model.DomainRecord{Domain: "b.example", Category: model.CategoryReliable}),
		scoredRecord(t, &model.DomainRecord{Domain: "a.example", Category: model.CategoryReliable}),
		scoredRecord(t, &model.DomainRecord{Domain: "z.example", Category: model.CategoryFake}),
	}

	rows := Rows(records)
	require.Len(t, rows, 3)
	assert.Equal(t, "z.example", rows[0].Domain)
	assert.Equal(t, "a.example", rows[1].Domain)
	assert.Equal(t, "b.example", rows[2].Domain)
}

func TestCompactRoundTripMatchesRecord(t *testing.T) {
	rec := scoredRecord(t, &model.DomainRecord{
		Domain:         "old.example",
		Category:       model.CategoryMixed,
		Sources:        []model.Source{model.SourceIffy},
		TrancoRank:     model.Some(1200),
		DomainAgeYears: model.Some(21.46),
	})

	fromRecord := CompactFromRecord(rec)
	fromRow := CompactFromRow(RowFromRecord(rec))

	assert.Equal(t, fromRecord.S, fromRow.S)
	assert.Equal(t, fromRecord.C, fromRow.C)
	assert.Equal(t, fromRecord.N, fromRow.N)
	require.NotNil(t, fromRow.R)
	assert.Equal(t, *fromRecord.R, *fromRow.R)
	require.NotNil(t, fromRow.A)
	assert.Equal(t, 21.5, *fromRow.A)
}

func TestWriteFullCSVHeaderAndCells(t *testing.T) {
	rec := scoredRecord(t, &model.DomainRecord{
		Domain:   "plain.example",
		Category: model.CategorySatire,
		Sources:  []model.Source{model.SourceOpenSources},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteFullCSV(&buf, Rows([]*model.DomainRecord{rec})))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	header := strings.Split(lines[0], ",")
	assert.Len(t, header, 18)
	assert.Equal(t, "domain", header[0])
	assert.Equal(t, "credibility_score", header[17])

	// optional cells are empty for a record with no enrichment
	cells := strings.Split(lines[1], ",")
	require.Len(t, cells, 18)
	assert.Equal(t, "plain.example", cells[0])
	assert.Equal(t, "satire", cells[1])
	assert.Equal(t, "", cells[6]) // tranco_rank
}

func TestFullCSVRoundTrip(t *testing.T) {
	records := []*model.DomainRecord{
		scoredRecord(t, &model.DomainRecord{
			Domain:          "hoax.example",
			Category:        model.CategoryFake,
			Sources:         []model.Source{model.SourceOpenSources, model.SourceIffy},
			TrancoRank:      model.Some(3509),
			FactcheckClaims: model.Some(12),
		}),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFullCSV(&buf, Rows(records)))

	rows, err := ReadFullCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hoax.example", rows[0].Domain)
	assert.Equal(t, []model.Source{model.SourceOpenSources, model.SourceIffy}, SplitSources(rows[0].Sources))
	require.NotNil(t, rows[0].FactcheckClaims)
	assert.Equal(t, 12, *rows[0].FactcheckClaims)
}

func TestWriteCompactStableAndMinified(t *testing.T) {
	records := []*model.DomainRecord{
		scoredRecord(t, &model.DomainRecord{Domain: "b.example", Category: model.CategoryFake, Sources: []model.Source{model.SourceOpenSources}}),
		scoredRecord(t, &model.DomainRecord{Domain: "a.example", Category: model.CategoryReliable, Sources: []model.Source{model.SourceIffy}}),
	}

	var first, second bytes.Buffer
	require.NoError(t, WriteCompact(&first, Compact(records)))
	require.NoError(t, WriteCompact(&second, Compact(records)))

	assert.Equal(t, first.String(), second.String())
	assert.NotContains(t, first.String(), "\n")
	assert.Less(t, strings.Index(first.String(), "a.example"), strings.Index(first.String(), "b.example"))

	entries, err := ReadCompact(&first)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "f", entries["b.example"].C)
}

func TestMergedRoundTripPreservesOptionality(t *testing.T) {
	records := []*model.DomainRecord{
		scoredRecord(t, &model.DomainRecord{
			Domain:     "zeta.example",
			Category:   model.CategoryMixed,
			Sources:    []model.Source{model.SourceIffy},
			TrancoRank: model.Some(77),
		}),
		scoredRecord(t, &model.DomainRecord{
			Domain:   "alpha.example",
			Category: model.CategoryFake,
			Sources:  []model.Source{model.SourceOpenSources},
		}),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMerged(&buf, records))

	decoded, err := ReadMerged(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 2)

	// sorted by domain on write
	assert.Equal(t, "alpha.example", decoded[0].Domain)
	assert.False(t, decoded[0].TrancoRank.Present())

	rank, ok := decoded[1].TrancoRank.Get()
	require.True(t, ok)
	assert.Equal(t, 77, rank)
}

func TestSplitSourcesEmpty(t *testing.T) {
	assert.Nil(t, SplitSources(""))
}

func TestFormatRank(t *testing.T) {
	r := 42
	assert.Equal(t, "42", FormatRank(&r))
	assert.Equal(t, "", FormatRank(nil))
}
