package merge

import "github.com/trackless/cred1/internal/model"

// openSourcesLabels maps OpenSources native type labels to unified
// categories. The upstream data is hand-maintained, so the table carries the
// misspelled, mis-cased, and whitespace-padded variants that actually occur.
var openSourcesLabels = map[string]model.Category{
	"fake":        model.CategoryFake,
	"fake news":   model.CategoryFake,
	"Fake":        model.CategoryFake,
	"fake ":       model.CategoryFake,
	"bias":        model.CategoryMixed,
	"conspiracy":  model.CategoryConspiracy,
	"Conspiracy":  model.CategoryConspiracy,
	"satire":      model.CategorySatire,
	"satirical":   model.CategorySatire,
	"unreliable":  model.CategoryUnreliable,
	"unrealiable": model.CategoryUnreliable,
	" unreliable": model.CategoryUnreliable,
	"clickbait":   model.CategoryUnreliable,
	"political":   model.CategoryMixed,
	"Political":   model.CategoryMixed,
	"junksci":     model.CategoryUnreliable,
	"hate":        model.CategoryUnreliable,
	"rumor":       model.CategoryUnreliable,
	"rumor ":      model.CategoryUnreliable,
	"reliable":    model.CategoryReliable,
	"state":       model.CategoryMixed,
	"blog":        model.CategoryOther,
}

// iffyFactualLabels maps Iffy.news MBFC factual ratings to unified categories.
var iffyFactualLabels = map[string]model.Category{
	"VL": model.CategoryFake,
	"L":  model.CategoryUnreliable,
	"M":  model.CategoryMixed,
	"MH": model.CategoryMostlyReliable,
	"H":  model.CategoryReliable,
	"VH": model.CategoryReliable,
}

// MapLabel translates a source's native label into the unified taxonomy.
// Unmapped labels resolve to "other".
func MapLabel(source model.Source, label string) model.Category {
	var table map[string]model.Category
	switch source {
	case model.SourceOpenSources:
		table = openSourcesLabels
	case model.SourceIffy:
		table = iffyFactualLabels
	default:
		return model.CategoryOther
	}
	if c, ok := table[label]; ok {
		return c
	}
	return model.CategoryOther
}
