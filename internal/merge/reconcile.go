package merge

import (
	"sort"

	"github.com/trackless/cred1/internal/model"
)

// Observation is one native label reported by a source for a domain.
type Observation struct {
	Source model.Source
	Label  string
}

// Resolution is the reconciled view of all observations for one domain.
type Resolution struct {
	// Category is the unified category after conflict resolution: the least
	// credible real category wins; "other" only survives when no source
	// produced a real category.
	Category model.Category

	// CategoriesAll lists every distinct unified category observed, ordered
	// from least to most credible ("other" last).
	CategoriesAll []model.Category

	// Sources is the union of sources that produced any label, regardless of
	// which label won. Ordered opensources before iffy for stable output.
	Sources []model.Source
}

// Reconcile maps each observation through its source's label table and
// resolves conflicts. Reconciling a single observation, or the same category
// with itself, is a no-op by construction.
func Reconcile(obs []Observation) Resolution {
	res := Resolution{Category: model.CategoryOther}

	seenCat := make(map[model.Category]bool)
	seenSrc := make(map[model.Source]bool)
	for _, o := range obs {
		c := MapLabel(o.Source, o.Label)
		if !seenCat[c] {
			seenCat[c] = true
			res.CategoriesAll = append(res.CategoriesAll, c)
		}
		if !seenSrc[o.Source] {
			seenSrc[o.Source] = true
			res.Sources = append(res.Sources, o.Source)
		}
		res.Category = model.Worse(res.Category, c)
	}

	sort.Slice(res.CategoriesAll, func(i, j int) bool {
		return lessCredible(res.CategoriesAll[i], res.CategoriesAll[j])
	})
	sort.Slice(res.Sources, func(i, j int) bool {
		return sourceOrder(res.Sources[i]) < sourceOrder(res.Sources[j])
	})

	return res
}

// lessCredible orders categories by base score ascending, "other" last.
func lessCredible(a, b model.Category) bool {
	sa, oka := a.BaseScore()
	sb, okb := b.BaseScore()
	switch {
	case oka && okb:
		return sa < sb
	case oka:
		return true
	default:
		return false
	}
}

func sourceOrder(s model.Source) int {
	switch s {
	case model.SourceOpenSources:
		return 0
	case model.SourceIffy:
		return 1
	default:
		return 2
	}
}
