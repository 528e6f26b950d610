package pipeline

import (
	"sort"

	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/merge"
	"github.com/trackless/cred1/internal/model"
)

// MergeStats summarizes the reconciliation of both source lists.
type MergeStats struct {
	OpenSourcesSites int            `json:"opensources_sites"`
	IffySites        int            `json:"iffy_sites"`
	Invalid          int            `json:"invalid"`
	Overlap          int            `json:"overlap"`
	Domains          int            `json:"domains"`
	ByCategory       map[string]int `json:"by_category"`
}

// domainAccumulator gathers per-domain evidence before reconciliation.
type domainAccumulator struct {
	observations     []merge.Observation
	openSourcesTypes []string
	iffy             *IffySite
}

// BuildRecords normalizes both source lists, reconciles conflicting labels
// per domain, and returns merged records sorted by domain. Rows with invalid
// domains are counted and dropped.
func BuildRecords(openSources []OpenSourcesSite, iffy []IffySite) ([]*model.DomainRecord, MergeStats) {
	stats := MergeStats{
		OpenSourcesSites: len(openSources),
		IffySites:        len(iffy),
		ByCategory:       make(map[string]int),
	}
	acc := make(map[string]*domainAccumulator)

	get := func(domain string) *domainAccumulator {
		a, ok := acc[domain]
		if !ok {
			a = &domainAccumulator{}
			acc[domain] = a
		}
		return a
	}

	for _, site := range openSources {
		domain, err := merge.NormalizeDomain(site.Domain)
		if err != nil {
			stats.Invalid++
			zap.L().Warn("dropping invalid OpenSources domain",
				zap.String("input", site.Domain), zap.Error(err))
			continue
		}
		a := get(domain)
		a.openSourcesTypes = append(a.openSourcesTypes, site.Labels...)
		for _, label := range site.Labels {
			a.observations = append(a.observations, merge.Observation{
				Source: model.SourceOpenSources,
				Label:  label,
			})
		}
	}

	for i := range iffy {
		domain, err := merge.NormalizeDomain(iffy[i].Domain)
		if err != nil {
			stats.Invalid++
			zap.L().Warn("dropping invalid Iffy domain",
				zap.String("input", iffy[i].Domain), zap.Error(err))
			continue
		}
		a := get(domain)
		a.iffy = &iffy[i]
		a.observations = append(a.observations, merge.Observation{
			Source: model.SourceIffy,
			Label:  iffy[i].Factual,
		})
	}

	records := make([]*model.DomainRecord, 0, len(acc))
	for domain, a := range acc {
		res := merge.Reconcile(a.observations)

		rec := &model.DomainRecord{
			Domain:           domain,
			Category:         res.Category,
			CategoriesAll:    res.CategoriesAll,
			Sources:          res.Sources,
			OpenSourcesTypes: a.openSourcesTypes,
		}
		if a.iffy != nil {
			rec.IffyFactual = a.iffy.Factual
			rec.IffyName = a.iffy.Name
			rec.IffyScore = a.iffy.Score
		}

		if len(res.Sources) > 1 {
			stats.Overlap++
		}
		stats.ByCategory[string(res.Category)]++
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Domain < records[j].Domain })
	stats.Domains = len(records)

	zap.L().Info("merged source lists",
		zap.Int("opensources", stats.OpenSourcesSites),
		zap.Int("iffy", stats.IffySites),
		zap.Int("domains", stats.Domains),
		zap.Int("overlap", stats.Overlap),
		zap.Int("invalid", stats.Invalid),
	)
	return records, stats
}
