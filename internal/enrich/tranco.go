package enrich

import (
	"context"

	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/pkg/tranco"
)

// RankEnricher applies Tranco popularity ranks to records.
type RankEnricher struct {
	loader *tranco.Loader
}

// NewRankEnricher creates a RankEnricher.
func NewRankEnricher(loader *tranco.Loader) *RankEnricher {
	return &RankEnricher{loader: loader}
}

// Enrich loads the rank table and sets TrancoRank on every record found in
// it. Records absent from the list keep the signal absent.
func (e *RankEnricher) Enrich(ctx context.Context, records []*model.DomainRecord) (Stats, error) {
	table, err := e.loader.Load(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Processed: len(records)}
	for _, rec := range records {
		if rank, ok := table.Rank(rec.Domain); ok {
			rec.TrancoRank = model.Some(rank)
			stats.Enriched++
		} else {
			stats.Skipped++
		}
	}

	zap.L().Info("tranco enrichment complete",
		zap.Int("ranked", stats.Enriched),
		zap.Int("unranked", stats.Skipped),
		zap.Int("list_size", table.Len()),
	)
	return stats, nil
}
