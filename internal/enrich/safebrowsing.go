package enrich

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/internal/resilience"
	"github.com/trackless/cred1/internal/store"
	"github.com/trackless/cred1/pkg/safebrowsing"
)

const safebrowsingCacheTTL = 24 * time.Hour

// cachedFlag is the lookup cache value for Safe Browsing, one row per domain.
type cachedFlag struct {
	Flagged bool `json:"flagged"`
}

// FlagEnricher sets SafeBrowsingFlagged from Safe Browsing threat matches.
type FlagEnricher struct {
	client  safebrowsing.Client
	cache   store.Store
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewFlagEnricher creates a FlagEnricher. cache may be nil.
func NewFlagEnricher(client safebrowsing.Client, cache store.Store) *FlagEnricher {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("safebrowsing", "threat_matches")
	return &FlagEnricher{
		client:  client,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		retry:   cfg,
	}
}

// Enrich checks up to limit records (0 = all) against the threat lists.
// The client batches internally; a failed batch leaves its domains unflagged.
func (e *FlagEnricher) Enrich(ctx context.Context, records []*model.DomainRecord, limit int) (Stats, error) {
	byDomain := make(map[string]*model.DomainRecord, len(records))
	pending := make([]string, 0, len(records))
	stats := Stats{}

	for _, rec := range records {
		byDomain[rec.Domain] = rec
		if limit > 0 && len(pending) >= limit {
			continue
		}
		if flagged, ok := e.cachedFlag(ctx, rec.Domain); ok {
			rec.SafeBrowsingFlagged = flagged
			stats.Cached++
			if flagged {
				stats.Enriched++
			}
			continue
		}
		pending = append(pending, rec.Domain)
	}
	stats.Processed = stats.Cached + len(pending)

	if len(pending) > 0 {
		flagged, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (map[string]bool, error) {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return e.client.CheckDomains(ctx, pending)
		})
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			zap.L().Warn("safebrowsing check failed, leaving flags unset",
				zap.Int("domains", len(pending)),
				zap.Error(err),
			)
			stats.Skipped += len(pending)
			return stats, nil
		}

		for _, d := range pending {
			isFlagged := flagged[d]
			byDomain[d].SafeBrowsingFlagged = isFlagged
			if isFlagged {
				stats.Enriched++
			}
			e.storeFlag(ctx, d, isFlagged)
		}
	}

	zap.L().Info("safebrowsing enrichment complete",
		zap.Int("processed", stats.Processed),
		zap.Int("flagged", stats.Enriched),
		zap.Int("cached", stats.Cached),
	)
	return stats, nil
}

func (e *FlagEnricher) cachedFlag(ctx context.Context, domain string) (flagged, ok bool) {
	if e.cache == nil {
		return false, false
	}
	data, err := e.cache.GetCachedLookup(ctx, store.CacheKindSafeBrowsing, domain)
	if err != nil || data == nil {
		return false, false
	}
	var c cachedFlag
	if err := json.Unmarshal(data, &c); err != nil {
		return false, false
	}
	return c.Flagged, true
}

func (e *FlagEnricher) storeFlag(ctx context.Context, domain string, flagged bool) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(cachedFlag{Flagged: flagged})
	if err != nil {
		return
	}
	if err := e.cache.SetCachedLookup(ctx, store.CacheKindSafeBrowsing, domain, data, safebrowsingCacheTTL); err != nil {
		zap.L().Warn("safebrowsing cache write failed", zap.String("domain", domain), zap.Error(err))
	}
}
