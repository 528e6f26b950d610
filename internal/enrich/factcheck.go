package enrich

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/internal/resilience"
	"github.com/trackless/cred1/internal/store"
	"github.com/trackless/cred1/pkg/factcheck"
)

const (
	factcheckCacheTTL    = 7 * 24 * time.Hour
	factcheckConcurrency = 4
)

// cachedClaims is the lookup cache value for fact-check counts.
type cachedClaims struct {
	Claims int `json:"claims"`
}

// ClaimsEnricher sets FactcheckClaims from the fact-check corpus. A zero
// count stays absent: no coverage is not evidence of accuracy.
type ClaimsEnricher struct {
	client  factcheck.Client
	cache   store.Store
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClaimsEnricher creates a ClaimsEnricher. cache may be nil.
func NewClaimsEnricher(client factcheck.Client, cache store.Store) *ClaimsEnricher {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("factcheck", "claims_search")
	return &ClaimsEnricher{
		client:  client,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   cfg,
	}
}

// Enrich counts fact-checked claims for up to limit records (0 = all).
func (e *ClaimsEnricher) Enrich(ctx context.Context, records []*model.DomainRecord, limit int) (Stats, error) {
	pending := make([]*model.DomainRecord, 0, len(records))
	for _, rec := range records {
		if rec.FactcheckClaims.Present() {
			continue
		}
		pending = append(pending, rec)
		if limit > 0 && len(pending) >= limit {
			break
		}
	}

	var (
		mu    sync.Mutex
		stats = Stats{Processed: len(pending)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(factcheckConcurrency)

	for _, rec := range pending {
		g.Go(func() error {
			n, cached, err := e.claimCount(gctx, rec.Domain)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("factcheck lookup failed, leaving signal absent",
					zap.String("domain", rec.Domain),
					zap.Error(err),
				)
				mu.Lock()
				stats.Skipped++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if cached {
				stats.Cached++
			}
			if n > 0 {
				rec.FactcheckClaims = model.Some(n)
				stats.Enriched++
			} else {
				stats.Skipped++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	zap.L().Info("factcheck enrichment complete",
		zap.Int("processed", stats.Processed),
		zap.Int("enriched", stats.Enriched),
		zap.Int("cached", stats.Cached),
	)
	return stats, nil
}

func (e *ClaimsEnricher) claimCount(ctx context.Context, domain string) (n int, cached bool, err error) {
	if e.cache != nil {
		data, err := e.cache.GetCachedLookup(ctx, store.CacheKindFactcheck, domain)
		if err != nil {
			zap.L().Warn("factcheck cache read failed", zap.String("domain", domain), zap.Error(err))
		} else if data != nil {
			var c cachedClaims
			if err := json.Unmarshal(data, &c); err == nil {
				return c.Claims, true, nil
			}
		}
	}

	n, err = resilience.DoVal(ctx, e.retry, func(ctx context.Context) (int, error) {
		if err := e.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		return e.client.ClaimCount(ctx, domain)
	})
	if err != nil {
		return 0, false, err
	}

	if e.cache != nil {
		if data, err := json.Marshal(cachedClaims{Claims: n}); err == nil {
			if err := e.cache.SetCachedLookup(ctx, store.CacheKindFactcheck, domain, data, factcheckCacheTTL); err != nil {
				zap.L().Warn("factcheck cache write failed", zap.String("domain", domain), zap.Error(err))
			}
		}
	}
	return n, false, nil
}
