package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/internal/resilience"
	"github.com/trackless/cred1/internal/score"
	"github.com/trackless/cred1/internal/store"
	"github.com/trackless/cred1/pkg/rdap"
)

const (
	// daysPerYear converts a registration interval to fractional years.
	daysPerYear = 365.25

	rdapCacheTTL    = 30 * 24 * time.Hour
	rdapConcurrency = 4
)

// cachedRegistration is the lookup cache value for RDAP. NotFound records a
// negative result so unregistered domains are not re-queried every build.
type cachedRegistration struct {
	Registration *rdap.Registration `json:"registration,omitempty"`
	NotFound     bool               `json:"not_found,omitempty"`
}

// AgeEnricher sets DomainRegistered and DomainAgeYears from RDAP lookups.
// Registrable domains are queried once and shared across their subdomains.
type AgeEnricher struct {
	client  rdap.Client
	cache   store.Store
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig

	// referenceDate pins the "now" used for age so a build is reproducible.
	referenceDate time.Time
}

// NewAgeEnricher creates an AgeEnricher. cache may be nil to disable
// persistent caching (lookups are still deduplicated within a run).
func NewAgeEnricher(client rdap.Client, cache store.Store, referenceDate time.Time) *AgeEnricher {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("rdap", "lookup")
	return &AgeEnricher{
		client:        client,
		cache:         cache,
		limiter:       rate.NewLimiter(rate.Limit(2), 1),
		breaker:       resilience.NewCircuitBreaker("rdap", 5, 30*time.Second),
		retry:         cfg,
		referenceDate: referenceDate,
	}
}

// Enrich looks up registration dates for up to limit records (0 = all) and
// computes ages against the reference date. Lookup failures leave the
// signal absent.
func (e *AgeEnricher) Enrich(ctx context.Context, records []*model.DomainRecord, limit int) (Stats, error) {
	pending := make([]*model.DomainRecord, 0, len(records))
	for _, rec := range records {
		if rec.DomainAgeYears.Present() {
			continue
		}
		pending = append(pending, rec)
		if limit > 0 && len(pending) >= limit {
			break
		}
	}

	var (
		mu      sync.Mutex
		stats   = Stats{Processed: len(pending)}
		results = make(map[string]*cachedRegistration)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rdapConcurrency)

	for _, rec := range pending {
		g.Go(func() error {
			reg := RegistrableDomain(rec.Domain)

			mu.Lock()
			cached, seen := results[reg]
			mu.Unlock()

			if !seen {
				var err error
				cached, err = e.lookup(gctx, reg)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					zap.L().Warn("rdap lookup failed, leaving age absent",
						zap.String("domain", rec.Domain),
						zap.String("registrable", reg),
						zap.Error(err),
					)
					cached = nil
				}
				mu.Lock()
				results[reg] = cached
				mu.Unlock()
			}

			mu.Lock()
			defer mu.Unlock()
			if cached == nil || cached.NotFound || cached.Registration == nil {
				stats.Skipped++
				return nil
			}
			if e.apply(rec, cached.Registration) {
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

	zap.L().Info("rdap enrichment complete",
		zap.Int("processed", stats.Processed),
		zap.Int("enriched", stats.Enriched),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// apply sets the record fields from a registration. Returns false when the
// registration date is missing or unparseable.
func (e *AgeEnricher) apply(rec *model.DomainRecord, reg *rdap.Registration) bool {
	if reg.Registered == "" {
		return false
	}
	t, err := reg.RegisteredTime()
	if err != nil {
		zap.L().Warn("unparseable registration date",
			zap.String("domain", rec.Domain),
			zap.String("date", reg.Registered),
		)
		return false
	}

	age := e.referenceDate.Sub(t).Hours() / 24 / daysPerYear
	if age < 0 {
		age = 0
	}

	rec.DomainRegistered = model.Some(t.Format("2006-01-02"))
	rec.DomainAgeYears = model.Some(score.Round(age, 2))
	return true
}

// lookup consults the persistent cache, then the API behind the limiter,
// retry policy, and circuit breaker.
func (e *AgeEnricher) lookup(ctx context.Context, domain string) (*cachedRegistration, error) {
	if e.cache != nil {
		data, err := e.cache.GetCachedLookup(ctx, store.CacheKindRDAP, domain)
		if err != nil {
			zap.L().Warn("rdap cache read failed", zap.String("domain", domain), zap.Error(err))
		} else if data != nil {
			var c cachedRegistration
			if err := json.Unmarshal(data, &c); err == nil {
				return &c, nil
			}
		}
	}

	var result cachedRegistration
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		reg, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*rdap.Registration, error) {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return e.client.Lookup(ctx, domain)
		})
		if errors.Is(err, rdap.ErrNotFound) {
			result.NotFound = true
			return nil
		}
		if err != nil {
			return err
		}
		result.Registration = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := e.cache.SetCachedLookup(ctx, store.CacheKindRDAP, domain, data, rdapCacheTTL); err != nil {
				zap.L().Warn("rdap cache write failed", zap.String("domain", domain), zap.Error(err))
			}
		}
	}
	return &result, nil
}
