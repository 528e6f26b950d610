package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/enrich"
	"github.com/trackless/cred1/internal/fetcher"
	"github.com/trackless/cred1/internal/pipeline"
	"github.com/trackless/cred1/internal/score"
	"github.com/trackless/cred1/internal/store"
	"github.com/trackless/cred1/pkg/factcheck"
	"github.com/trackless/cred1/pkg/rdap"
	"github.com/trackless/cred1/pkg/safebrowsing"
	"github.com/trackless/cred1/pkg/tranco"
)

// env bundles the wired pipeline dependencies for one command invocation.
type env struct {
	store   store.Store
	builder *pipeline.Builder
	refDate time.Time
	limit   int
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		zap.L().Warn("failed to close store", zap.Error(err))
	}
}

// openStore opens the configured store backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initEnv wires the store, fetcher, scorer, and enrichers. Enrichers needing
// a Google API key are skipped with a warning when no key is configured.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	refDate, err := cfg.Enrich.ReferenceTime(time.Now())
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	scorer := score.New(cfg.Score.Weights, score.OtherPolicy(cfg.Score.OtherPolicy))

	enrichers := pipeline.Enrichers{
		Ranks: enrich.NewRankEnricher(tranco.NewLoader(f, cfg.Data.CacheDir,
			tranco.WithListURL(cfg.Tranco.ListURL),
			tranco.WithCacheMaxAge(time.Duration(cfg.Tranco.CacheMaxHours)*time.Hour),
		)),
		Age: enrich.NewAgeEnricher(rdap.NewClient(), st, refDate),
	}

	if cfg.Google.APIKey == "" {
		zap.L().Warn("no Google API key configured, factcheck and safebrowsing steps will be skipped")
	} else {
		fc, err := factcheck.NewClient(cfg.Google.APIKey)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		sb, err := safebrowsing.NewClient(cfg.Google.APIKey)
		if err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		enrichers.Claims = enrich.NewClaimsEnricher(fc, st)
		enrichers.Flags = enrich.NewFlagEnricher(sb, st)
	}

	return &env{
		store:   st,
		builder: pipeline.New(cfg, st, f, scorer, enrichers),
		refDate: refDate,
		limit:   cfg.Enrich.Limit,
	}, nil
}
