// Package pipeline orchestrates the dataset build: ingest both source
// lists, merge and reconcile, enrich with external signals, score, and
// write the published outputs.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/config"
	"github.com/trackless/cred1/internal/dataset"
	"github.com/trackless/cred1/internal/enrich"
	"github.com/trackless/cred1/internal/fetcher"
	"github.com/trackless/cred1/internal/model"
	"github.com/trackless/cred1/internal/score"
	"github.com/trackless/cred1/internal/store"
)

// Data dir file names. Numbered files are pipeline intermediates; the
// dataset_* files are the published outputs.
const (
	FileOpenSourcesRaw = "01_opensources.json"
	FileIffyRaw        = "02_iffy.csv"
	FileMerged         = "03_merged.json"
	FileFullCSV        = "dataset_full.csv"
	FileCompactJSON    = "dataset_compact.json"
)

// Enrichment step names accepted by Enrich.
const (
	StepTranco       = "tranco"
	StepRDAP         = "rdap"
	StepFactcheck    = "factcheck"
	StepSafeBrowsing = "safebrowsing"
	StepScore        = "score"
	StepAll          = "all"
)

// Enrichers bundles the optional enrichment dependencies. A nil enricher
// skips its step.
type Enrichers struct {
	Ranks  *enrich.RankEnricher
	Age    *enrich.AgeEnricher
	Claims *enrich.ClaimsEnricher
	Flags  *enrich.FlagEnricher
}

// Builder runs the dataset pipeline.
type Builder struct {
	cfg       *config.Config
	store     store.Store
	fetcher   fetcher.Fetcher
	scorer    *score.Scorer
	enrichers Enrichers
}

// New creates a Builder.
func New(cfg *config.Config, st store.Store, f fetcher.Fetcher, scorer *score.Scorer, enrichers Enrichers) *Builder {
	return &Builder{
		cfg:       cfg,
		store:     st,
		fetcher:   f,
		scorer:    scorer,
		enrichers: enrichers,
	}
}

// Build downloads both source lists, merges them, scores on category alone,
// and writes the merged intermediate plus both outputs. Enrichment runs
// separately so builds stay fast and API quotas are spent deliberately.
func (b *Builder) Build(ctx context.Context, referenceDate string) (*model.BuildResult, error) {
	build, err := b.store.CreateBuild(ctx, referenceDate)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create build")
	}
	b.setStatus(ctx, build.ID, model.BuildStatusRunning)

	result := &model.BuildResult{}
	err = b.run(ctx, build.ID, result)
	if err != nil {
		result.Error = err.Error()
	}
	if completeErr := b.store.CompleteBuild(ctx, build.ID, result); completeErr != nil {
		zap.L().Warn("failed to record build result", zap.Error(completeErr))
	}
	return result, err
}

func (b *Builder) run(ctx context.Context, buildID string, result *model.BuildResult) error {
	if err := os.MkdirAll(b.cfg.Data.Dir, 0o755); err != nil {
		return eris.Wrap(err, "pipeline: create data dir")
	}

	var openSources []OpenSourcesSite
	err := b.trackPhase(ctx, buildID, "ingest.opensources", func() (int, error) {
		path := filepath.Join(b.cfg.Data.Dir, FileOpenSourcesRaw)
		if _, err := b.fetcher.DownloadToFile(ctx, b.cfg.Sources.OpenSourcesURL, path); err != nil {
			return 0, err
		}
		f, err := os.Open(path)
		if err != nil {
			return 0, eris.Wrap(err, "pipeline: open OpenSources raw")
		}
		defer f.Close() //nolint:errcheck
		openSources, err = ParseOpenSources(f)
		return len(openSources), err
	})
	if err != nil {
		return err
	}

	var iffy []IffySite
	err = b.trackPhase(ctx, buildID, "ingest.iffy", func() (int, error) {
		path := filepath.Join(b.cfg.Data.Dir, FileIffyRaw)
		if _, err := b.fetcher.DownloadToFile(ctx, b.cfg.Sources.IffyURL, path); err != nil {
			return 0, err
		}
		f, err := os.Open(path)
		if err != nil {
			return 0, eris.Wrap(err, "pipeline: open Iffy raw")
		}
		defer f.Close() //nolint:errcheck
		iffy, err = ParseIffy(ctx, f)
		return len(iffy), err
	})
	if err != nil {
		return err
	}

	var records []*model.DomainRecord
	err = b.trackPhase(ctx, buildID, "merge", func() (int, error) {
		var stats MergeStats
		records, stats = BuildRecords(openSources, iffy)
		result.Domains = stats.Domains
		result.OverlapCount = stats.Overlap
		result.ByCategory = stats.ByCategory
		return stats.Domains, nil
	})
	if err != nil {
		return err
	}

	err = b.trackPhase(ctx, buildID, "score", func() (int, error) {
		return b.scoreAll(records)
	})
	if err != nil {
		return err
	}

	return b.trackPhase(ctx, buildID, "write", func() (int, error) {
		if err := b.writeAll(records); err != nil {
			return 0, err
		}
		if b.cfg.Store.Snapshot {
			if err := b.store.SaveSnapshot(ctx, buildID, dataset.Rows(records)); err != nil {
				return 0, err
			}
		}
		return len(records), nil
	})
}

// Enrich loads the merged intermediate, runs the named step (or all), and
// rewrites the outputs with recomputed scores.
func (b *Builder) Enrich(ctx context.Context, step string, limit int, referenceDate string) (*model.BuildResult, error) {
	records, err := b.loadMerged()
	if err != nil {
		return nil, err
	}

	build, err := b.store.CreateBuild(ctx, referenceDate)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create build")
	}
	b.setStatus(ctx, build.ID, model.BuildStatusRunning)

	result := &model.BuildResult{Domains: len(records)}
	err = b.runEnrich(ctx, build.ID, step, limit, records, result)
	if err != nil {
		result.Error = err.Error()
	}
	if completeErr := b.store.CompleteBuild(ctx, build.ID, result); completeErr != nil {
		zap.L().Warn("failed to record build result", zap.Error(completeErr))
	}
	return result, err
}

func (b *Builder) runEnrich(ctx context.Context, buildID, step string, limit int, records []*model.DomainRecord, result *model.BuildResult) error {
	want := func(s string) bool { return step == s || step == StepAll }

	if want(StepTranco) && b.enrichers.Ranks != nil {
		err := b.trackPhase(ctx, buildID, "enrich.tranco", func() (int, error) {
			stats, err := b.enrichers.Ranks.Enrich(ctx, records)
			result.EnrichedRanks = stats.Enriched
			return stats.Enriched, err
		})
		if err != nil {
			return err
		}
	}

	if want(StepRDAP) && b.enrichers.Age != nil {
		err := b.trackPhase(ctx, buildID, "enrich.rdap", func() (int, error) {
			stats, err := b.enrichers.Age.Enrich(ctx, records, limit)
			result.EnrichedAges = stats.Enriched
			return stats.Enriched, err
		})
		if err != nil {
			return err
		}
	}

	if want(StepFactcheck) && b.enrichers.Claims != nil {
		err := b.trackPhase(ctx, buildID, "enrich.factcheck", func() (int, error) {
			stats, err := b.enrichers.Claims.Enrich(ctx, records, limit)
			return stats.Enriched, err
		})
		if err != nil {
			return err
		}
	}

	if want(StepSafeBrowsing) && b.enrichers.Flags != nil {
		err := b.trackPhase(ctx, buildID, "enrich.safebrowsing", func() (int, error) {
			stats, err := b.enrichers.Flags.Enrich(ctx, records, limit)
			result.Flagged = stats.Enriched
			return stats.Enriched, err
		})
		if err != nil {
			return err
		}
	}

	// Scoring always reruns after enrichment so outputs stay consistent.
	err := b.trackPhase(ctx, buildID, "score", func() (int, error) {
		return b.scoreAll(records)
	})
	if err != nil {
		return err
	}

	return b.trackPhase(ctx, buildID, "write", func() (int, error) {
		if err := b.writeAll(records); err != nil {
			return 0, err
		}
		if b.cfg.Store.Snapshot {
			if err := b.store.SaveSnapshot(ctx, buildID, dataset.Rows(records)); err != nil {
				return 0, err
			}
		}
		return len(records), nil
	})
}

// scoreAll scores every record. The "other" fallback policy absorbs the only
// expected category gap, so a scoring error here fails the build.
func (b *Builder) scoreAll(records []*model.DomainRecord) (int, error) {
	for _, rec := range records {
		if err := b.scorer.Score(rec); err != nil {
			return 0, eris.Wrapf(err, "pipeline: score %s", rec.Domain)
		}
	}
	return len(records), nil
}

func (b *Builder) writeAll(records []*model.DomainRecord) error {
	if err := writeFile(filepath.Join(b.cfg.Data.Dir, FileMerged), func(w io.Writer) error {
		return dataset.WriteMerged(w, records)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(b.cfg.Data.Dir, FileFullCSV), func(w io.Writer) error {
		return dataset.WriteFullCSV(w, dataset.Rows(records))
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(b.cfg.Data.Dir, FileCompactJSON), func(w io.Writer) error {
		return dataset.WriteCompact(w, dataset.Compact(records))
	})
}

// writeFile writes via a temp file then renames so readers never observe a
// partially written output.
func writeFile(path string, write func(w io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", tmp)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return eris.Wrapf(err, "pipeline: close %s", tmp)
	}
	return eris.Wrapf(os.Rename(tmp, path), "pipeline: rename %s", path)
}

func (b *Builder) loadMerged() ([]*model.DomainRecord, error) {
	f, err := os.Open(filepath.Join(b.cfg.Data.Dir, FileMerged))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open merged intermediate (run build first)")
	}
	defer f.Close() //nolint:errcheck
	return dataset.ReadMerged(f)
}

func (b *Builder) setStatus(ctx context.Context, buildID string, status model.BuildStatus) {
	if err := b.store.UpdateBuildStatus(ctx, buildID, status); err != nil {
		zap.L().Warn("failed to update build status", zap.String("build", buildID), zap.Error(err))
	}
}

// trackPhase records one phase in the store around fn.
func (b *Builder) trackPhase(ctx context.Context, buildID, name string, fn func() (int, error)) error {
	phase, phaseErr := b.store.CreatePhase(ctx, buildID, name)
	if phaseErr != nil {
		zap.L().Warn("failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
	}

	start := time.Now()
	processed, err := fn()
	duration := time.Since(start)

	result := &model.PhaseResult{Status: model.PhaseStatusComplete, Processed: processed}
	if err != nil {
		result.Status = model.PhaseStatusFailed
		result.Detail = err.Error()
		zap.L().Error("phase failed",
			zap.String("phase", name),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	} else {
		zap.L().Info("phase complete",
			zap.String("phase", name),
			zap.Int("processed", processed),
			zap.Duration("duration", duration),
		)
	}

	if phase != nil {
		if completeErr := b.store.CompletePhase(ctx, phase.ID, result); completeErr != nil {
			zap.L().Warn("failed to complete phase", zap.String("phase", name), zap.Error(completeErr))
		}
	}
	return err
}
