// Package store persists build runs and enrichment lookup caches.
package store

import (
	"context"
	"time"

	"github.com/trackless/cred1/internal/dataset"
	"github.com/trackless/cred1/internal/model"
)

// Lookup cache kinds. One row per (kind, key) pair; keys are canonical
// domains except for safebrowsing, which caches per build batch.
const (
	CacheKindRDAP         = "rdap"
	CacheKindFactcheck    = "factcheck"
	CacheKindSafeBrowsing = "safebrowsing"
)

// BuildFilter specifies criteria for listing builds.
type BuildFilter struct {
	Status model.BuildStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the dataset pipeline.
type Store interface {
	// Builds
	CreateBuild(ctx context.Context, referenceDate string) (*model.Build, error)
	UpdateBuildStatus(ctx context.Context, buildID string, status model.BuildStatus) error
	CompleteBuild(ctx context.Context, buildID string, result *model.BuildResult) error
	GetBuild(ctx context.Context, buildID string) (*model.Build, error)
	ListBuilds(ctx context.Context, filter BuildFilter) ([]model.Build, error)

	// Phases
	CreatePhase(ctx context.Context, buildID string, name string) (*model.BuildPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error

	// Snapshot persists the scored dataset rows of a build.
	SaveSnapshot(ctx context.Context, buildID string, rows []dataset.FullRow) error

	// Lookup cache. A nil return with nil error means a cache miss.
	GetCachedLookup(ctx context.Context, kind, key string) ([]byte, error)
	SetCachedLookup(ctx context.Context, kind, key string, data []byte, ttl time.Duration) error
	DeleteExpiredLookups(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
