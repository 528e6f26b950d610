package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackless/cred1/internal/dataset"
	"github.com/trackless/cred1/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteBuildLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	b, err := s.CreateBuild(ctx, "2026-08-31")
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BuildStatusQueued, b.Status)
	assert.Equal(t, "2026-08-31", b.ReferenceDate)

	require.NoError(t, s.UpdateBuildStatus(ctx, b.ID, model.BuildStatusRunning))

	require.NoError(t, s.CompleteBuild(ctx, b.ID, &model.BuildResult{
		Domains:      1234,
		OverlapCount: 56,
		ByCategory:   map[string]int{"fake": 400, "mixed": 300},
	}))

	got, err := s.GetBuild(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BuildStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1234, got.Result.Domains)
	assert.Equal(t, 400, got.Result.ByCategory["fake"])
}

func TestSQLiteCompleteBuildWithErrorMarksFailed(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	b, err := s.CreateBuild(ctx, "2026-08-31")
	require.NoError(t, err)

	require.NoError(t, s.CompleteBuild(ctx, b.ID, &model.BuildResult{Error: "ingest: source unreachable"}))

	got, err := s.GetBuild(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BuildStatusFailed, got.Status)
}

func TestSQLiteUpdateMissingBuild(t *testing.T) {
	s := newTestSQLite(t)
	err := s.UpdateBuildStatus(context.Background(), "no-such-id", model.BuildStatusRunning)
	assert.Error(t, err)
}

func TestSQLiteListBuildsFilterAndOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	b1, err := s.CreateBuild(ctx, "2026-08-30")
	require.NoError(t, err)
	_, err = s.CreateBuild(ctx, "2026-08-31")
	require.NoError(t, err)
	require.NoError(t, s.UpdateBuildStatus(ctx, b1.ID, model.BuildStatusRunning))

	all, err := s.ListBuilds(ctx, BuildFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	running, err := s.ListBuilds(ctx, BuildFilter{Status: model.BuildStatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, b1.ID, running[0].ID)
}

func TestSQLitePhases(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	b, err := s.CreateBuild(ctx, "2026-08-31")
	require.NoError(t, err)

	p, err := s.CreatePhase(ctx, b.ID, "enrich.rdap")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusRunning, p.Status)

	require.NoError(t, s.CompletePhase(ctx, p.ID, &model.PhaseResult{
		Status:    model.PhaseStatusComplete,
		Processed: 900,
		Errors:    12,
	}))
}

func TestSQLiteLookupCache(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	// miss
	data, err := s.GetCachedLookup(ctx, CacheKindRDAP, "example.com")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, s.SetCachedLookup(ctx, CacheKindRDAP, "example.com", []byte(`{"registered":"1995-08-14T04:00:00Z"}`), time.Hour))

	data, err = s.GetCachedLookup(ctx, CacheKindRDAP, "example.com")
	require.NoError(t, err)
	assert.Contains(t, string(data), "1995-08-14")

	// kinds are isolated
	data, err = s.GetCachedLookup(ctx, CacheKindFactcheck, "example.com")
	require.NoError(t, err)
	assert.Nil(t, data)

	// upsert replaces
	require.NoError(t, s.SetCachedLookup(ctx, CacheKindRDAP, "example.com", []byte(`{"registered":"2000-01-01T00:00:00Z"}`), time.Hour))
	data, err = s.GetCachedLookup(ctx, CacheKindRDAP, "example.com")
	require.NoError(t, err)
	assert.Contains(t, string(data), "2000-01-01")
}

func TestSQLiteExpiredLookupIsMiss(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SetCachedLookup(ctx, CacheKindFactcheck, "old.example", []byte(`{"claims":3}`), -time.Hour))

	data, err := s.GetCachedLookup(ctx, CacheKindFactcheck, "old.example")
	require.NoError(t, err)
	assert.Nil(t, data)

	n, err := s.DeleteExpiredLookups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteSaveSnapshot(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	b, err := s.CreateBuild(ctx, "2026-08-31")
	require.NoError(t, err)

	rows := []dataset.FullRow{
		{Domain: "fake.example", Category: "fake", Sources: "opensources", N: 1, CredibilityScore: 0.0},
		{Domain: "ok.example", Category: "reliable", Sources: "iffy", N: 1, CredibilityScore: 1.0},
	}
	require.NoError(t, s.SaveSnapshot(ctx, b.ID, rows))

	// re-saving the same build replaces rather than duplicating
	rows[0].CredibilityScore = 0.05
	require.NoError(t, s.SaveSnapshot(ctx, b.ID, rows))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM dataset_snapshot WHERE build_id = ?`, b.ID).Scan(&count))
	assert.Equal(t, 2, count)

	var score float64
	require.NoError(t, s.db.QueryRow(`SELECT credibility_score FROM dataset_snapshot WHERE build_id = ? AND domain = ?`, b.ID, "fake.example").Scan(&score))
	assert.Equal(t, 0.05, score)
}
