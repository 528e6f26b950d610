package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackless/cred1/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetBuild_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, reference_date, result, created_at, updated_at FROM builds WHERE id = \$1`).
		WithArgs("nonexistent-build").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetBuild(context.Background(), "nonexistent-build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get build")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateBuild(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO builds`).
		WithArgs(pgxmock.AnyArg(), "queued", "2026-08-31", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	b, err := s.CreateBuild(context.Background(), "2026-08-31")
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.BuildStatusQueued, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBuildStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE builds SET status`).
		WithArgs("running", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateBuildStatus(context.Background(), "missing", model.BuildStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedLookup_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM lookup_cache`).
		WithArgs(CacheKindRDAP, "unknown.example").
		WillReturnError(pgx.ErrNoRows)

	data, err := s.GetCachedLookup(context.Background(), CacheKindRDAP, "unknown.example")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedLookup_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT`).
		WithArgs(CacheKindFactcheck, "example.com", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetCachedLookup(context.Background(), CacheKindFactcheck, "example.com", []byte(`{"claims":7}`), 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompletePhase(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE build_phases SET status`).
		WithArgs("complete", pgxmock.AnyArg(), "phase-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompletePhase(context.Background(), "phase-1", &model.PhaseResult{
		Status:    model.PhaseStatusComplete,
		Processed: 10,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
