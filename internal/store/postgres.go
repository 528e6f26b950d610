package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/trackless/cred1/internal/dataset"
	"github.com/trackless/cred1/internal/db"
	"github.com/trackless/cred1/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_build":        `INSERT INTO builds (id, status, reference_date, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_build_status": `UPDATE builds SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_build":      `UPDATE builds SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_build":           `SELECT id, status, reference_date, result, created_at, updated_at FROM builds WHERE id = $1`,
	"insert_phase":        `INSERT INTO build_phases (id, build_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_phase":      `UPDATE build_phases SET status = $1, result = $2 WHERE id = $3`,
	"get_cached_lookup":   `SELECT data FROM lookup_cache WHERE kind = $1 AND key = $2 AND expires_at > now()`,
	"set_cached_lookup":   `INSERT INTO lookup_cache (kind, key, data, fetched_at, expires_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (kind, key) DO UPDATE SET data = $3, fetched_at = $4, expires_at = $5`,
	"delete_expired":      `DELETE FROM lookup_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS builds (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status         TEXT NOT NULL DEFAULT 'queued',
	reference_date TEXT NOT NULL,
	result         JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS build_phases (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	build_id   TEXT NOT NULL REFERENCES builds(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       BYTEA NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS dataset_snapshot (
	build_id          TEXT NOT NULL REFERENCES builds(id),
	domain            TEXT NOT NULL,
	category          TEXT NOT NULL,
	credibility_score DOUBLE PRECISION NOT NULL,
	row_json          JSONB NOT NULL,
	PRIMARY KEY (build_id, domain)
);

CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status);
CREATE INDEX IF NOT EXISTS idx_build_phases_build_id ON build_phases(build_id);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_expires_at ON lookup_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_dataset_snapshot_domain ON dataset_snapshot(domain);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateBuild(ctx context.Context, referenceDate string) (*model.Build, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO builds (id, status, reference_date, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(model.BuildStatusQueued), referenceDate, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert build")
	}

	return &model.Build{
		ID:            id,
		Status:        model.BuildStatusQueued,
		ReferenceDate: referenceDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *PostgresStore) UpdateBuildStatus(ctx context.Context, buildID string, status model.BuildStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE builds SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), buildID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update build status %s", buildID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("build not found: %s", buildID)
	}
	return nil
}

func (s *PostgresStore) CompleteBuild(ctx context.Context, buildID string, result *model.BuildResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	status := model.BuildStatusComplete
	if result != nil && result.Error != "" {
		status = model.BuildStatusFailed
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE builds SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), buildID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete build %s", buildID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("build not found: %s", buildID)
	}
	return nil
}

func (s *PostgresStore) GetBuild(ctx context.Context, buildID string) (*model.Build, error) {
	var b model.Build
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, reference_date, result, created_at, updated_at FROM builds WHERE id = $1`,
		buildID,
	).Scan(&b.ID, &b.Status, &b.ReferenceDate, &resultNull, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get build %s", buildID)
	}

	if resultNull != nil {
		b.Result = &model.BuildResult{}
		if err := json.Unmarshal(*resultNull, b.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &b, nil
}

func (s *PostgresStore) ListBuilds(ctx context.Context, filter BuildFilter) ([]model.Build, error) {
	query := `SELECT id, status, reference_date, result, created_at, updated_at FROM builds WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list builds")
	}
	defer rows.Close()

	var builds []model.Build
	for rows.Next() {
		var b model.Build
		var resultNull *[]byte

		if err := rows.Scan(&b.ID, &b.Status, &b.ReferenceDate, &resultNull, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan build")
		}
		if resultNull != nil {
			b.Result = &model.BuildResult{}
			if err := json.Unmarshal(*resultNull, b.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		builds = append(builds, b)
	}
	return builds, eris.Wrap(rows.Err(), "postgres: list builds iterate")
}

func (s *PostgresStore) CreatePhase(ctx context.Context, buildID string, name string) (*model.BuildPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO build_phases (id, build_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, buildID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert phase for build %s", buildID)
	}

	return &model.BuildPhase{
		ID:        id,
		BuildID:   buildID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phase result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE build_phases SET status = $1, result = $2 WHERE id = $3`,
		string(result.Status), resultJSON, phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete phase %s", phaseID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("phase not found: %s", phaseID)
	}
	return nil
}

func (s *PostgresStore) GetCachedLookup(ctx context.Context, kind, key string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM lookup_cache
		 WHERE kind = $1 AND key = $2 AND expires_at > now()`,
		kind, key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get cached %s lookup", kind)
	}
	return data, nil
}

func (s *PostgresStore) SetCachedLookup(ctx context.Context, kind, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lookup_cache (kind, key, data, fetched_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (kind, key) DO UPDATE SET data = $3, fetched_at = $4, expires_at = $5`,
		kind, key, data, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: set cached %s lookup", kind)
}

func (s *PostgresStore) DeleteExpiredLookups(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM lookup_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired lookups")
	}
	return int(tag.RowsAffected()), nil
}

// snapshotColumns is the dataset_snapshot column order used by SaveSnapshot.
var snapshotColumns = []string{"build_id", "domain", "category", "credibility_score", "row_json"}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, buildID string, rows []dataset.FullRow) error {
	values := make([][]any, 0, len(rows))
	for i := range rows {
		rowJSON, err := json.Marshal(rows[i])
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal snapshot row %s", rows[i].Domain)
		}
		values = append(values, []any{buildID, rows[i].Domain, rows[i].Category, rows[i].CredibilityScore, rowJSON})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "dataset_snapshot",
		Columns:      snapshotColumns,
		ConflictKeys: []string{"build_id", "domain"},
	}, values)
	return eris.Wrapf(err, "postgres: save snapshot for build %s", buildID)
}
