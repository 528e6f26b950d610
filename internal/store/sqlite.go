package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/trackless/cred1/internal/dataset"
	"github.com/trackless/cred1/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS builds (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL DEFAULT 'queued',
	reference_date TEXT NOT NULL,
	result         TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS build_phases (
	id         TEXT PRIMARY KEY,
	build_id   TEXT NOT NULL REFERENCES builds(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lookup_cache (
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       BLOB NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL,
	PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS dataset_snapshot (
	build_id          TEXT NOT NULL REFERENCES builds(id),
	domain            TEXT NOT NULL,
	category          TEXT NOT NULL,
	credibility_score REAL NOT NULL,
	row_json          TEXT NOT NULL,
	PRIMARY KEY (build_id, domain)
);

CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status);
CREATE INDEX IF NOT EXISTS idx_dataset_snapshot_domain ON dataset_snapshot(domain);
CREATE INDEX IF NOT EXISTS idx_build_phases_build_id ON build_phases(build_id);
CREATE INDEX IF NOT EXISTS idx_lookup_cache_expires_at ON lookup_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBuild(ctx context.Context, referenceDate string) (*model.Build, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (id, status, reference_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.BuildStatusQueued), referenceDate, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert build")
	}

	return &model.Build{
		ID:            id,
		Status:        model.BuildStatusQueued,
		ReferenceDate: referenceDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *SQLiteStore) UpdateBuildStatus(ctx context.Context, buildID string, status model.BuildStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE builds SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), buildID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update build status %s", buildID)
	}
	return checkRowsAffected(res, "build", buildID)
}

func (s *SQLiteStore) CompleteBuild(ctx context.Context, buildID string, result *model.BuildResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	status := model.BuildStatusComplete
	if result != nil && result.Error != "" {
		status = model.BuildStatusFailed
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE builds SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), buildID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete build %s", buildID)
	}
	return checkRowsAffected(res, "build", buildID)
}

func (s *SQLiteStore) GetBuild(ctx context.Context, buildID string) (*model.Build, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, reference_date, result, created_at, updated_at FROM builds WHERE id = ?`,
		buildID,
	)
	return scanBuild(row)
}

func (s *SQLiteStore) ListBuilds(ctx context.Context, filter BuildFilter) ([]model.Build, error) {
	query := `SELECT id, status, reference_date, result, created_at, updated_at FROM builds WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list builds")
	}
	defer rows.Close()

	var builds []model.Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, *b)
	}
	return builds, eris.Wrap(rows.Err(), "sqlite: list builds iterate")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, buildID string, name string) (*model.BuildPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_phases (id, build_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, buildID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for build %s", buildID)
	}

	return &model.BuildPhase{
		ID:        id,
		BuildID:   buildID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE build_phases SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, buildID string, rows []dataset.FullRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshot tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO dataset_snapshot (build_id, domain, category, credibility_score, row_json)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare snapshot insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range rows {
		rowJSON, err := json.Marshal(rows[i])
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal snapshot row %s", rows[i].Domain)
		}
		if _, err := stmt.ExecContext(ctx,
			buildID, rows[i].Domain, rows[i].Category, rows[i].CredibilityScore, string(rowJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert snapshot row %s", rows[i].Domain)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit snapshot")
}

func (s *SQLiteStore) GetCachedLookup(ctx context.Context, kind, key string) ([]byte, error) {
	// expires_at is bound as a Go time on insert, so the comparison operand
	// must be bound the same way to match the driver's storage format.
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM lookup_cache
		 WHERE kind = ? AND key = ? AND expires_at > ?`,
		kind, key, time.Now().UTC(),
	)

	var data []byte
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cached %s lookup", kind)
	}
	return data, nil
}

func (s *SQLiteStore) SetCachedLookup(ctx context.Context, kind, key string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lookup_cache (kind, key, data, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (kind, key) DO UPDATE SET data = excluded.data,
		 fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		kind, key, data, now, now.Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: set cached %s lookup", kind)
}

func (s *SQLiteStore) DeleteExpiredLookups(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lookup_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired lookups")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBuild(row scannable) (*model.Build, error) {
	var b model.Build
	var resultJSON sql.NullString

	err := row.Scan(&b.ID, &b.Status, &b.ReferenceDate, &resultJSON, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("build not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan build")
	}

	if resultJSON.Valid {
		b.Result = &model.BuildResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), b.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &b, nil
}
