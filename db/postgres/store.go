// Package postgres stores batch runs in PostgreSQL
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"process-capex/db/runs"
)

// ErrDuplicateRun is returned when a run ID is already stored.
var ErrDuplicateRun = errors.New("run already stored")

const schema = `
CREATE TABLE IF NOT EXISTS capex_runs (
	id               UUID PRIMARY KEY,
	project          TEXT NOT NULL,
	estimated_at     TIMESTAMPTZ NOT NULL,
	base_year        BIGINT NOT NULL,
	base_index       DOUBLE PRECISION NOT NULL,
	target_year      BIGINT NOT NULL,
	target_index     DOUBLE PRECISION NOT NULL,
	default_material TEXT NOT NULL,
	purchased        NUMERIC(18, 2) NOT NULL,
	purchased_adj    NUMERIC(18, 2) NOT NULL,
	bare_module      NUMERIC(18, 2) NOT NULL,
	devices          BIGINT NOT NULL,
	failed           BIGINT NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	incomplete       BOOLEAN NOT NULL,
	result_hash      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS capex_runs_project_idx ON capex_runs (project, estimated_at DESC);

CREATE TABLE IF NOT EXISTS capex_run_devices (
	run_id        UUID NOT NULL REFERENCES capex_runs (id) ON DELETE CASCADE,
	position      BIGINT NOT NULL,
	name          TEXT NOT NULL,
	category      TEXT NOT NULL,
	subtype       TEXT NOT NULL,
	material      TEXT NOT NULL,
	size          DOUBLE PRECISION NOT NULL,
	size_unit     TEXT NOT NULL,
	units         BIGINT NOT NULL,
	f_m           DOUBLE PRECISION NOT NULL,
	f_p           DOUBLE PRECISION NOT NULL,
	f_bm          DOUBLE PRECISION NOT NULL,
	purchased     NUMERIC(18, 2) NOT NULL,
	purchased_adj NUMERIC(18, 2) NOT NULL,
	bare_module   NUMERIC(18, 2) NOT NULL,
	provisional   BOOLEAN NOT NULL,
	extrapolated  BOOLEAN NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	error_code    TEXT NOT NULL,
	error_message TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);`

const insertRun = `
INSERT INTO capex_runs (
	id, project, estimated_at, base_year, base_index, target_year,
	target_index, default_material, purchased, purchased_adj, bare_module,
	devices, failed, confidence, incomplete, result_hash
) VALUES (
	:id, :project, :estimated_at, :base_year, :base_index, :target_year,
	:target_index, :default_material, :purchased, :purchased_adj, :bare_module,
	:devices, :failed, :confidence, :incomplete, :result_hash
)`

const insertDevice = `
INSERT INTO capex_run_devices (
	run_id, position, name, category, subtype, material, size, size_unit,
	units, f_m, f_p, f_bm, purchased, purchased_adj, bare_module,
	provisional, extrapolated, confidence, error_code, error_message
) VALUES (
	:run_id, :position, :name, :category, :subtype, :material, :size, :size_unit,
	:units, :f_m, :f_p, :f_bm, :purchased, :purchased_adj, :bare_module,
	:provisional, :extrapolated, :confidence, :error_code, :error_message
)`

const categoryTrend = `
SELECT date_trunc('day', r.estimated_at) AS day,
	   d.category AS category,
	   SUM(d.bare_module)::float8 AS bare_module,
	   COUNT(*) AS devices
FROM capex_run_devices AS d
JOIN capex_runs AS r ON r.id = d.run_id
WHERE r.project = $1 AND r.estimated_at >= $2 AND d.error_code = ''
GROUP BY 1, 2
ORDER BY 1, 2`

// Store implements runs.Recorder on PostgreSQL
type Store struct {
	db *sqlx.DB
}

var _ runs.Recorder = (*Store)(nil)

// Connect opens and pings a PostgreSQL connection.
func Connect(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an open connection.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the run tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// SaveRun inserts the run and its devices in one transaction
func (s *Store) SaveRun(ctx context.Context, run runs.RunRecord, devices []runs.DeviceRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertRun, run); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateRun, run.ID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}
	if len(devices) > 0 {
		if _, err := tx.NamedExecContext(ctx, insertDevice, devices); err != nil {
			return fmt.Errorf("failed to insert devices: %w", err)
		}
	}
	return tx.Commit()
}

// GetRun retrieves a run by ID, nil when absent
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*runs.RunRecord, error) {
	var run runs.RunRecord
	err := s.db.GetContext(ctx, &run, `SELECT * FROM capex_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// FindRunByHash returns the latest run of a project with identical device
// results, or nil.
func (s *Store) FindRunByHash(ctx context.Context, project, hash string) (*runs.RunRecord, error) {
	var run runs.RunRecord
	err := s.db.GetContext(ctx, &run, `
		SELECT * FROM capex_runs
		WHERE project = $1 AND result_hash = $2
		ORDER BY estimated_at DESC
		LIMIT 1`, project, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]runs.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []runs.RunRecord
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM capex_runs ORDER BY estimated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}

// ListProjectRuns returns the runs of one project, newest first
func (s *Store) ListProjectRuns(ctx context.Context, project string, limit int) ([]runs.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []runs.RunRecord
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM capex_runs WHERE project = $1 ORDER BY estimated_at DESC LIMIT $2`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return out, nil
}

// DeviceRows returns the device rows of a run in batch order
func (s *Store) DeviceRows(ctx context.Context, runID uuid.UUID) ([]runs.DeviceRecord, error) {
	var out []runs.DeviceRecord
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM capex_run_devices WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CategoryTrend sums bare-module cost per category and day for a project.
func (s *Store) CategoryTrend(ctx context.Context, project string, since time.Time) ([]runs.CategoryHistory, error) {
	var out []runs.CategoryHistory
	if err := s.db.SelectContext(ctx, &out, categoryTrend, project, since); err != nil {
		return nil, fmt.Errorf("failed to query trend: %w", err)
	}
	return out, nil
}
