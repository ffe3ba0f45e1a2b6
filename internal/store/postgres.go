package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/firstkey-holdings/loanproc/internal/db"
	"github.com/firstkey-holdings/loanproc/internal/model"
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
// faster execution of the most frequently used ledger operations.
var preparedStatements = map[string]string{
	"insert_run":  `INSERT INTO pipeline_runs (id, loan_id, step, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"finish_step": `UPDATE pipeline_runs SET status = $1, result = $2, finished_at = $3 WHERE id = $4`,
	"get_run":     `SELECT id, loan_id, step, status, result, started_at, finished_at FROM pipeline_runs WHERE id = $1`,
	"latest_step": `SELECT id, loan_id, step, status, result, started_at, finished_at FROM pipeline_runs WHERE loan_id = $1 AND step = $2 ORDER BY started_at DESC LIMIT 1`,
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

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	loan_id     TEXT NOT NULL,
	step        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	result      JSONB,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS comparison_results (
	loan_id                TEXT NOT NULL,
	income_type            TEXT NOT NULL,
	weighted_avg           DOUBLE PRECISION NOT NULL,
	simple_avg             DOUBLE PRECISION NOT NULL,
	high_conf_only_avg     DOUBLE PRECISION NOT NULL,
	form_1003_final        DOUBLE PRECISION NOT NULL,
	weighted_vs_1003_diff  DOUBLE PRECISION NOT NULL,
	weighted_vs_1003_pct   DOUBLE PRECISION NOT NULL,
	simple_vs_1003_diff    DOUBLE PRECISION NOT NULL,
	simple_vs_1003_pct     DOUBLE PRECISION NOT NULL,
	high_only_vs_1003_diff DOUBLE PRECISION NOT NULL,
	high_only_vs_1003_pct  DOUBLE PRECISION NOT NULL,
	high_confidence_count  INTEGER NOT NULL,
	total_runs             INTEGER NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (loan_id, income_type)
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_loan_id ON pipeline_runs(loan_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_loan_step ON pipeline_runs(loan_id, step, started_at DESC);
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

func (s *PostgresStore) StartStep(ctx context.Context, loanID, step string) (*model.PipelineRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, loan_id, step, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, loanID, step, string(model.StepStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert run for loan %s", loanID)
	}

	return &model.PipelineRun{
		ID:        id,
		LoanID:    loanID,
		Step:      step,
		Status:    model.StepStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) FinishStep(ctx context.Context, runID string, result *model.StepResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal step result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, result = $2, finished_at = $3 WHERE id = $4`,
		string(result.Status), resultJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish step %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, loan_id, step, status, result, started_at, finished_at FROM pipeline_runs WHERE id = $1`,
		runID,
	)
	r, err := scanRunPG(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, loan_id, step, status, result, started_at, finished_at FROM pipeline_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.LoanID != "" {
		query += fmt.Sprintf(` AND loan_id = $%d`, argIdx)
		args = append(args, filter.LoanID)
		argIdx++
	}
	if filter.Step != "" {
		query += fmt.Sprintf(` AND step = $%d`, argIdx)
		args = append(args, filter.Step)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

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
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		r, err := scanRunPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LatestStep(ctx context.Context, loanID, step string) (*model.PipelineRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, loan_id, step, status, result, started_at, finished_at FROM pipeline_runs
		 WHERE loan_id = $1 AND step = $2
		 ORDER BY started_at DESC LIMIT 1`,
		loanID, step,
	)
	r, err := scanRunPG(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest step for loan %s", loanID)
	}
	return r, nil
}

func (s *PostgresStore) UpsertComparisons(ctx context.Context, records []model.ComparisonRecord) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, comparisonRow(r))
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "comparison_results",
		Columns:      comparisonColumns,
		ConflictKeys: []string{"loan_id", "income_type"},
	}, rows)
}

func scanRunPG(row pgx.Row) (*model.PipelineRun, error) {
	var r model.PipelineRun
	var resultJSON []byte
	var finishedAt *time.Time

	err := row.Scan(&r.ID, &r.LoanID, &r.Step, &r.Status, &resultJSON, &r.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if len(resultJSON) > 0 {
		r.Result = &model.StepResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal step result")
		}
	}
	r.FinishedAt = finishedAt
	return &r, nil
}
