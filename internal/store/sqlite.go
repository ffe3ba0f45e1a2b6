package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/firstkey-holdings/loanproc/internal/model"
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
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY,
	loan_id     TEXT NOT NULL,
	step        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	result      TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS comparison_results (
	loan_id                TEXT NOT NULL,
	income_type            TEXT NOT NULL,
	weighted_avg           REAL NOT NULL,
	simple_avg             REAL NOT NULL,
	high_conf_only_avg     REAL NOT NULL,
	form_1003_final        REAL NOT NULL,
	weighted_vs_1003_diff  REAL NOT NULL,
	weighted_vs_1003_pct   REAL NOT NULL,
	simple_vs_1003_diff    REAL NOT NULL,
	simple_vs_1003_pct     REAL NOT NULL,
	high_only_vs_1003_diff REAL NOT NULL,
	high_only_vs_1003_pct  REAL NOT NULL,
	high_confidence_count  INTEGER NOT NULL,
	total_runs             INTEGER NOT NULL,
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (loan_id, income_type)
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_loan_id ON pipeline_runs(loan_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_loan_step ON pipeline_runs(loan_id, step, started_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartStep(ctx context.Context, loanID, step string) (*model.PipelineRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, loan_id, step, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, loanID, step, string(model.StepStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert run for loan %s", loanID)
	}

	return &model.PipelineRun{
		ID:        id,
		LoanID:    loanID,
		Step:      step,
		Status:    model.StepStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishStep(ctx context.Context, runID string, result *model.StepResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal step result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, result = ?, finished_at = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish step %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, loan_id, step, status, result, started_at, finished_at FROM pipeline_runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err == errNoRun {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT id, loan_id, step, status, result, started_at, finished_at FROM pipeline_runs WHERE 1=1`
	var args []any

	if filter.LoanID != "" {
		query += ` AND loan_id = ?`
		args = append(args, filter.LoanID)
	}
	if filter.Step != "" {
		query += ` AND step = ?`
		args = append(args, filter.Step)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

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
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LatestStep(ctx context.Context, loanID, step string) (*model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, loan_id, step, status, result, started_at, finished_at FROM pipeline_runs
		 WHERE loan_id = ? AND step = ?
		 ORDER BY started_at DESC LIMIT 1`,
		loanID, step,
	)
	r, err := scanRun(row)
	if err == errNoRun {
		return nil, nil
	}
	return r, err
}

func (s *SQLiteStore) UpsertComparisons(ctx context.Context, records []model.ComparisonRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin comparison upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(comparisonColumns)), ", ")
	query := `INSERT INTO comparison_results (` + strings.Join(comparisonColumns, ", ") + `)
		 VALUES (` + placeholders + `)
		 ON CONFLICT (loan_id, income_type) DO UPDATE SET
			weighted_avg = excluded.weighted_avg,
			simple_avg = excluded.simple_avg,
			high_conf_only_avg = excluded.high_conf_only_avg,
			form_1003_final = excluded.form_1003_final,
			weighted_vs_1003_diff = excluded.weighted_vs_1003_diff,
			weighted_vs_1003_pct = excluded.weighted_vs_1003_pct,
			simple_vs_1003_diff = excluded.simple_vs_1003_diff,
			simple_vs_1003_pct = excluded.simple_vs_1003_pct,
			high_only_vs_1003_diff = excluded.high_only_vs_1003_diff,
			high_only_vs_1003_pct = excluded.high_only_vs_1003_pct,
			high_confidence_count = excluded.high_confidence_count,
			total_runs = excluded.total_runs,
			updated_at = datetime('now')`

	var n int64
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, query, comparisonRow(r)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert comparison for loan %s", r.LoanID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit comparison upsert")
	}
	return n, nil
}

// helpers

var errNoRun = eris.New("no run")

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

func scanRun(row scannable) (*model.PipelineRun, error) {
	var r model.PipelineRun
	var resultJSON sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&r.ID, &r.LoanID, &r.Step, &r.Status, &resultJSON, &r.StartedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, errNoRun
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &model.StepResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal step result")
		}
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		r.FinishedAt = &t
	}
	return &r, nil
}
