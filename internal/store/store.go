// Package store persists the pipeline run ledger: which steps ran for which
// loans, when, and how they ended. It also keeps the comparison result table
// so estimator accuracy can be queried across a whole portfolio.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/firstkey-holdings/loanproc/internal/model"
)

// RunFilter specifies criteria for listing ledger entries.
type RunFilter struct {
	LoanID string           `json:"loan_id,omitempty"`
	Step   string           `json:"step,omitempty"`
	Status model.StepStatus `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the processing ledger.
type Store interface {
	// Ledger
	StartStep(ctx context.Context, loanID, step string) (*model.PipelineRun, error)
	FinishStep(ctx context.Context, runID string, result *model.StepResult) error
	GetRun(ctx context.Context, runID string) (*model.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error)
	LatestStep(ctx context.Context, loanID, step string) (*model.PipelineRun, error)

	// Comparison results
	UpsertComparisons(ctx context.Context, records []model.ComparisonRecord) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// comparisonColumns is the column order shared by both drivers and the bulk
// upsert path. It must match the comparison_results schema.
var comparisonColumns = []string{
	"loan_id", "income_type",
	"weighted_avg", "simple_avg", "high_conf_only_avg", "form_1003_final",
	"weighted_vs_1003_diff", "weighted_vs_1003_pct",
	"simple_vs_1003_diff", "simple_vs_1003_pct",
	"high_only_vs_1003_diff", "high_only_vs_1003_pct",
	"high_confidence_count", "total_runs",
}

func comparisonRow(r model.ComparisonRecord) []any {
	return []any{
		r.LoanID, r.IncomeType,
		r.WeightedAvg, r.SimpleAvg, r.HighConfOnlyAvg, r.Form1003Final,
		r.WeightedVs1003Diff, r.WeightedVs1003Pct,
		r.SimpleVs1003Diff, r.SimpleVs1003Pct,
		r.HighOnlyVs1003Diff, r.HighOnlyVs1003Pct,
		r.HighConfidenceCount, r.TotalRuns,
	}
}
