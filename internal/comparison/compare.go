// Package comparison evaluates estimator accuracy: for each loan it joins the
// consistency summary's income estimates against the borrower-declared final
// income from the Form 1003 timeline and quantifies the error.
package comparison

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
)

// Evaluator walks the loan_docs tree and builds comparison records.
type Evaluator struct {
	fs loanfs.Layout
}

// NewEvaluator creates an Evaluator over the given layout.
func NewEvaluator(fs loanfs.Layout) *Evaluator {
	return &Evaluator{fs: fs}
}

// Result is the portfolio-wide comparison output. Loans missing either the
// summary or the timeline are counted but never treated as errors.
type Result struct {
	Records           []model.ComparisonRecord
	SkippedNoSummary  int
	SkippedNoTimeline int

	consistent map[string]bool
}

// ConsistentRecords returns only records for loans whose Form 1003 timeline
// reports consistent borrowers across all versions.
func (r *Result) ConsistentRecords() []model.ComparisonRecord {
	var out []model.ComparisonRecord
	for _, rec := range r.Records {
		if r.consistent[rec.LoanID] {
			out = append(out, rec)
		}
	}
	return out
}

// Evaluate builds one record per loan that has both a consistency summary and
// a Form 1003 timeline with at least one version. Records are sorted by loan
// ID.
func (e *Evaluator) Evaluate() (*Result, error) {
	loanIDs, err := e.fs.LoanIDs()
	if err != nil {
		return nil, err
	}

	res := &Result{consistent: make(map[string]bool)}
	for _, loanID := range loanIDs {
		rec, timeline, ok := e.evaluateLoan(loanID, res)
		if !ok {
			continue
		}
		res.Records = append(res.Records, rec)
		if timeline.BorrowerConsistency != nil && timeline.BorrowerConsistency.IsConsistent {
			res.consistent[loanID] = true
		}
	}

	sort.Slice(res.Records, func(i, j int) bool { return res.Records[i].LoanID < res.Records[j].LoanID })

	zap.L().Info("comparison complete",
		zap.Int("loans", len(res.Records)),
		zap.Int("skipped_no_summary", res.SkippedNoSummary),
		zap.Int("skipped_no_timeline", res.SkippedNoTimeline),
	)
	return res, nil
}

func (e *Evaluator) evaluateLoan(loanID string, res *Result) (model.ComparisonRecord, *model.Form1003Timeline, bool) {
	var summary model.ConsistencySummary
	if err := loanfs.ReadJSON(e.fs.SummaryFile(loanID), &summary); err != nil {
		res.SkippedNoSummary++
		return model.ComparisonRecord{}, nil, false
	}

	var timeline model.Form1003Timeline
	if err := loanfs.ReadJSON(e.fs.TimelineFile(loanID), &timeline); err != nil {
		res.SkippedNoTimeline++
		return model.ComparisonRecord{}, nil, false
	}
	final, ok := timeline.FinalIncome()
	if !ok {
		res.SkippedNoTimeline++
		zap.L().Warn("timeline has no versions", zap.String("loan_id", loanID))
		return model.ComparisonRecord{}, nil, false
	}

	d := summary.Decision
	rec := model.ComparisonRecord{
		LoanID:              loanID,
		IncomeType:          e.incomeType(loanID),
		WeightedAvg:         round2(d.ConfidenceWeightedAvg),
		SimpleAvg:           round2(d.SimpleAverage),
		HighConfOnlyAvg:     round2(d.HighConfidenceOnlyAvg),
		Form1003Final:       round2(final),
		HighConfidenceCount: d.ConfidenceDistribution.High,
		TotalRuns:           summary.TotalRuns,
	}
	rec.WeightedVs1003Diff, rec.WeightedVs1003Pct = diff(d.ConfidenceWeightedAvg, final)
	rec.SimpleVs1003Diff, rec.SimpleVs1003Pct = diff(d.SimpleAverage, final)
	rec.HighOnlyVs1003Diff, rec.HighOnlyVs1003Pct = diff(d.HighConfidenceOnlyAvg, final)

	return rec, &timeline, true
}

// incomeType reads the income scenario classification from the employment
// history artifact. Loans without one report "UNKNOWN".
func (e *Evaluator) incomeType(loanID string) string {
	var history struct {
		IncomeScenarioClassification struct {
			IncomeType string `json:"income_type"`
		} `json:"income_scenario_classification"`
	}
	if err := loanfs.ReadJSON(e.fs.EmploymentHistoryFile(loanID), &history); err != nil {
		return "UNKNOWN"
	}
	if history.IncomeScenarioClassification.IncomeType == "" {
		return "UNKNOWN"
	}
	return history.IncomeScenarioClassification.IncomeType
}

// diff returns the rounded absolute and percentage difference of estimate vs
// the declared baseline. A non-positive baseline yields zero percent.
func diff(estimate, baseline float64) (abs, pct float64) {
	abs = estimate - baseline
	if baseline > 0 {
		pct = abs / baseline * 100
	}
	return round2(abs), round2(pct)
}

// Accuracy summarizes how close an estimator tracks the Form 1003 baseline.
type Accuracy struct {
	Total         int     `json:"total"`
	AvgDiffPct    float64 `json:"avg_diff_pct"`
	AvgAbsDiffPct float64 `json:"avg_abs_diff_pct"`
	Within2_5     int     `json:"within_2_5_pct"`
	Within5       int     `json:"within_5_pct"`
	Within10      int     `json:"within_10_pct"`
}

// Summarize computes accuracy tallies over the weighted-average estimator,
// the one the underwriter decision reports as authoritative.
func Summarize(records []model.ComparisonRecord) Accuracy {
	acc := Accuracy{Total: len(records)}
	if len(records) == 0 {
		return acc
	}

	var sum, sumAbs float64
	for _, r := range records {
		pct := r.WeightedVs1003Pct
		sum += pct
		abs := math.Abs(pct)
		sumAbs += abs
		if abs <= 2.5 {
			acc.Within2_5++
		}
		if abs <= 5 {
			acc.Within5++
		}
		if abs <= 10 {
			acc.Within10++
		}
	}
	acc.AvgDiffPct = round2(sum / float64(len(records)))
	acc.AvgAbsDiffPct = round2(sumAbs / float64(len(records)))
	return acc
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
