package model

import "strings"

// ConfidenceLevel is the categorical reliability label an analysis run
// attaches to its income figure.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ParseConfidence normalizes a raw confidence string. Unrecognized values
// map to medium, matching the aggregation weighting fallback.
func ParseConfidence(s string) ConfidenceLevel {
	switch ConfidenceLevel(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceLow:
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

// RunResult is one LLM invocation's income answer for a loan. Immutable once
// written to income_analysis_run<k>.json.
type RunResult struct {
	RunNumber          int             `json:"run_number,omitempty"`
	LoanID             string          `json:"loan_id,omitempty"`
	MonthlyGrossIncome float64         `json:"monthly_gross_income"`
	ConfidenceLevel    ConfidenceLevel `json:"confidence_level"`
	IncomeBreakdown    map[string]any  `json:"income_breakdown,omitempty"`
	Reasoning          string          `json:"reasoning,omitempty"`
	DocumentsAnalyzed  int             `json:"documents_analyzed,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// Failed reports whether this run carries an error marker and must be
// excluded from all statistics.
func (r RunResult) Failed() bool { return r.Error != "" }

// Statistics summarizes the spread of income values across runs.
// Variance here is the max-min range, not a statistical variance.
type Statistics struct {
	AverageIncome      float64 `json:"average_income"`
	MinIncome          float64 `json:"min_income"`
	MaxIncome          float64 `json:"max_income"`
	Variance           float64 `json:"variance"`
	VariancePercentage float64 `json:"variance_percentage"`
	MinRunNumber       int     `json:"min_run_number"`
	MaxRunNumber       int     `json:"max_run_number"`
}

// ConfidenceDistribution counts runs per confidence level.
type ConfidenceDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// UnderwriterDecision is the blended point estimate and its justification.
type UnderwriterDecision struct {
	AuthoritativeIncome    float64                `json:"authoritative_income"`
	ConfidenceWeightedAvg  float64                `json:"confidence_weighted_avg"`
	HighConfidenceOnlyAvg  float64                `json:"high_confidence_only_avg"`
	SimpleAverage          float64                `json:"simple_average"`
	ConfidenceDistribution ConfidenceDistribution `json:"confidence_distribution"`
	ConfidenceInResult     ConfidenceLevel        `json:"confidence_in_result"`
	Rationale              string                 `json:"rationale"`
	Recommendation         string                 `json:"recommendation"`
}

// ConsistencySummary is the per-loan aggregate over all run results. It is a
// pure function of its inputs: recomputing from the same run files yields the
// same summary.
type ConsistencySummary struct {
	LoanID            string              `json:"loan_id"`
	TotalRuns         int                 `json:"total_runs"`
	RunRange          string              `json:"run_range"`
	DocumentsAnalyzed int                 `json:"documents_analyzed"`
	IncomeDocuments   []string            `json:"income_documents"`
	Results           []RunResult         `json:"results"`
	Statistics        Statistics          `json:"statistics"`
	Decision          UnderwriterDecision `json:"underwriter_decision"`
}
