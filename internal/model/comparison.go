package model

// ComparisonRecord joins one loan's consistency summary with its Form 1003
// timeline's final income, quantifying estimator accuracy. Field order
// matters: it is the CSV column order.
type ComparisonRecord struct {
	LoanID              string  `csv:"loan_id" json:"loan_id"`
	IncomeType          string  `csv:"income_type" json:"income_type"`
	WeightedAvg         float64 `csv:"weighted_avg" json:"weighted_avg"`
	SimpleAvg           float64 `csv:"simple_avg" json:"simple_avg"`
	HighConfOnlyAvg     float64 `csv:"high_conf_only_avg" json:"high_conf_only_avg"`
	Form1003Final       float64 `csv:"form_1003_final" json:"form_1003_final"`
	WeightedVs1003Diff  float64 `csv:"weighted_vs_1003_diff" json:"weighted_vs_1003_diff"`
	WeightedVs1003Pct   float64 `csv:"weighted_vs_1003_pct" json:"weighted_vs_1003_pct"`
	SimpleVs1003Diff    float64 `csv:"simple_vs_1003_diff" json:"simple_vs_1003_diff"`
	SimpleVs1003Pct     float64 `csv:"simple_vs_1003_pct" json:"simple_vs_1003_pct"`
	HighOnlyVs1003Diff  float64 `csv:"high_only_vs_1003_diff" json:"high_only_vs_1003_diff"`
	HighOnlyVs1003Pct   float64 `csv:"high_only_vs_1003_pct" json:"high_only_vs_1003_pct"`
	HighConfidenceCount int     `csv:"high_confidence_count" json:"high_confidence_count"`
	TotalRuns           int     `csv:"total_runs" json:"total_runs"`
}
