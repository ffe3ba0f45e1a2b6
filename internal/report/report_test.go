package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstkey-holdings/loanproc/internal/comparison"
	"github.com/firstkey-holdings/loanproc/internal/model"
)

func sampleSummary() *model.ConsistencySummary {
	return &model.ConsistencySummary{
		LoanID:    "1000178625",
		TotalRuns: 3,
		Results: []model.RunResult{
			{RunNumber: 1, MonthlyGrossIncome: 9500, ConfidenceLevel: model.ConfidenceHigh, Reasoning: "YTD supported"},
			{RunNumber: 2, MonthlyGrossIncome: 9500, ConfidenceLevel: model.ConfidenceHigh, Reasoning: "YTD supported"},
			{RunNumber: 3, MonthlyGrossIncome: 9100, ConfidenceLevel: model.ConfidenceMedium, Reasoning: "single paystub"},
		},
		Statistics: model.Statistics{
			AverageIncome:      9366.67,
			MinIncome:          9100,
			MaxIncome:          9500,
			Variance:           400,
			VariancePercentage: 4.27,
		},
		Decision: model.UnderwriterDecision{
			AuthoritativeIncome:   9433.33,
			ConfidenceWeightedAvg: 9433.33,
			HighConfidenceOnlyAvg: 9500,
			SimpleAverage:         9366.67,
			ConfidenceInResult:    model.ConfidenceMedium,
			Rationale:             "2/3 runs achieved high confidence; 1 medium, 0 low",
			Recommendation:        "REVIEW authoritative_income value - moderate confidence, consider manual verification",
		},
	}
}

func TestWriteConsistency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "consistency_report.html")
	require.NoError(t, WriteConsistency(path, sampleSummary()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "Loan 1000178625")
	assert.Contains(t, html, "$9,433.33")
	assert.Contains(t, html, "variance-medium")
	assert.Contains(t, html, "REVIEW authoritative_income value")
	// Two runs produced the same figure, so it leads the distinct table.
	assert.Contains(t, html, "#1, #2")
}

func TestWriteConsistencyFailedRunsMarked(t *testing.T) {
	summary := sampleSummary()
	summary.Results = append(summary.Results, model.RunResult{RunNumber: 4, Error: "rate limited"})

	path := filepath.Join(t.TempDir(), "out.html")
	require.NoError(t, WriteConsistency(path, summary))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "failed: rate limited")
}

func TestWriteConsistencyNilSummary(t *testing.T) {
	err := WriteConsistency(filepath.Join(t.TempDir(), "out.html"), nil)
	require.Error(t, err)
}

func TestVarianceClass(t *testing.T) {
	assert.Equal(t, "low", varianceClass(0))
	assert.Equal(t, "low", varianceClass(0.99))
	assert.Equal(t, "medium", varianceClass(1))
	assert.Equal(t, "medium", varianceClass(4.99))
	assert.Equal(t, "high", varianceClass(5))
}

func TestDistinctValues(t *testing.T) {
	vals := distinctValues([]model.RunResult{
		{RunNumber: 1, MonthlyGrossIncome: 9100},
		{RunNumber: 2, MonthlyGrossIncome: 9500},
		{RunNumber: 3, MonthlyGrossIncome: 9500},
		{RunNumber: 4, Error: "boom"},
	})
	require.Len(t, vals, 2)
	assert.InDelta(t, 9500, vals[0].Income, 1e-9)
	assert.Equal(t, []int{2, 3}, vals[0].Runs)
	assert.Equal(t, 2, vals[0].Count)
	assert.Equal(t, 1, vals[1].Count)
}

func TestWriteHistogram(t *testing.T) {
	pcts := []float64{-12, -3, -1, 0.5, 2, 2.2, 8}
	buckets := comparison.Buckets(pcts)
	acc := comparison.Accuracy{Total: 7, AvgDiffPct: -0.47, AvgAbsDiffPct: 4.1, Within2_5: 4, Within5: 5, Within10: 6}

	path := filepath.Join(t.TempDir(), "histogram.html")
	require.NoError(t, WriteHistogram(path, "Weighted Average vs Form 1003", buckets, acc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "Weighted Average vs Form 1003")
	assert.Contains(t, html, "&lt; -10%")
	assert.Contains(t, html, "7 loans compared")
	assert.Contains(t, html, "4 of 7")
}

func TestUSDFormatting(t *testing.T) {
	assert.Equal(t, "$9,804.17", usd(9804.17))
	assert.Equal(t, "$150.00", usd(150))
	assert.Equal(t, "4.27%", pct(4.27))
}
