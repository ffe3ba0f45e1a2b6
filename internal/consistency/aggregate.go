// Package consistency reconciles repeated income-analysis runs into a single
// point estimate with a consistency score. Given K independent noisy
// estimates of monthly income, each tagged with a reliability label, it
// produces blended averages and a categorical confidence in the result.
package consistency

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/firstkey-holdings/loanproc/internal/model"
)

// Config holds the aggregation weights and classification thresholds.
// These are tunable defaults, not domain law.
type Config struct {
	// Per-label weights for the confidence-weighted average.
	HighWeight   float64
	MediumWeight float64
	LowWeight    float64

	// Fraction-of-high-confidence-runs cutoffs for the overall result
	// confidence. Both comparisons are inclusive (>=).
	HighThreshold   float64
	MediumThreshold float64
}

// DefaultConfig returns the standard weighting and thresholds.
func DefaultConfig() Config {
	return Config{
		HighWeight:      1.0,
		MediumWeight:    0.7,
		LowWeight:       0.4,
		HighThreshold:   0.8,
		MediumThreshold: 0.5,
	}
}

func (c Config) weight(level model.ConfidenceLevel) float64 {
	switch level {
	case model.ConfidenceHigh:
		return c.HighWeight
	case model.ConfidenceLow:
		return c.LowWeight
	default:
		// Unrecognized labels take the medium weight.
		return c.MediumWeight
	}
}

// Aggregate computes a ConsistencySummary from run results. It is a pure
// function of its inputs: the same runs always produce the same summary.
// Runs carrying an error marker are excluded from every statistic; if no
// valid runs remain, an error is returned.
func Aggregate(loanID string, results []model.RunResult, cfg Config) (*model.ConsistencySummary, error) {
	if len(results) == 0 {
		return nil, eris.New("consistency: no run results")
	}

	var incomes []float64
	for _, r := range results {
		if !r.Failed() {
			incomes = append(incomes, r.MonthlyGrossIncome)
		}
	}
	if len(incomes) == 0 {
		return nil, eris.New("consistency: no valid income results in run files")
	}

	stats := computeStatistics(incomes)

	var (
		weightedSum, weightTotal float64
		highConfIncomes          []float64
		dist                     model.ConfidenceDistribution
	)
	for _, r := range results {
		if r.Failed() {
			continue
		}
		// Labels outside high/medium/low are weighted as medium but stay out
		// of the distribution counts.
		level := model.ConfidenceLevel(strings.ToLower(strings.TrimSpace(string(r.ConfidenceLevel))))
		switch level {
		case model.ConfidenceHigh:
			dist.High++
		case model.ConfidenceMedium:
			dist.Medium++
		case model.ConfidenceLow:
			dist.Low++
		}

		w := cfg.weight(level)
		weightedSum += r.MonthlyGrossIncome * w
		weightTotal += w

		if level == model.ConfidenceHigh {
			highConfIncomes = append(highConfIncomes, r.MonthlyGrossIncome)
		}
	}

	weightedAvg := stats.AverageIncome
	if weightTotal > 0 {
		weightedAvg = weightedSum / weightTotal
	}

	highOnlyAvg := stats.AverageIncome
	if len(highConfIncomes) > 0 {
		highOnlyAvg = mean(highConfIncomes)
	}

	confidence, rationale, recommendation := classifyResult(dist, len(results), stats.VariancePercentage, cfg)

	documentsAnalyzed := 0
	if first := results[0]; !first.Failed() {
		documentsAnalyzed = first.DocumentsAnalyzed
	}

	return &model.ConsistencySummary{
		LoanID:            loanID,
		TotalRuns:         len(results),
		RunRange:          fmt.Sprintf("1-%d", len(results)),
		DocumentsAnalyzed: documentsAnalyzed,
		Results:           results,
		Statistics:        stats,
		Decision: model.UnderwriterDecision{
			AuthoritativeIncome:    round2(weightedAvg),
			ConfidenceWeightedAvg:  round2(weightedAvg),
			HighConfidenceOnlyAvg:  round2(highOnlyAvg),
			SimpleAverage:          round2(stats.AverageIncome),
			ConfidenceDistribution: dist,
			ConfidenceInResult:     confidence,
			Rationale:              rationale,
			Recommendation:         recommendation,
		},
	}, nil
}

// computeStatistics derives the spread metrics from valid incomes.
// Variance is the max-min range; variance percentage is defined as zero when
// the average is zero, to avoid division by zero.
func computeStatistics(incomes []float64) model.Statistics {
	minIncome, maxIncome := incomes[0], incomes[0]
	minIdx, maxIdx := 0, 0
	var sum float64
	for i, v := range incomes {
		sum += v
		if v < minIncome {
			minIncome, minIdx = v, i
		}
		if v > maxIncome {
			maxIncome, maxIdx = v, i
		}
	}

	avg := sum / float64(len(incomes))
	variance := maxIncome - minIncome
	variancePct := 0.0
	if avg > 0 {
		variancePct = variance / avg * 100
	}

	return model.Statistics{
		AverageIncome:      avg,
		MinIncome:          minIncome,
		MaxIncome:          maxIncome,
		Variance:           variance,
		VariancePercentage: variancePct,
		MinRunNumber:       minIdx + 1,
		MaxRunNumber:       maxIdx + 1,
	}
}

// classifyResult buckets the overall confidence by the fraction of total
// runs (including errored ones) that reported high confidence.
func classifyResult(dist model.ConfidenceDistribution, totalRuns int, variancePct float64, cfg Config) (model.ConfidenceLevel, string, string) {
	highFrac := 0.0
	if totalRuns > 0 {
		highFrac = float64(dist.High) / float64(totalRuns)
	}

	switch {
	case highFrac >= cfg.HighThreshold:
		rationale := fmt.Sprintf("%d/%d runs achieved high confidence with %.2f%% variance",
			dist.High, totalRuns, variancePct)
		recommendation := "USE authoritative_income value - high confidence with strong consistency"
		if variancePct >= 1 {
			recommendation = "USE authoritative_income value - high confidence but review variance"
		}
		return model.ConfidenceHigh, rationale, recommendation

	case highFrac >= cfg.MediumThreshold:
		rationale := fmt.Sprintf("%d/%d runs achieved high confidence; %d medium, %d low",
			dist.High, totalRuns, dist.Medium, dist.Low)
		return model.ConfidenceMedium, rationale,
			"REVIEW authoritative_income value - moderate confidence, consider manual verification"

	default:
		rationale := fmt.Sprintf("Only %d/%d runs achieved high confidence; variance %.2f%%",
			dist.High, totalRuns, variancePct)
		return model.ConfidenceLow, rationale,
			"MANUAL REVIEW REQUIRED - low confidence across runs or high variance detected"
	}
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
