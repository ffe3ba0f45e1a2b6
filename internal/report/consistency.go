package report

import (
	"html/template"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/firstkey-holdings/loanproc/internal/model"
)

// Variance severity cutoffs, in percent of average income.
const (
	varianceLowMax    = 1.0
	varianceMediumMax = 5.0
)

var consistencyTmpl = template.Must(template.New("consistency").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Income Consistency Report - Loan {{.Summary.LoanID}}</title>
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; margin: 2em; color: #1a1a2e; }
h1 { border-bottom: 2px solid #16213e; padding-bottom: 0.3em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #cbd5e1; padding: 6px 12px; text-align: right; }
th { background: #16213e; color: #fff; }
td.label { text-align: left; }
.decision { background: #f1f5f9; border-left: 4px solid #16213e; padding: 1em; margin: 1em 0; }
.variance-low { color: #15803d; font-weight: bold; }
.variance-medium { color: #b45309; font-weight: bold; }
.variance-high { color: #b91c1c; font-weight: bold; }
.conf-high { color: #15803d; }
.conf-medium { color: #b45309; }
.conf-low { color: #b91c1c; }
.failed { color: #94a3b8; font-style: italic; }
</style>
</head>
<body>
<h1>Income Consistency Report - Loan {{.Summary.LoanID}}</h1>

<div class="decision">
<h2>Underwriter Decision</h2>
<p>Authoritative income: <strong>{{usd .Summary.Decision.AuthoritativeIncome}}</strong>/month
(confidence <span class="conf-{{.Summary.Decision.ConfidenceInResult}}">{{.Summary.Decision.ConfidenceInResult}}</span>)</p>
<p>{{.Summary.Decision.Rationale}}</p>
<p><strong>{{.Summary.Decision.Recommendation}}</strong></p>
</div>

<h2>Statistics ({{.Summary.TotalRuns}} runs)</h2>
<table>
<tr><td class="label">Simple average</td><td>{{usd .Summary.Decision.SimpleAverage}}</td></tr>
<tr><td class="label">Confidence-weighted average</td><td>{{usd .Summary.Decision.ConfidenceWeightedAvg}}</td></tr>
<tr><td class="label">High-confidence-only average</td><td>{{usd .Summary.Decision.HighConfidenceOnlyAvg}}</td></tr>
<tr><td class="label">Range (min to max)</td><td>{{usd .Summary.Statistics.MinIncome}} to {{usd .Summary.Statistics.MaxIncome}}</td></tr>
<tr><td class="label">Variance</td>
<td class="variance-{{.VarianceClass}}">{{usd .Summary.Statistics.Variance}} ({{pct .Summary.Statistics.VariancePercentage}})</td></tr>
</table>

<h2>Distinct Income Values</h2>
<table>
<tr><th>Monthly income</th><th>Runs</th><th>Count</th></tr>
{{range .Distinct}}<tr><td>{{usd .Income}}</td><td>{{range $i, $r := .Runs}}{{if $i}}, {{end}}#{{$r}}{{end}}</td><td>{{.Count}}</td></tr>
{{end}}</table>

<h2>Run Detail</h2>
<table>
<tr><th>Run</th><th>Monthly income</th><th>Confidence</th><th class="label">Reasoning</th></tr>
{{range .Summary.Results}}{{if .Failed}}<tr class="failed"><td>#{{.RunNumber}}</td><td colspan="3">failed: {{.Error}}</td></tr>
{{else}}<tr><td>#{{.RunNumber}}</td><td>{{usd .MonthlyGrossIncome}}</td><td class="conf-{{.ConfidenceLevel}}">{{.ConfidenceLevel}}</td><td class="label">{{.Reasoning}}</td></tr>
{{end}}{{end}}</table>
</body>
</html>
`))

type distinctValue struct {
	Income float64
	Runs   []int
	Count  int
}

type consistencyView struct {
	Summary       *model.ConsistencySummary
	VarianceClass string
	Distinct      []distinctValue
}

// varianceClass buckets the variance percentage into a severity label.
func varianceClass(variancePct float64) string {
	switch {
	case variancePct < varianceLowMax:
		return "low"
	case variancePct < varianceMediumMax:
		return "medium"
	default:
		return "high"
	}
}

// distinctValues groups runs by the income figure they produced, ordered by
// how often each figure appeared and then by value.
func distinctValues(results []model.RunResult) []distinctValue {
	byIncome := make(map[float64][]int)
	for _, r := range results {
		if r.Failed() {
			continue
		}
		byIncome[r.MonthlyGrossIncome] = append(byIncome[r.MonthlyGrossIncome], r.RunNumber)
	}

	out := make([]distinctValue, 0, len(byIncome))
	for income, runs := range byIncome {
		sort.Ints(runs)
		out = append(out, distinctValue{Income: income, Runs: runs, Count: len(runs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Income < out[j].Income
	})
	return out
}

// WriteConsistency renders the per-loan consistency report to path.
func WriteConsistency(path string, summary *model.ConsistencySummary) error {
	if summary == nil {
		return eris.New("report: nil consistency summary")
	}
	return render(consistencyTmpl, path, consistencyView{
		Summary:       summary,
		VarianceClass: varianceClass(summary.Statistics.VariancePercentage),
		Distinct:      distinctValues(summary.Results),
	})
}
