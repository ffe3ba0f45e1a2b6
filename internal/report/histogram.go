package report

import (
	"html/template"

	"github.com/firstkey-holdings/loanproc/internal/comparison"
)

var histogramTmpl = template.Must(template.New("histogram").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; margin: 2em; color: #1a1a2e; }
h1 { border-bottom: 2px solid #16213e; padding-bottom: 0.3em; }
.chart { margin: 2em 0; }
.row { display: flex; align-items: center; margin: 2px 0; }
.bucket-label { width: 10em; text-align: right; padding-right: 1em; font-size: 0.9em; }
.bar { background: #3b82f6; height: 1.4em; min-width: 2px; }
.bar.tail { background: #ef4444; }
.count { padding-left: 0.5em; font-size: 0.9em; }
.stats td { padding: 4px 12px; }
.stats td:last-child { text-align: right; font-weight: bold; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Accuracy.Total}} loans compared against the final Form 1003 declared income.</p>

<div class="chart">
{{range .Bars}}<div class="row">
<div class="bucket-label">{{.Label}}</div>
<div class="bar{{if .Tail}} tail{{end}}" style="width: {{.Width}}%"></div>
<div class="count">{{.Count}}</div>
</div>
{{end}}</div>

<h2>Accuracy</h2>
<table class="stats">
<tr><td>Mean difference</td><td>{{pct .Accuracy.AvgDiffPct}}</td></tr>
<tr><td>Mean absolute difference</td><td>{{pct .Accuracy.AvgAbsDiffPct}}</td></tr>
<tr><td>Within 2.5%</td><td>{{.Accuracy.Within2_5}} of {{.Accuracy.Total}}</td></tr>
<tr><td>Within 5%</td><td>{{.Accuracy.Within5}} of {{.Accuracy.Total}}</td></tr>
<tr><td>Within 10%</td><td>{{.Accuracy.Within10}} of {{.Accuracy.Total}}</td></tr>
</table>
</body>
</html>
`))

type histogramBar struct {
	Label string
	Count int
	Width float64 // percent of the widest bar
	Tail  bool
}

type histogramView struct {
	Title    string
	Bars     []histogramBar
	Accuracy comparison.Accuracy
}

const maxBarWidthPct = 85

// WriteHistogram renders the accuracy histogram page to path.
func WriteHistogram(path, title string, buckets []comparison.Bucket, acc comparison.Accuracy) error {
	maxCount := 0
	for _, b := range buckets {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}

	bars := make([]histogramBar, 0, len(buckets))
	for i, b := range buckets {
		width := 0.0
		if maxCount > 0 {
			width = float64(b.Count) / float64(maxCount) * maxBarWidthPct
		}
		bars = append(bars, histogramBar{
			Label: b.Label,
			Count: b.Count,
			Width: width,
			Tail:  i == 0 || i == len(buckets)-1,
		})
	}

	return render(histogramTmpl, path, histogramView{
		Title:    title,
		Bars:     bars,
		Accuracy: acc,
	})
}
