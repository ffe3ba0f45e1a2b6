package comparison

import (
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/firstkey-holdings/loanproc/internal/model"
)

// WriteCSV writes comparison records to path, creating parent directories.
func WriteCSV(path string, records []model.ComparisonRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "comparison: mkdir for %s", path)
	}

	data, err := csvutil.Marshal(records)
	if err != nil {
		return eris.Wrap(err, "comparison: marshal csv")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "comparison: write %s", path)
	}
	return nil
}

// xlsxHeaders mirrors the CSV column order.
var xlsxHeaders = []string{
	"loan_id", "income_type",
	"weighted_avg", "simple_avg", "high_conf_only_avg", "form_1003_final",
	"weighted_vs_1003_diff", "weighted_vs_1003_pct",
	"simple_vs_1003_diff", "simple_vs_1003_pct",
	"high_only_vs_1003_diff", "high_only_vs_1003_pct",
	"high_confidence_count", "total_runs",
}

// WriteXLSX writes comparison records as a spreadsheet with a header row.
func WriteXLSX(path string, records []model.ComparisonRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "comparison: mkdir for %s", path)
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Income Comparison")
	if err != nil {
		return eris.Wrap(err, "comparison: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeaders {
		header.AddCell().SetString(h)
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.LoanID)
		row.AddCell().SetString(r.IncomeType)
		for _, v := range []float64{
			r.WeightedAvg, r.SimpleAvg, r.HighConfOnlyAvg, r.Form1003Final,
			r.WeightedVs1003Diff, r.WeightedVs1003Pct,
			r.SimpleVs1003Diff, r.SimpleVs1003Pct,
			r.HighOnlyVs1003Diff, r.HighOnlyVs1003Pct,
		} {
			row.AddCell().SetFloatWithFormat(v, "0.00")
		}
		row.AddCell().SetInt(r.HighConfidenceCount)
		row.AddCell().SetInt(r.TotalRuns)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "comparison: save %s", path)
	}
	return nil
}
