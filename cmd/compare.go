package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/comparison"
	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/report"
)

var (
	compareOutDir         string
	compareXLSX           bool
	compareConsistentOnly bool
	compareToStore        bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare income estimates against Form 1003 declared income",
	Long:  "Joins every loan's consistency summary against its Form 1003 timeline, writes the comparison CSV (and optionally XLSX), renders the accuracy histogram, and can upsert the records into the ledger database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fs := loanfs.New(cfg.Paths.LoanDocs)

		res, err := comparison.NewEvaluator(fs).Evaluate()
		if err != nil {
			return eris.Wrap(err, "compare")
		}
		if len(res.Records) == 0 {
			return eris.New("no loans have both a consistency summary and a Form 1003 timeline")
		}

		records := res.Records
		if compareConsistentOnly {
			records = res.ConsistentRecords()
			zap.L().Info("filtered to borrower-consistent loans",
				zap.Int("kept", len(records)),
				zap.Int("dropped", len(res.Records)-len(records)),
			)
		}

		outDir := compareOutDir
		if outDir == "" {
			outDir = cfg.Paths.Aggregate
		}

		csvPath := filepath.Join(outDir, "income_comparison.csv")
		if err := comparison.WriteCSV(csvPath, records); err != nil {
			return err
		}
		zap.L().Info("comparison csv written", zap.String("path", csvPath), zap.Int("loans", len(records)))

		if compareXLSX {
			xlsxPath := filepath.Join(outDir, "income_comparison.xlsx")
			if err := comparison.WriteXLSX(xlsxPath, records); err != nil {
				return err
			}
			zap.L().Info("comparison xlsx written", zap.String("path", xlsxPath))
		}

		acc := comparison.Summarize(records)
		var pcts []float64
		for _, r := range records {
			pcts = append(pcts, r.WeightedVs1003Pct)
		}
		histPath := filepath.Join(outDir, "accuracy_histogram.html")
		if err := report.WriteHistogram(histPath, "Weighted Average vs Form 1003 Final Income",
			comparison.Buckets(pcts), acc); err != nil {
			return err
		}
		zap.L().Info("accuracy histogram written",
			zap.String("path", histPath),
			zap.Float64("avg_abs_diff_pct", acc.AvgAbsDiffPct),
			zap.Int("within_5_pct", acc.Within5),
		)

		if compareToStore {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			n, err := st.UpsertComparisons(ctx, records)
			if err != nil {
				return eris.Wrap(err, "upsert comparisons")
			}
			zap.L().Info("comparison records upserted", zap.Int64("rows", n))
		}
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareOutDir, "out", "", "output directory (default: aggregate path from config)")
	compareCmd.Flags().BoolVar(&compareXLSX, "xlsx", false, "also write an XLSX workbook")
	compareCmd.Flags().BoolVar(&compareConsistentOnly, "consistent-only", false, "keep only loans with borrower-consistent 1003 timelines")
	compareCmd.Flags().BoolVar(&compareToStore, "store", false, "upsert records into the ledger database")
	rootCmd.AddCommand(compareCmd)
}
