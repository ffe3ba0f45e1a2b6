package main

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the HTML consistency report for one loan, or all loans",
	RunE: func(cmd *cobra.Command, args []string) error {
		loanID, _ := cmd.Flags().GetString("loan")
		fs := loanfs.New(cfg.Paths.LoanDocs)

		if loanID != "" {
			return renderLoanReport(fs, loanID)
		}

		loanIDs, err := fs.LoanIDs()
		if err != nil {
			return err
		}
		rendered := 0
		for _, id := range loanIDs {
			if !loanfs.Exists(fs.SummaryFile(id)) {
				continue
			}
			if err := renderLoanReport(fs, id); err != nil {
				zap.L().Warn("report failed", zap.String("loan_id", id), zap.Error(err))
				continue
			}
			rendered++
		}
		zap.L().Info("reports rendered", zap.Int("loans", rendered))
		return nil
	},
}

func renderLoanReport(fs loanfs.Layout, loanID string) error {
	var summary model.ConsistencySummary
	if err := loanfs.ReadJSON(fs.SummaryFile(loanID), &summary); err != nil {
		return eris.Wrapf(err, "loan %s has no consistency summary", loanID)
	}

	path := filepath.Join(fs.ReportsDir(loanID), "income_analysis_report.html")
	if err := report.WriteConsistency(path, &summary); err != nil {
		return err
	}
	zap.L().Info("consistency report written",
		zap.String("loan_id", loanID),
		zap.String("path", path),
	)
	return nil
}

func init() {
	reportCmd.Flags().String("loan", "", "loan ID (default: every loan with a summary)")
	rootCmd.AddCommand(reportCmd)
}
