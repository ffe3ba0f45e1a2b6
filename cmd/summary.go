package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Rebuild and print the consistency summary for a loan",
	Long:  "Recomputes consistency_summary_all.json from every income analysis run file on disk. No model calls are made.",
	RunE: func(cmd *cobra.Command, args []string) error {
		loanID, _ := cmd.Flags().GetString("loan")

		e, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Pipeline.Summarize(loanID); err != nil {
			return eris.Wrapf(err, "summarize loan %s", loanID)
		}

		var summary model.ConsistencySummary
		if err := loanfs.ReadJSON(e.FS.SummaryFile(loanID), &summary); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Loan\t%s\n", summary.LoanID)
		fmt.Fprintf(w, "Runs\t%d\n", summary.TotalRuns)
		fmt.Fprintf(w, "Authoritative income\t$%.2f\n", summary.Decision.AuthoritativeIncome)
		fmt.Fprintf(w, "Simple average\t$%.2f\n", summary.Decision.SimpleAverage)
		fmt.Fprintf(w, "High-confidence only\t$%.2f\n", summary.Decision.HighConfidenceOnlyAvg)
		fmt.Fprintf(w, "Variance\t$%.2f (%.2f%%)\n", summary.Statistics.Variance, summary.Statistics.VariancePercentage)
		fmt.Fprintf(w, "Confidence\t%s\n", summary.Decision.ConfidenceInResult)
		fmt.Fprintf(w, "Recommendation\t%s\n", summary.Decision.Recommendation)
		return w.Flush()
	},
}

func init() {
	summaryCmd.Flags().String("loan", "", "loan ID (required)")
	_ = summaryCmd.MarkFlagRequired("loan")
	rootCmd.AddCommand(summaryCmd)
}
