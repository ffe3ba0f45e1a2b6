package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/pipeline"
)

var (
	processLoanID   string
	processForce    bool
	processRefilter bool
	processRuns     int
	processSteps    []string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the document pipeline for a single loan",
	Long:  "Runs fetch, semantic, classify, analyze, and timeline for one loan. Completed steps are skipped unless --force is set; --steps restricts the run to a subset.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.Pipeline.Run(ctx, processLoanID, pipeline.Options{
			Force:        processForce,
			Refilter:     processRefilter,
			AnalysisRuns: processRuns,
			Steps:        processSteps,
		})
		if err != nil {
			return eris.Wrapf(err, "process loan %s", processLoanID)
		}

		zap.L().Info("loan processed",
			zap.String("loan_id", processLoanID),
			zap.Int("steps", len(report.Steps)),
			zap.Float64("total_cost_usd", report.TotalCostUSD()),
		)
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processLoanID, "loan", "", "loan ID (required)")
	processCmd.Flags().BoolVar(&processForce, "force", false, "rerun steps whose outputs exist")
	processCmd.Flags().BoolVar(&processRefilter, "refilter", false, "reclassify documents ignoring cached decisions")
	processCmd.Flags().IntVar(&processRuns, "runs", 0, "analysis runs (default from config)")
	processCmd.Flags().StringSliceVar(&processSteps, "steps", nil, "subset of steps to run (fetch,semantic,classify,analyze,timeline)")
	_ = processCmd.MarkFlagRequired("loan")
	rootCmd.AddCommand(processCmd)
}
