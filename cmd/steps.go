package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/pipeline"
)

// Step subcommands run exactly one stage for one loan; `process` runs them
// all. Shared flags mirror the process command.

var (
	stepForce     bool
	stepRefilter  bool
	stepRuns      int
	fetchManifest string
)

func runStep(cmd *cobra.Command, loanID, step string) error {
	ctx := cmd.Context()

	e, err := initPipeline(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.Pipeline.Run(ctx, loanID, pipeline.Options{
		Force:        stepForce,
		Refilter:     stepRefilter,
		AnalysisRuns: stepRuns,
		Steps:        []string{step},
	})
	if err != nil {
		return eris.Wrapf(err, "%s loan %s", step, loanID)
	}

	zap.L().Info("step command finished",
		zap.String("loan_id", loanID),
		zap.String("step", step),
		zap.Float64("cost_usd", report.TotalCostUSD()),
	)
	return nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <loan_id>",
	Short: "Download and OCR every document in a loan's manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loanID := args[0]

		if fetchManifest != "" {
			fs := loanfs.New(cfg.Paths.LoanDocs)
			if err := installManifest(fs, loanID, fetchManifest); err != nil {
				return err
			}
		}
		return runStep(cmd, loanID, pipeline.StepFetch)
	},
}

// installManifest copies an externally produced Harvest metadata file into
// the loan's documents.json slot.
func installManifest(fs loanfs.Layout, loanID, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return eris.Wrapf(err, "read manifest %s", src)
	}
	dst := fs.ManifestFile(loanID)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "mkdir for %s", dst)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return eris.Wrapf(err, "write manifest %s", dst)
	}
	return nil
}

var semanticCmd = &cobra.Command{
	Use:   "semantic <loan_id>",
	Short: "Compress raw OCR documents into semantic JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, args[0], pipeline.StepSemantic)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <loan_id>",
	Short: "Classify semantic documents for income relevance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, args[0], pipeline.StepClassify)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <loan_id>",
	Short: "Run repeated income analyses and rebuild the consistency summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, args[0], pipeline.StepAnalyze)
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <loan_id>",
	Short: "Extract the Form 1003 income timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, args[0], pipeline.StepTimeline)
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchManifest, "manifest", "", "Harvest metadata JSON to install as the loan's document manifest")

	for _, c := range []*cobra.Command{fetchCmd, semanticCmd, classifyCmd, analyzeCmd, timelineCmd} {
		c.Flags().BoolVar(&stepForce, "force", false, "rerun even if outputs exist")
		rootCmd.AddCommand(c)
	}
	classifyCmd.Flags().BoolVar(&stepRefilter, "refilter", false, "reclassify ignoring cached decisions")
	analyzeCmd.Flags().IntVar(&stepRuns, "runs", 0, "analysis runs (default from config)")
}
