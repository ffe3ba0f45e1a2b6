package main

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/firstkey-holdings/loanproc/internal/pipeline"
	"github.com/firstkey-holdings/loanproc/internal/resilience"
)

var (
	batchLoansFile   string
	batchRetryFailed bool
	batchConcurrency int
	batchRuns        int
	batchForce       bool
	batchSteps       []string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process many loans concurrently",
	Long:  "Runs the full pipeline for every loan under the loan_docs root, a loan list file, or the failed queue. Failures are appended to the failed queue for later retry with --retry-failed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		queue := resilience.NewFailedQueue(cfg.Batch.FailedQueuePath)

		loanIDs, err := batchLoanIDs(e, queue)
		if err != nil {
			return err
		}
		if len(loanIDs) == 0 {
			zap.L().Info("nothing to process")
			return nil
		}

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentLoans
		}

		zap.L().Info("batch starting",
			zap.Int("loans", len(loanIDs)),
			zap.Int("concurrency", concurrency),
		)

		var (
			mu        sync.Mutex
			succeeded int
			failed    int
			totalCost float64
		)

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for _, loanID := range loanIDs {
			loanID := loanID
			g.Go(func() error {
				report, runErr := e.Pipeline.Run(ctx, loanID, pipeline.Options{
					Force:        batchForce,
					AnalysisRuns: batchRuns,
					Steps:        batchSteps,
				})

				mu.Lock()
				defer mu.Unlock()
				if report != nil {
					totalCost += report.TotalCostUSD()
				}
				if runErr != nil {
					failed++
					entry := resilience.FailedLoan{
						LoanID:    loanID,
						Error:     runErr.Error(),
						Transient: resilience.IsTransient(runErr),
						FailedAt:  time.Now().UTC(),
					}
					if report != nil && len(report.Steps) > 0 {
						entry.FailedStep = report.Steps[len(report.Steps)-1].Name
					}
					if qerr := queue.Append(entry); qerr != nil {
						zap.L().Error("failed to record loan in failed queue", zap.Error(qerr))
					}
					zap.L().Error("loan failed",
						zap.String("loan_id", loanID), zap.Error(runErr))
					return nil
				}
				succeeded++
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("batch complete",
			zap.Int("succeeded", succeeded),
			zap.Int("failed", failed),
			zap.Float64("total_cost_usd", totalCost),
		)
		if failed > 0 {
			return eris.Errorf("batch: %d of %d loans failed, retry with --retry-failed", failed, len(loanIDs))
		}
		return nil
	},
}

// batchLoanIDs resolves the loan set: the failed queue, an explicit list
// file, or every directory under the loan_docs root.
func batchLoanIDs(e *env, queue *resilience.FailedQueue) ([]string, error) {
	if batchRetryFailed {
		ids, err := queue.Drain()
		if err != nil {
			return nil, err
		}
		return ids, nil
	}

	if batchLoansFile != "" {
		f, err := os.Open(batchLoansFile)
		if err != nil {
			return nil, eris.Wrapf(err, "open loans file %s", batchLoansFile)
		}
		defer f.Close() //nolint:errcheck

		var ids []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			id := strings.TrimSpace(scanner.Text())
			if id != "" && !strings.HasPrefix(id, "#") {
				ids = append(ids, id)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrap(err, "read loans file")
		}
		return ids, nil
	}

	return e.FS.LoanIDs()
}

func init() {
	batchCmd.Flags().StringVar(&batchLoansFile, "loans", "", "file with one loan ID per line")
	batchCmd.Flags().BoolVar(&batchRetryFailed, "retry-failed", false, "process loans from the failed queue")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent loans (default from config)")
	batchCmd.Flags().IntVar(&batchRuns, "runs", 0, "analysis runs per loan (default from config)")
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "rerun steps whose outputs exist")
	batchCmd.Flags().StringSliceVar(&batchSteps, "steps", nil, "subset of steps to run (default: all)")
	rootCmd.AddCommand(batchCmd)
}
