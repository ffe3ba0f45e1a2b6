package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the step execution ledger",
	Long:  "Commands for listing and viewing pipeline step executions recorded in the ledger database.",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded step executions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		loanID, _ := cmd.Flags().GetString("loan")
		step, _ := cmd.Flags().GetString("step")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			LoanID: loanID,
			Step:   step,
			Status: model.StepStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLOAN\tSTEP\tSTATUS\tSTARTED\tDOCS\tERRORS\tCOST")
		for _, r := range runs {
			docs, errs := 0, 0
			cost := 0.0
			if r.Result != nil {
				docs, errs, cost = r.Result.Documents, r.Result.Errors, r.Result.CostUSD
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t$%.4f\n",
				r.ID[:8], r.LoanID, r.Step, r.Status,
				r.StartedAt.Format("2006-01-02 15:04:05"), docs, errs, cost)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one step execution as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "runs show %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runsListCmd.Flags().String("loan", "", "filter by loan ID")
	runsListCmd.Flags().String("step", "", "filter by step (fetch, semantic, classify, analyze, timeline)")
	runsListCmd.Flags().String("status", "", "filter by status (running, succeeded, failed, skipped)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
