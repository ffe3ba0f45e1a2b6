package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "loanproc",
	Short: "Mortgage loan document processing pipeline",
	Long:  "Fetches loan documents from Harvest, OCRs them with Azure Document Intelligence, compresses and classifies them with Azure OpenAI, and reconciles repeated income analyses against Form 1003 declared income.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
