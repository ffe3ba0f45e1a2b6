package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/firstkey-holdings/loanproc/internal/config"
	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/store"
)

const testLoanID = "1000178625"

// newTestPipeline builds a Pipeline over a temp tree with a guidelines file
// in place and a nil ledger.
func newTestPipeline(t *testing.T, chat *mockChatClient, hv *mockHarvestClient, di *mockDocIntelClient) (*Pipeline, loanfs.Layout) {
	t.Helper()
	return newTestPipelineWithLedger(t, chat, hv, di, nil)
}

func newTestPipelineWithLedger(t *testing.T, chat *mockChatClient, hv *mockHarvestClient, di *mockDocIntelClient, ledger store.Store) (*Pipeline, loanfs.Layout) {
	t.Helper()

	root := t.TempDir()
	guidelinesDir := filepath.Join(root, "guidelines")
	require.NoError(t, os.MkdirAll(guidelinesDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(guidelinesDir, guidelinesFileName),
		[]byte(`{"w2_salaried": "use YTD gross from the most recent paystub"}`),
		0o644,
	))

	cfg := &config.Config{
		Azure: config.AzureOpenAIConfig{Deployment: "gpt-4o"},
		Paths: config.PathsConfig{
			LoanDocs:   filepath.Join(root, "loan_docs"),
			Guidelines: guidelinesDir,
		},
		LLM:   config.LLMConfig{MaxConcurrent: 2, MaxRetries: 1},
		Batch: config.BatchConfig{AnalysisRuns: 2},
		Consistency: config.ConsistencyConfig{
			HighWeight: 1.0, MediumWeight: 0.7, LowWeight: 0.4,
			HighThreshold: 0.8, MediumThreshold: 0.5,
		},
	}

	fs := loanfs.New(cfg.Paths.LoanDocs)
	return New(cfg, fs, ledger, chat, hv, di), fs
}

func writeSemanticDoc(t *testing.T, fs loanfs.Layout, loanID string, doc model.SemanticDocument) {
	t.Helper()
	path := filepath.Join(fs.SemanticDir(loanID), doc.Metadata.OutputFileName())
	require.NoError(t, loanfs.WriteJSON(path, doc))
}

func classified(relevant bool) *model.Classification {
	return &model.Classification{
		IsRelevant:     relevant,
		Reason:         "test",
		ClassifiedDate: "2026-08-01T00:00:00Z",
	}
}
