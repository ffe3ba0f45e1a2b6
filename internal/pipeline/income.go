package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/firstkey-holdings/loanproc/internal/consistency"
	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/resilience"
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
)

type analysisResponse struct {
	MonthlyGrossIncome float64        `json:"monthly_gross_income"`
	ConfidenceLevel    string         `json:"confidence_level"`
	IncomeBreakdown    map[string]any `json:"income_breakdown"`
	Reasoning          string         `json:"reasoning"`
}

// Analyze runs the income analysis prompt n times against the income-relevant
// documents and persists each run, then rebuilds the consistency summary from
// every run file on disk. Run numbering continues past existing runs so
// repeated invocations accumulate evidence instead of overwriting it.
func (p *Pipeline) Analyze(ctx context.Context, loanID string, n int) (*model.StepResult, error) {
	if n <= 0 {
		n = 1
	}

	entries, err := p.loadSemanticDocs(loanID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, eris.Errorf("pipeline: no semantic documents for loan %s, run semantic first", loanID)
	}
	if !allClassified(entries) {
		return nil, eris.Errorf("pipeline: loan %s has unclassified documents, run classify first", loanID)
	}

	var docs []string
	for _, e := range entries {
		if e.doc.IncomeRelevance.IsRelevant {
			docs = append(docs, compactContent(e.doc.SemanticContent))
		}
	}
	if len(docs) == 0 {
		return nil, eris.Errorf("pipeline: no income-relevant documents for loan %s", loanID)
	}

	guidelines, err := p.loadGuidelines()
	if err != nil {
		return nil, err
	}
	user := buildAnalysisUserPrompt(guidelines, docs)

	firstRun := p.fs.NextRunNumber(loanID)

	var (
		mu     sync.Mutex
		result model.StepResult
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent())

	for i := 0; i < n; i++ {
		runNumber := firstRun + i
		g.Go(func() error {
			run, usage := p.analyzeOnce(ctx, user, runNumber, len(docs))
			run.RunNumber = runNumber
			run.LoanID = loanID

			// Failed runs are persisted too; the aggregation excludes them
			// but the run numbering must stay dense.
			if err := loanfs.WriteJSON(p.fs.RunFile(loanID, runNumber), run); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if run.Failed() {
				result.Errors++
			} else {
				result.Documents++
			}
			result.CostUSD += p.costs.Chat(p.cfg.Azure.Deployment, usage)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &result, err
	}
	if result.Documents == 0 {
		return &result, eris.Errorf("pipeline: all %d analysis runs failed for loan %s", n, loanID)
	}

	if err := p.Summarize(loanID); err != nil {
		return &result, err
	}

	zap.L().Info("income analysis complete",
		zap.String("loan_id", loanID),
		zap.Int("runs", n),
		zap.Int("first_run", firstRun),
		zap.Int("failed_runs", result.Errors),
	)
	return &result, nil
}

func (p *Pipeline) analyzeOnce(ctx context.Context, user string, runNumber, docCount int) (model.RunResult, azopenai.TokenUsage) {
	resp, err := resilience.DoVal(ctx, p.retryFor("azopenai", "analyze"), func(ctx context.Context) (*azopenai.ChatResponse, error) {
		return p.chat.ChatJSON(ctx, azopenai.ChatRequest{
			System: analysisSystemPrompt,
			User:   user,
		})
	})
	if err != nil {
		zap.L().Warn("analysis run failed", zap.Int("run", runNumber), zap.Error(err))
		return model.RunResult{Error: err.Error(), DocumentsAnalyzed: docCount}, azopenai.TokenUsage{}
	}

	var parsed analysisResponse
	if err := decodeResponse(resp.Content, &parsed); err != nil {
		zap.L().Warn("analysis response unparseable", zap.Int("run", runNumber), zap.Error(err))
		return model.RunResult{Error: err.Error(), DocumentsAnalyzed: docCount}, resp.Usage
	}

	return model.RunResult{
		MonthlyGrossIncome: parsed.MonthlyGrossIncome,
		ConfidenceLevel:    model.ParseConfidence(parsed.ConfidenceLevel),
		IncomeBreakdown:    parsed.IncomeBreakdown,
		Reasoning:          parsed.Reasoning,
		DocumentsAnalyzed:  docCount,
	}, resp.Usage
}

// Summarize rebuilds consistency_summary_all.json from every run file on
// disk, not just the runs of the current invocation.
func (p *Pipeline) Summarize(loanID string) error {
	runPaths, err := p.fs.RunFiles(loanID)
	if err != nil {
		return err
	}
	if len(runPaths) == 0 {
		return eris.Errorf("pipeline: no analysis runs for loan %s", loanID)
	}

	results := make([]model.RunResult, 0, len(runPaths))
	for _, path := range runPaths {
		var run model.RunResult
		if err := loanfs.ReadJSON(path, &run); err != nil {
			return err
		}
		results = append(results, run)
	}

	summary, err := consistency.Aggregate(loanID, results, consistency.Config{
		HighWeight:      p.cfg.Consistency.HighWeight,
		MediumWeight:    p.cfg.Consistency.MediumWeight,
		LowWeight:       p.cfg.Consistency.LowWeight,
		HighThreshold:   p.cfg.Consistency.HighThreshold,
		MediumThreshold: p.cfg.Consistency.MediumThreshold,
	})
	if err != nil {
		return err
	}
	summary.IncomeDocuments = p.incomeDocumentNames(loanID)

	return loanfs.WriteJSON(p.fs.SummaryFile(loanID), summary)
}

// incomeDocumentNames lists the income-relevant document file names. When the
// semantic tree is gone (summary rebuilt from run files alone), the list from
// the previous summary is preserved.
func (p *Pipeline) incomeDocumentNames(loanID string) []string {
	if entries, err := p.loadSemanticDocs(loanID); err == nil {
		var names []string
		for _, e := range entries {
			if e.doc.IncomeRelevance != nil && e.doc.IncomeRelevance.IsRelevant {
				names = append(names, e.doc.Metadata.FileName)
			}
		}
		if len(names) > 0 {
			return names
		}
	}

	var prior model.ConsistencySummary
	if err := loanfs.ReadJSON(p.fs.SummaryFile(loanID), &prior); err == nil {
		return prior.IncomeDocuments
	}
	return nil
}
