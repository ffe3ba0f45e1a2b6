// Package pipeline orchestrates the loan document processing stages: fetch
// PDFs from Harvest and OCR them, compress the OCR output into semantic JSON,
// classify documents for income relevance, run repeated income analyses, and
// track declared income across Form 1003 versions. Stages compose by file
// handoff under loan_docs/<loan_id>/; each stage is independently resumable.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/config"
	"github.com/firstkey-holdings/loanproc/internal/cost"
	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/resilience"
	"github.com/firstkey-holdings/loanproc/internal/store"
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
	"github.com/firstkey-holdings/loanproc/pkg/docintel"
	"github.com/firstkey-holdings/loanproc/pkg/harvest"
)

// Step names recorded in the run ledger.
const (
	StepFetch    = "fetch"
	StepSemantic = "semantic"
	StepClassify = "classify"
	StepAnalyze  = "analyze"
	StepTimeline = "timeline"
)

// AllSteps is the canonical execution order.
var AllSteps = []string{StepFetch, StepSemantic, StepClassify, StepAnalyze, StepTimeline}

// Options controls a pipeline invocation.
type Options struct {
	// Force reruns steps whose outputs already exist.
	Force bool

	// Refilter reclassifies documents even when cached relevance decisions
	// cover every document.
	Refilter bool

	// AnalysisRuns is the number of income analysis runs. Zero uses the
	// configured batch default.
	AnalysisRuns int

	// Steps restricts execution to a subset of AllSteps. Empty runs all.
	Steps []string
}

// Pipeline holds the clients and configuration shared by all stages.
type Pipeline struct {
	cfg      *config.Config
	fs       loanfs.Layout
	ledger   store.Store // nil disables ledger recording
	chat     azopenai.Client
	harvest  harvest.Client
	docintel docintel.Client
	costs    *cost.Calculator
	retry    resilience.RetryConfig
}

// New creates a Pipeline. The ledger may be nil, in which case step
// executions are not persisted.
func New(cfg *config.Config, fs loanfs.Layout, ledger store.Store,
	chat azopenai.Client, hv harvest.Client, di docintel.Client) *Pipeline {

	retry := resilience.DefaultRetryConfig()
	if cfg.LLM.MaxRetries > 0 {
		retry.MaxAttempts = cfg.LLM.MaxRetries
	}

	return &Pipeline{
		cfg:      cfg,
		fs:       fs,
		ledger:   ledger,
		chat:     chat,
		harvest:  hv,
		docintel: di,
		costs:    cost.NewCalculator(cost.DefaultRates()),
		retry:    retry,
	}
}

// StepOutcome pairs a step name with its recorded result.
type StepOutcome struct {
	Name   string
	Result *model.StepResult
}

// RunReport summarizes one pipeline invocation for a loan.
type RunReport struct {
	LoanID string
	Steps  []StepOutcome
}

// TotalCostUSD sums the estimated spend across executed steps.
func (r *RunReport) TotalCostUSD() float64 {
	var total float64
	for _, s := range r.Steps {
		if s.Result != nil {
			total += s.Result.CostUSD
		}
	}
	return total
}

type stepDef struct {
	name string
	done func(loanID string) bool
	run  func(ctx context.Context, loanID string, opts Options) (*model.StepResult, error)
}

func (p *Pipeline) steps() []stepDef {
	return []stepDef{
		{StepFetch, p.fetchDone, func(ctx context.Context, loanID string, opts Options) (*model.StepResult, error) {
			return p.Fetch(ctx, loanID, opts.Force)
		}},
		{StepSemantic, p.semanticDone, func(ctx context.Context, loanID string, opts Options) (*model.StepResult, error) {
			return p.Compress(ctx, loanID, opts.Force)
		}},
		{StepClassify, p.classifyDone, func(ctx context.Context, loanID string, opts Options) (*model.StepResult, error) {
			return p.Classify(ctx, loanID, opts.Refilter)
		}},
		{StepAnalyze, p.analyzeDone, func(ctx context.Context, loanID string, opts Options) (*model.StepResult, error) {
			runs := opts.AnalysisRuns
			if runs <= 0 {
				runs = p.cfg.Batch.AnalysisRuns
			}
			return p.Analyze(ctx, loanID, runs)
		}},
		{StepTimeline, p.timelineDone, func(ctx context.Context, loanID string, opts Options) (*model.StepResult, error) {
			return p.Timeline(ctx, loanID)
		}},
	}
}

// Run executes the selected steps in order for one loan. A step failure stops
// the run, since every stage consumes the previous stage's output.
func (p *Pipeline) Run(ctx context.Context, loanID string, opts Options) (*RunReport, error) {
	selected := make(map[string]bool, len(opts.Steps))
	for _, s := range opts.Steps {
		selected[s] = true
	}

	report := &RunReport{LoanID: loanID}
	for _, step := range p.steps() {
		if len(selected) > 0 && !selected[step.name] {
			continue
		}

		if !opts.Force && step.done(loanID) {
			zap.L().Info("step already complete, skipping",
				zap.String("loan_id", loanID),
				zap.String("step", step.name),
			)
			report.Steps = append(report.Steps, StepOutcome{
				Name:   step.name,
				Result: &model.StepResult{Status: model.StepStatusSkipped},
			})
			continue
		}

		res, err := p.trackStep(ctx, loanID, step.name, func(ctx context.Context) (*model.StepResult, error) {
			return step.run(ctx, loanID, opts)
		})
		report.Steps = append(report.Steps, StepOutcome{Name: step.name, Result: res})
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// trackStep records a step execution in the run ledger around fn. Ledger
// failures never fail the step itself.
func (p *Pipeline) trackStep(ctx context.Context, loanID, name string,
	fn func(ctx context.Context) (*model.StepResult, error)) (*model.StepResult, error) {

	var runID string
	if p.ledger != nil {
		run, err := p.ledger.StartStep(ctx, loanID, name)
		if err != nil {
			zap.L().Warn("failed to record step start",
				zap.String("loan_id", loanID), zap.String("step", name), zap.Error(err))
		} else {
			runID = run.ID
		}
	}

	start := time.Now()
	res, err := fn(ctx)
	if res == nil {
		res = &model.StepResult{}
	}
	res.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		res.Status = model.StepStatusFailed
		res.Error = err.Error()
	} else if res.Status == "" {
		res.Status = model.StepStatusSucceeded
	}

	if runID != "" {
		if ferr := p.ledger.FinishStep(ctx, runID, res); ferr != nil {
			zap.L().Warn("failed to record step finish",
				zap.String("loan_id", loanID), zap.String("step", name), zap.Error(ferr))
		}
	}

	zap.L().Info("step finished",
		zap.String("loan_id", loanID),
		zap.String("step", name),
		zap.String("status", string(res.Status)),
		zap.Int("documents", res.Documents),
		zap.Int("errors", res.Errors),
		zap.Int64("duration_ms", res.DurationMS),
	)
	return res, err
}

func (p *Pipeline) fetchDone(loanID string) bool {
	raw, err := p.fs.RawFiles(loanID)
	return err == nil && len(raw) > 0
}

func (p *Pipeline) semanticDone(loanID string) bool {
	raw, err := p.fs.RawFiles(loanID)
	if err != nil || len(raw) == 0 {
		return false
	}
	sem, err := p.fs.SemanticFiles(loanID)
	return err == nil && len(sem) >= len(raw)
}

func (p *Pipeline) classifyDone(loanID string) bool {
	docs, err := p.loadSemanticDocs(loanID)
	if err != nil || len(docs) == 0 {
		return false
	}
	for _, d := range docs {
		if d.doc.IncomeRelevance == nil {
			return false
		}
	}
	return true
}

func (p *Pipeline) analyzeDone(loanID string) bool {
	return loanfs.Exists(p.fs.SummaryFile(loanID))
}

func (p *Pipeline) timelineDone(loanID string) bool {
	return loanfs.Exists(p.fs.TimelineFile(loanID))
}

func (p *Pipeline) maxConcurrent() int {
	if p.cfg.LLM.MaxConcurrent > 0 {
		return p.cfg.LLM.MaxConcurrent
	}
	return 5
}
