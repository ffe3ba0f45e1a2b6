package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/resilience"
)

const pipelineVersion = "2.0"

// Fetch downloads every document listed in the loan's manifest from Harvest,
// runs it through Document Intelligence layout analysis, and writes one
// combined JSON file per document under raw_json/. Per-document failures are
// tolerated; the step fails only when nothing could be processed.
func (p *Pipeline) Fetch(ctx context.Context, loanID string, force bool) (*model.StepResult, error) {
	var docs []model.DocumentMeta
	if err := loanfs.ReadJSON(p.fs.ManifestFile(loanID), &docs); err != nil {
		return nil, eris.Wrapf(err, "pipeline: load document manifest for loan %s", loanID)
	}

	var (
		mu      sync.Mutex
		result  model.StepResult
		skipped int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent())

	for _, doc := range docs {
		if doc.IsExpandable {
			// Container entries (zip bundles) are listed alongside their
			// extracted children; only the children carry content.
			skipped++
			continue
		}
		if doc.FileFullName == "" {
			zap.L().Warn("document has no share path, skipping",
				zap.String("loan_id", loanID), zap.Int64("file_id", doc.FileID))
			skipped++
			continue
		}

		outPath := filepath.Join(p.fs.RawDir(loanID), doc.OutputFileName())
		if !force && loanfs.Exists(outPath) {
			skipped++
			continue
		}

		doc := doc
		g.Go(func() error {
			pages, err := p.fetchOne(ctx, doc, outPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors++
				zap.L().Warn("document fetch failed",
					zap.String("loan_id", loanID),
					zap.Int64("file_id", doc.FileID),
					zap.String("file_name", doc.FileName),
					zap.Error(err),
				)
				return nil
			}
			result.Documents++
			result.CostUSD += p.costs.OCRPages(pages)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &result, err
	}

	zap.L().Info("fetch complete",
		zap.String("loan_id", loanID),
		zap.Int("processed", result.Documents),
		zap.Int("skipped", skipped),
		zap.Int("errors", result.Errors),
		zap.Float64("ocr_cost_usd", result.CostUSD),
	)

	if result.Documents == 0 && result.Errors > 0 {
		return &result, eris.Errorf("pipeline: all %d documents failed for loan %s", result.Errors, loanID)
	}
	return &result, nil
}

func (p *Pipeline) fetchOne(ctx context.Context, doc model.DocumentMeta, outPath string) (int, error) {
	pdf, err := resilience.DoVal(ctx, p.retryFor("harvest", "fetch_pdf"), func(ctx context.Context) ([]byte, error) {
		return p.harvest.FetchPDF(ctx, doc.FileFullName)
	})
	if err != nil {
		return 0, err
	}

	analysis, err := resilience.DoVal(ctx, p.retryFor("docintel", "analyze_layout"), func(ctx context.Context) (map[string]any, error) {
		return p.docintel.AnalyzeLayout(ctx, pdf)
	})
	if err != nil {
		return 0, err
	}

	if err := loanfs.WriteJSON(outPath, model.RawDocument{
		Metadata:             doc,
		DocumentIntelligence: analysis,
		ProcessingInfo: model.ProcessingInfo{
			ProcessedAt:     time.Now().UTC(),
			Source:          "harvest_api",
			PipelineVersion: pipelineVersion,
		},
	}); err != nil {
		return 0, err
	}
	return pageCount(analysis), nil
}

// pageCount reads the page list out of a Document Intelligence analyzeResult.
func pageCount(analysis map[string]any) int {
	pages, _ := analysis["pages"].([]any)
	return len(pages)
}

func (p *Pipeline) retryFor(service, operation string) resilience.RetryConfig {
	cfg := p.retry
	cfg.OnRetry = resilience.RetryLogger(service, operation)
	return cfg
}
