package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/resilience"
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
)

// Compress turns each raw OCR document into a compact semantic JSON file.
// The Harvest metadata block passes through unchanged so later stages can
// still resolve upload dates and file IDs.
func (p *Pipeline) Compress(ctx context.Context, loanID string, force bool) (*model.StepResult, error) {
	rawPaths, err := p.fs.RawFiles(loanID)
	if err != nil {
		return nil, err
	}
	if len(rawPaths) == 0 {
		return nil, eris.Errorf("pipeline: no raw documents for loan %s, run fetch first", loanID)
	}

	var (
		mu         sync.Mutex
		result     model.StepResult
		totalUsage azopenai.TokenUsage
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent())

	for _, rawPath := range rawPaths {
		outPath := filepath.Join(p.fs.SemanticDir(loanID), filepath.Base(rawPath))
		if !force && loanfs.Exists(outPath) {
			continue
		}

		rawPath := rawPath
		g.Go(func() error {
			usage, err := p.compressOne(ctx, rawPath, outPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors++
				zap.L().Warn("semantic compression failed",
					zap.String("loan_id", loanID),
					zap.String("file", filepath.Base(rawPath)),
					zap.Error(err),
				)
				return nil
			}
			result.Documents++
			result.CostUSD += p.costs.Chat(p.cfg.Azure.Deployment, usage)
			totalUsage.Add(usage)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &result, err
	}

	zap.L().Info("semantic compression complete",
		zap.String("loan_id", loanID),
		zap.Int("processed", result.Documents),
		zap.Int("errors", result.Errors),
		zap.Int("total_tokens", totalUsage.TotalTokens),
		zap.Float64("cost_usd", result.CostUSD),
	)

	if result.Documents == 0 && result.Errors > 0 {
		return &result, eris.Errorf("pipeline: all %d documents failed compression for loan %s", result.Errors, loanID)
	}
	return &result, nil
}

func (p *Pipeline) compressOne(ctx context.Context, rawPath, outPath string) (azopenai.TokenUsage, error) {
	var raw model.RawDocument
	if err := loanfs.ReadJSON(rawPath, &raw); err != nil {
		return azopenai.TokenUsage{}, err
	}

	content, _ := raw.DocumentIntelligence["content"].(string)
	if content == "" {
		return azopenai.TokenUsage{}, eris.Errorf("pipeline: %s has no OCR content", filepath.Base(rawPath))
	}

	user := fmt.Sprintf("File name: %s\nUpload date: %s\n\n--- OCR TEXT ---\n%s",
		raw.Metadata.FileName, raw.Metadata.FileUploadDate, content)

	resp, err := resilience.DoVal(ctx, p.retryFor("azopenai", "compress"), func(ctx context.Context) (*azopenai.ChatResponse, error) {
		return p.chat.ChatJSON(ctx, azopenai.ChatRequest{
			System: semanticSystemPrompt,
			User:   user,
		})
	})
	if err != nil {
		return azopenai.TokenUsage{}, err
	}

	var semantic map[string]any
	if err := decodeResponse(resp.Content, &semantic); err != nil {
		return resp.Usage, err
	}

	out := model.SemanticDocument{
		Metadata:        raw.Metadata,
		SemanticContent: semantic,
		ProcessingMeta: &model.CompressionStats{
			InputChars:  len(content),
			OutputChars: len(resp.Content),
			Ratio:       compressionRatio(len(content), len(resp.Content)),
			Model:       p.cfg.Azure.Deployment,
		},
	}
	if err := loanfs.WriteJSON(outPath, out); err != nil {
		return resp.Usage, err
	}
	return resp.Usage, nil
}

// compressionRatio returns input/output rounded to one decimal.
func compressionRatio(inChars, outChars int) float64 {
	if outChars == 0 {
		return 0
	}
	return math.Round(float64(inChars)/float64(outChars)*10) / 10
}

// compactContent renders a semantic content block as one-line JSON for
// inclusion in downstream prompts.
func compactContent(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
