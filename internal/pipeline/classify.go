package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/resilience"
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
)

const guidelinesFileName = "income_underwriting_decision_tree.json"

type semanticEntry struct {
	path string
	doc  *model.SemanticDocument
}

func (p *Pipeline) loadSemanticDocs(loanID string) ([]semanticEntry, error) {
	paths, err := p.fs.SemanticFiles(loanID)
	if err != nil {
		return nil, err
	}
	entries := make([]semanticEntry, 0, len(paths))
	for _, path := range paths {
		var doc model.SemanticDocument
		if err := loanfs.ReadJSON(path, &doc); err != nil {
			return nil, err
		}
		entries = append(entries, semanticEntry{path: path, doc: &doc})
	}
	return entries, nil
}

type docSummary struct {
	FileID         int64
	FileName       string
	DocumentType   string
	Summary        string
	ContentPreview string
}

type classifyDecision struct {
	FileID int64  `json:"file_id"`
	Reason string `json:"reason"`
}

type classifyResponse struct {
	IncomeDocuments   []classifyDecision `json:"income_verification_documents"`
	ExcludedDocuments []classifyDecision `json:"excluded_documents"`
}

// Classify marks each semantic document as income-relevant or not. Decisions
// are written back into the semantic files, so a rerun with cached decisions
// covering every document is free unless refilter is set.
func (p *Pipeline) Classify(ctx context.Context, loanID string, refilter bool) (*model.StepResult, error) {
	entries, err := p.loadSemanticDocs(loanID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, eris.Errorf("pipeline: no semantic documents for loan %s, run semantic first", loanID)
	}

	if !refilter && allClassified(entries) {
		relevant := 0
		for _, e := range entries {
			if e.doc.IncomeRelevance.IsRelevant {
				relevant++
			}
		}
		zap.L().Info("classification cached for all documents",
			zap.String("loan_id", loanID),
			zap.Int("documents", len(entries)),
			zap.Int("relevant", relevant),
		)
		return &model.StepResult{Documents: len(entries)}, nil
	}

	guidelines, err := p.loadGuidelines()
	if err != nil {
		return nil, err
	}

	summaries := make([]docSummary, 0, len(entries))
	for _, e := range entries {
		preview := truncateUTF8(compactContent(e.doc.SemanticContent), docSummaryPreviewChars)
		summaries = append(summaries, docSummary{
			FileID:         e.doc.Metadata.FileID,
			FileName:       e.doc.Metadata.FileName,
			DocumentType:   e.doc.DocumentType(),
			Summary:        e.doc.Summary(),
			ContentPreview: preview,
		})
	}

	resp, err := resilience.DoVal(ctx, p.retryFor("azopenai", "classify"), func(ctx context.Context) (*azopenai.ChatResponse, error) {
		return p.chat.ChatJSON(ctx, azopenai.ChatRequest{
			System: classifySystemPrompt,
			User:   buildClassifyUserPrompt(guidelines, summaries),
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: classify loan %s", loanID)
	}

	var decisions classifyResponse
	if err := decodeResponse(resp.Content, &decisions); err != nil {
		return nil, err
	}

	reasons := make(map[int64]model.Classification, len(entries))
	now := time.Now().UTC().Format(time.RFC3339)
	for _, d := range decisions.IncomeDocuments {
		reasons[d.FileID] = model.Classification{IsRelevant: true, Reason: d.Reason, ClassifiedDate: now}
	}
	for _, d := range decisions.ExcludedDocuments {
		reasons[d.FileID] = model.Classification{IsRelevant: false, Reason: d.Reason, ClassifiedDate: now}
	}

	result := &model.StepResult{CostUSD: p.costs.Chat(p.cfg.Azure.Deployment, resp.Usage)}
	relevant := 0
	for _, e := range entries {
		cls, ok := reasons[e.doc.Metadata.FileID]
		if !ok {
			// The model dropped this file from both lists. Treat as not
			// relevant rather than failing the whole loan.
			cls = model.Classification{IsRelevant: false, Reason: "Not classified by LLM", ClassifiedDate: now}
			zap.L().Warn("document missing from classification response",
				zap.String("loan_id", loanID),
				zap.Int64("file_id", e.doc.Metadata.FileID),
			)
		}
		e.doc.IncomeRelevance = &cls
		if err := loanfs.WriteJSON(e.path, e.doc); err != nil {
			return result, err
		}
		result.Documents++
		if cls.IsRelevant {
			relevant++
		}
	}

	zap.L().Info("classification complete",
		zap.String("loan_id", loanID),
		zap.Int("documents", result.Documents),
		zap.Int("relevant", relevant),
	)
	return result, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func allClassified(entries []semanticEntry) bool {
	for _, e := range entries {
		if e.doc.IncomeRelevance == nil {
			return false
		}
	}
	return true
}

// loadGuidelines reads the underwriting guidelines document. Classification
// and analysis both refuse to run without it, so policy changes cannot be
// silently skipped.
func (p *Pipeline) loadGuidelines() (string, error) {
	path := filepath.Join(p.cfg.Paths.Guidelines, guidelinesFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: load guidelines %s", path)
	}
	return string(data), nil
}
