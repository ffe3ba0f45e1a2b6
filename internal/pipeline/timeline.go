package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/resilience"
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
)

const timelineMaxTokens = 8000

// The response also carries a "summary" block; the authoritative final income
// is derived from the last version instead, so it is not decoded.
type timelineResponse struct {
	IncomeByVersion     []model.Form1003Version    `json:"income_by_version"`
	BorrowerConsistency *model.BorrowerConsistency `json:"borrower_consistency"`
}

// Timeline extracts declared income from every Form 1003 version in upload
// order and writes form_1003_income_timeline.json. All versions go into one
// model call so version-over-version changes are judged with full context.
func (p *Pipeline) Timeline(ctx context.Context, loanID string) (*model.StepResult, error) {
	entries, err := p.loadSemanticDocs(loanID)
	if err != nil {
		return nil, err
	}

	var forms []semanticEntry
	for _, e := range entries {
		if e.doc.IsForm1003() {
			forms = append(forms, e)
		}
	}
	if len(forms) == 0 {
		return nil, eris.Errorf("pipeline: no Form 1003 documents for loan %s", loanID)
	}

	// Undated uploads sort first so the dated, newest version stays final.
	sort.SliceStable(forms, func(i, j int) bool {
		return uploadSortKey(forms[i].doc.Metadata.FileUploadDate) <
			uploadSortKey(forms[j].doc.Metadata.FileUploadDate)
	})

	versions := make([]string, 0, len(forms))
	for _, f := range forms {
		versions = append(versions, fmt.Sprintf("file_id: %d\nfile_name: %s\nupload_date: %s\n%s",
			f.doc.Metadata.FileID, f.doc.Metadata.FileName, f.doc.Metadata.FileUploadDate,
			compactContent(f.doc.SemanticContent)))
	}

	resp, err := resilience.DoVal(ctx, p.retryFor("azopenai", "timeline"), func(ctx context.Context) (*azopenai.ChatResponse, error) {
		return p.chat.ChatJSON(ctx, azopenai.ChatRequest{
			System:    timelineSystemPrompt,
			User:      buildTimelineUserPrompt(versions),
			MaxTokens: timelineMaxTokens,
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: timeline for loan %s", loanID)
	}

	var parsed timelineResponse
	if err := decodeResponse(resp.Content, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.IncomeByVersion) == 0 {
		return nil, eris.Errorf("pipeline: timeline response has no versions for loan %s", loanID)
	}

	timeline := model.Form1003Timeline{
		LoanID:              loanID,
		TotalVersions:       len(parsed.IncomeByVersion),
		IncomeByVersion:     parsed.IncomeByVersion,
		BorrowerConsistency: parsed.BorrowerConsistency,
	}
	if err := loanfs.WriteJSON(p.fs.TimelineFile(loanID), timeline); err != nil {
		return nil, err
	}

	final, _ := timeline.FinalIncome()
	zap.L().Info("form 1003 timeline complete",
		zap.String("loan_id", loanID),
		zap.Int("versions", timeline.TotalVersions),
		zap.Float64("final_combined_income", final),
	)
	return &model.StepResult{
		Documents: len(forms),
		CostUSD:   p.costs.Chat(p.cfg.Azure.Deployment, resp.Usage),
	}, nil
}

func uploadSortKey(date string) string {
	if date == "" {
		return "0000-00-00"
	}
	return date
}
