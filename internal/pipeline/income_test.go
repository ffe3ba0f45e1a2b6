package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
)

func writeClassifiedDocs(t *testing.T, fs loanfs.Layout) {
	t.Helper()
	paystub := semDoc(1, "paystub.pdf", "paystub")
	paystub.IncomeRelevance = classified(true)
	writeSemanticDoc(t, fs, testLoanID, paystub)

	appraisal := semDoc(2, "appraisal.pdf", "appraisal")
	appraisal.IncomeRelevance = classified(false)
	writeSemanticDoc(t, fs, testLoanID, appraisal)
}

func TestAnalyzeWritesRunsAndSummary(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	writeClassifiedDocs(t, fs)

	chat.On("ChatJSON", mock.Anything, mock.MatchedBy(func(req azopenai.ChatRequest) bool {
		return req.System == analysisSystemPrompt
	})).Return(&azopenai.ChatResponse{
		Content: `{"monthly_gross_income": 9500.00, "confidence_level": "high", "income_breakdown": {"base": 9500.00}, "reasoning": "YTD gross supports this figure."}`,
		Usage:   azopenai.TokenUsage{PromptTokens: 2000, CompletionTokens: 200},
	}, nil)

	res, err := p.Analyze(context.Background(), testLoanID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Documents)
	assert.Zero(t, res.Errors)

	var run1 model.RunResult
	require.NoError(t, loanfs.ReadJSON(fs.RunFile(testLoanID, 1), &run1))
	assert.Equal(t, 1, run1.RunNumber)
	assert.Equal(t, testLoanID, run1.LoanID)
	assert.InDelta(t, 9500, run1.MonthlyGrossIncome, 1e-9)
	assert.Equal(t, model.ConfidenceHigh, run1.ConfidenceLevel)
	assert.Equal(t, 1, run1.DocumentsAnalyzed)

	var summary model.ConsistencySummary
	require.NoError(t, loanfs.ReadJSON(fs.SummaryFile(testLoanID), &summary))
	assert.Equal(t, 2, summary.TotalRuns)
	assert.InDelta(t, 9500, summary.Decision.AuthoritativeIncome, 1e-9)
	assert.Equal(t, model.ConfidenceHigh, summary.Decision.ConfidenceInResult)
}

func TestAnalyzeContinuesRunNumbering(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	writeClassifiedDocs(t, fs)
	require.NoError(t, loanfs.WriteJSON(fs.RunFile(testLoanID, 3), model.RunResult{
		RunNumber:          3,
		MonthlyGrossIncome: 9400,
		ConfidenceLevel:    model.ConfidenceMedium,
	}))

	chat.On("ChatJSON", mock.Anything, mock.Anything).Return(&azopenai.ChatResponse{
		Content: `{"monthly_gross_income": 9600.00, "confidence_level": "high", "reasoning": "ok"}`,
	}, nil)

	_, err := p.Analyze(context.Background(), testLoanID, 1)
	require.NoError(t, err)

	assert.True(t, loanfs.Exists(fs.RunFile(testLoanID, 4)))

	// The summary covers every run file on disk, not just the new one.
	var summary model.ConsistencySummary
	require.NoError(t, loanfs.ReadJSON(fs.SummaryFile(testLoanID), &summary))
	assert.Equal(t, 2, summary.TotalRuns)
}

func TestAnalyzePersistsFailedRuns(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	writeClassifiedDocs(t, fs)
	chat.On("ChatJSON", mock.Anything, mock.Anything).
		Return(&azopenai.ChatResponse{Content: `{"monthly_gross_income": 9500, "confidence_level": "high"}`}, nil).Once()
	chat.On("ChatJSON", mock.Anything, mock.Anything).
		Return(&azopenai.ChatResponse{Content: `not json at all`}, nil).Once()

	res, err := p.Analyze(context.Background(), testLoanID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 1, res.Errors)

	runPaths, err := fs.RunFiles(testLoanID)
	require.NoError(t, err)
	assert.Len(t, runPaths, 2)

	var summary model.ConsistencySummary
	require.NoError(t, loanfs.ReadJSON(fs.SummaryFile(testLoanID), &summary))
	assert.InDelta(t, 9500, summary.Decision.SimpleAverage, 1e-9)
}

func TestAnalyzeRequiresClassification(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	writeSemanticDoc(t, fs, testLoanID, semDoc(1, "paystub.pdf", "paystub"))

	_, err := p.Analyze(context.Background(), testLoanID, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unclassified")
	chat.AssertNotCalled(t, "ChatJSON", mock.Anything, mock.Anything)
}

func TestAnalyzeRequiresRelevantDocuments(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	doc := semDoc(1, "appraisal.pdf", "appraisal")
	doc.IncomeRelevance = classified(false)
	writeSemanticDoc(t, fs, testLoanID, doc)

	_, err := p.Analyze(context.Background(), testLoanID, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no income-relevant documents")
}
