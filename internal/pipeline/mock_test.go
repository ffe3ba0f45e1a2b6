package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/store"
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
	"github.com/firstkey-holdings/loanproc/pkg/docintel"
	"github.com/firstkey-holdings/loanproc/pkg/harvest"
)

// --- Azure OpenAI Mock ---

type mockChatClient struct {
	mock.Mock
}

func (m *mockChatClient) ChatJSON(ctx context.Context, req azopenai.ChatRequest) (*azopenai.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*azopenai.ChatResponse), args.Error(1)
}

// --- Harvest Mock ---

type mockHarvestClient struct {
	mock.Mock
}

func (m *mockHarvestClient) FetchPDF(ctx context.Context, uncPath string) ([]byte, error) {
	args := m.Called(ctx, uncPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- Document Intelligence Mock ---

type mockDocIntelClient struct {
	mock.Mock
}

func (m *mockDocIntelClient) AnalyzeLayout(ctx context.Context, pdfBytes []byte) (map[string]any, error) {
	args := m.Called(ctx, pdfBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) StartStep(ctx context.Context, loanID, step string) (*model.PipelineRun, error) {
	args := m.Called(ctx, loanID, step)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PipelineRun), args.Error(1)
}

func (m *mockStore) FinishStep(ctx context.Context, runID string, result *model.StepResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.PipelineRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PipelineRun), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.PipelineRun, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PipelineRun), args.Error(1)
}

func (m *mockStore) LatestStep(ctx context.Context, loanID, step string) (*model.PipelineRun, error) {
	args := m.Called(ctx, loanID, step)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PipelineRun), args.Error(1)
}

func (m *mockStore) UpsertComparisons(ctx context.Context, records []model.ComparisonRecord) (int64, error) {
	args := m.Called(ctx, records)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Ensure interface compliance ---
var (
	_ azopenai.Client = (*mockChatClient)(nil)
	_ harvest.Client  = (*mockHarvestClient)(nil)
	_ docintel.Client = (*mockDocIntelClient)(nil)
	_ store.Store     = (*mockStore)(nil)
)
