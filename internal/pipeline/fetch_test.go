package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
)

func writeManifest(t *testing.T, fs loanfs.Layout, loanID string, docs []model.DocumentMeta) {
	t.Helper()
	require.NoError(t, loanfs.WriteJSON(fs.ManifestFile(loanID), docs))
}

func TestFetchSkipsExpandableAndUnpathedDocuments(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	writeManifest(t, fs, testLoanID, []model.DocumentMeta{
		{FileID: 1, FileName: "bundle.zip", FileFullName: `\\share\bundle.zip`, IsExpandable: true},
		{FileID: 2, FileName: "orphan.pdf"},
		{FileID: 3, FileName: "W2 2023.pdf", FileFullName: `\\share\W2 2023.pdf`},
	})

	hv.On("FetchPDF", mock.Anything, `\\share\W2 2023.pdf`).Return([]byte("%PDF-"), nil)
	di.On("AnalyzeLayout", mock.Anything, []byte("%PDF-")).
		Return(map[string]any{"content": "W-2 Wage and Tax Statement"}, nil)

	res, err := p.Fetch(context.Background(), testLoanID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Zero(t, res.Errors)

	var raw model.RawDocument
	path := filepath.Join(fs.RawDir(testLoanID), "FID3_W2 2023.pdf.json")
	require.NoError(t, loanfs.ReadJSON(path, &raw))
	assert.Equal(t, int64(3), raw.Metadata.FileID)
	assert.Equal(t, "W-2 Wage and Tax Statement", raw.DocumentIntelligence["content"])
	assert.Equal(t, "harvest_api", raw.ProcessingInfo.Source)

	hv.AssertNumberOfCalls(t, "FetchPDF", 1)
}

func TestFetchAttributesOCRCost(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	writeManifest(t, fs, testLoanID, []model.DocumentMeta{
		{FileID: 1, FileName: "W2 2023.pdf", FileFullName: `\\share\W2 2023.pdf`},
	})

	hv.On("FetchPDF", mock.Anything, mock.Anything).Return([]byte("%PDF-"), nil)
	di.On("AnalyzeLayout", mock.Anything, mock.Anything).Return(map[string]any{
		"content": "W-2 Wage and Tax Statement",
		"pages": []any{
			map[string]any{"pageNumber": 1},
			map[string]any{"pageNumber": 2},
			map[string]any{"pageNumber": 3},
		},
	}, nil)

	res, err := p.Fetch(context.Background(), testLoanID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	// 3 pages at $10 per 1000 pages.
	assert.InDelta(t, 0.03, res.CostUSD, 1e-9)
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 2, pageCount(map[string]any{"pages": []any{1, 2}}))
	assert.Zero(t, pageCount(map[string]any{"content": "no page list"}))
	assert.Zero(t, pageCount(map[string]any{"pages": "not a list"}))
}

func TestFetchToleratesPerDocumentFailures(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	writeManifest(t, fs, testLoanID, []model.DocumentMeta{
		{FileID: 1, FileName: "good.pdf", FileFullName: `\\share\good.pdf`},
		{FileID: 2, FileName: "bad.pdf", FileFullName: `\\share\bad.pdf`},
	})

	hv.On("FetchPDF", mock.Anything, `\\share\good.pdf`).Return([]byte("ok"), nil)
	hv.On("FetchPDF", mock.Anything, `\\share\bad.pdf`).Return(nil, errors.New("proxy timeout"))
	di.On("AnalyzeLayout", mock.Anything, []byte("ok")).
		Return(map[string]any{"content": "text"}, nil)

	res, err := p.Fetch(context.Background(), testLoanID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 1, res.Errors)
	assert.False(t, loanfs.Exists(filepath.Join(fs.RawDir(testLoanID), "FID2_bad.pdf.json")))
}

func TestFetchFailsWhenEverythingFails(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	writeManifest(t, fs, testLoanID, []model.DocumentMeta{
		{FileID: 1, FileName: "bad.pdf", FileFullName: `\\share\bad.pdf`},
	})
	hv.On("FetchPDF", mock.Anything, mock.Anything).Return(nil, errors.New("proxy down"))

	res, err := p.Fetch(context.Background(), testLoanID, false)
	require.Error(t, err)
	assert.Equal(t, 1, res.Errors)
}

func TestFetchSkipsExistingOutputsUnlessForced(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, fs := newTestPipeline(t, chat, hv, di)

	doc := model.DocumentMeta{FileID: 7, FileName: "paystub.pdf", FileFullName: `\\share\paystub.pdf`}
	writeManifest(t, fs, testLoanID, []model.DocumentMeta{doc})
	require.NoError(t, loanfs.WriteJSON(
		filepath.Join(fs.RawDir(testLoanID), doc.OutputFileName()),
		model.RawDocument{Metadata: doc},
	))

	res, err := p.Fetch(context.Background(), testLoanID, false)
	require.NoError(t, err)
	assert.Zero(t, res.Documents)
	hv.AssertNotCalled(t, "FetchPDF", mock.Anything, mock.Anything)
}

func TestFetchMissingManifest(t *testing.T) {
	chat := new(mockChatClient)
	hv := new(mockHarvestClient)
	di := new(mockDocIntelClient)
	p, _ := newTestPipeline(t, chat, hv, di)

	_, err := p.Fetch(context.Background(), testLoanID, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document manifest")
}
