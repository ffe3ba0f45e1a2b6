// Package model defines the document and income-analysis types shared by
// the loan processing pipeline.
package model

import (
	"fmt"
	"strings"
	"time"
)

// DocumentMeta is the per-file metadata returned by the Harvest API.
// It is preserved verbatim through every pipeline stage.
type DocumentMeta struct {
	FileID         int64  `json:"FileId"`
	FileName       string `json:"FileName"`
	FileFullName   string `json:"FileFullName"` // UNC path on the file share
	FileUploadDate string `json:"FileUploadDate,omitempty"`
	IsExpandable   bool   `json:"IsExpandable,omitempty"`
}

// OutputFileName returns the raw/semantic JSON file name for this document,
// e.g. "FID12345_W2 2023.json". Path separators and colons in the original
// file name are flattened, and the name is capped at 100 characters.
func (m DocumentMeta) OutputFileName() string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(m.FileName)
	if len(name) > 100 {
		name = name[:100]
	}
	return fmt.Sprintf("FID%d_%s.json", m.FileID, name)
}

// ProcessingInfo records when and how a document was processed.
type ProcessingInfo struct {
	ProcessedAt     time.Time `json:"processed_at"`
	Source          string    `json:"source"`
	PipelineVersion string    `json:"pipeline_version"`
}

// RawDocument combines Harvest metadata with the raw Document Intelligence
// layout output. One file per document under raw_json/.
type RawDocument struct {
	Metadata             DocumentMeta   `json:"metadata"`
	DocumentIntelligence map[string]any `json:"document_intelligence"`
	ProcessingInfo       ProcessingInfo `json:"processing_info"`
}

// CompressionStats records how much the semantic pass shrank a document.
type CompressionStats struct {
	InputChars  int     `json:"input_chars"`
	OutputChars int     `json:"output_chars"`
	Ratio       float64 `json:"ratio"`
	Model       string  `json:"model"`
}

// Classification is the cached income-relevance decision written back into a
// semantic JSON file by the classify stage.
type Classification struct {
	IsRelevant     bool   `json:"is_relevant"`
	Reason         string `json:"reason"`
	ClassifiedDate string `json:"classified_date"`
}

// SemanticDocument is the LLM-compressed form of a RawDocument. The metadata
// block is carried over unchanged; semantic_content is whatever schema the
// model chose for the document type.
type SemanticDocument struct {
	Metadata        DocumentMeta      `json:"metadata"`
	SemanticContent map[string]any    `json:"semantic_content"`
	IncomeRelevance *Classification   `json:"income_verification_relevant,omitempty"`
	ProcessingMeta  *CompressionStats `json:"_processing_metadata,omitempty"`
}

// DocumentType returns the LLM-identified document type, or "unknown".
func (d *SemanticDocument) DocumentType() string {
	if t, ok := d.SemanticContent["document_type"].(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// Summary returns the LLM-written one-paragraph summary, if present.
func (d *SemanticDocument) Summary() string {
	s, _ := d.SemanticContent["summary"].(string)
	return s
}

// IsForm1003 reports whether this document looks like a Uniform Residential
// Loan Application, by declared type or by file name.
func (d *SemanticDocument) IsForm1003() bool {
	t := strings.ToLower(d.DocumentType())
	if strings.Contains(t, "1003") || strings.Contains(t, "urla") ||
		strings.Contains(t, "loan application") {
		return true
	}
	name := strings.ToLower(d.Metadata.FileName)
	return strings.Contains(name, "1003") || strings.Contains(name, "urla")
}
