// Package loanfs knows the on-disk layout of loan artifacts:
//
//	loan_docs/<loan_id>/raw_json/FID<id>_<name>.json
//	loan_docs/<loan_id>/semantic_json/FID<id>_<name>.json
//	loan_docs/<loan_id>/income_analysis/income_analysis_run<k>.json
//	loan_docs/<loan_id>/income_analysis/consistency_summary_all.json
//	loan_docs/<loan_id>/income_analysis/form_1003_income_timeline.json
//	loan_docs/<loan_id>/reports/*.html
//
// Stages compose by file handoff: each stage's output directory is the next
// stage's input directory.
package loanfs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// Layout resolves artifact paths under a loan_docs root.
type Layout struct {
	Root string
}

// New creates a Layout rooted at dir.
func New(dir string) Layout { return Layout{Root: dir} }

func (l Layout) LoanDir(loanID string) string {
	return filepath.Join(l.Root, loanID)
}

// ManifestFile is the Harvest document listing for a loan, the input to the
// fetch stage.
func (l Layout) ManifestFile(loanID string) string {
	return filepath.Join(l.Root, loanID, "documents.json")
}

func (l Layout) RawDir(loanID string) string {
	return filepath.Join(l.Root, loanID, "raw_json")
}

func (l Layout) SemanticDir(loanID string) string {
	return filepath.Join(l.Root, loanID, "semantic_json")
}

func (l Layout) IncomeDir(loanID string) string {
	return filepath.Join(l.Root, loanID, "income_analysis")
}

func (l Layout) EmploymentDir(loanID string) string {
	return filepath.Join(l.Root, loanID, "employment_history")
}

func (l Layout) ReportsDir(loanID string) string {
	return filepath.Join(l.Root, loanID, "reports")
}

func (l Layout) RunFile(loanID string, runNumber int) string {
	return filepath.Join(l.IncomeDir(loanID), fmt.Sprintf("income_analysis_run%d.json", runNumber))
}

func (l Layout) SummaryFile(loanID string) string {
	return filepath.Join(l.IncomeDir(loanID), "consistency_summary_all.json")
}

func (l Layout) TimelineFile(loanID string) string {
	return filepath.Join(l.IncomeDir(loanID), "form_1003_income_timeline.json")
}

func (l Layout) EmploymentHistoryFile(loanID string) string {
	return filepath.Join(l.EmploymentDir(loanID), "employment_history.json")
}

// LoanIDs lists loan directories under the root, sorted.
func (l Layout) LoanIDs() ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, eris.Wrapf(err, "loanfs: read root %s", l.Root)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

var runFileRe = regexp.MustCompile(`^income_analysis_run(\d+)\.json$`)

// RunFiles lists income_analysis_run*.json paths sorted by run number.
func (l Layout) RunFiles(loanID string) ([]string, error) {
	dir := l.IncomeDir(loanID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "loanfs: read income analysis dir %s", dir)
	}

	type numbered struct {
		n    int
		path string
	}
	var found []numbered
	for _, e := range entries {
		m := runFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, numbered{n: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// NextRunNumber returns one past the highest existing run number, starting
// at 1 for an empty or missing directory.
func (l Layout) NextRunNumber(loanID string) int {
	entries, err := os.ReadDir(l.IncomeDir(loanID))
	if err != nil {
		return 1
	}
	maxRun := 0
	for _, e := range entries {
		if m := runFileRe.FindStringSubmatch(e.Name()); m != nil {
			if n, _ := strconv.Atoi(m[1]); n > maxRun {
				maxRun = n
			}
		}
	}
	return maxRun + 1
}

// RawFiles lists the raw JSON paths for a loan, sorted by name.
func (l Layout) RawFiles(loanID string) ([]string, error) {
	return jsonFiles(l.RawDir(loanID))
}

// SemanticFiles lists the semantic JSON paths for a loan, sorted by name.
func (l Layout) SemanticFiles(loanID string) ([]string, error) {
	return jsonFiles(l.SemanticDir(loanID))
}

func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "loanfs: read dir %s", dir)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "loanfs: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "loanfs: unmarshal %s", path)
	}
	return nil
}

// WriteJSON writes v as indented JSON at path, creating parent directories.
// Overwrites any existing file.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "loanfs: mkdir for %s", path)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "loanfs: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "loanfs: write %s", path)
	}
	return nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
