package resilience

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// FailedLoan records a loan whose batch processing failed, so it can be
// reprocessed with `loanproc batch --retry-failed`.
type FailedLoan struct {
	LoanID     string    `json:"loan_id"`
	FailedStep string    `json:"failed_step,omitempty"`
	Error      string    `json:"error"`
	Transient  bool      `json:"transient"`
	FailedAt   time.Time `json:"failed_at"`
}

// FailedQueue is an append-only JSONL file of failed loans. Batch runs
// append; retry runs drain.
type FailedQueue struct {
	path string
}

// NewFailedQueue creates a queue backed by the given file path.
func NewFailedQueue(path string) *FailedQueue {
	return &FailedQueue{path: path}
}

// Append adds an entry to the queue file.
func (q *FailedQueue) Append(entry FailedLoan) error {
	f, err := os.OpenFile(q.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "resilience: open failed queue %s", q.path)
	}
	defer f.Close() //nolint:errcheck

	line, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "resilience: marshal failed loan")
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return eris.Wrap(err, "resilience: append failed loan")
	}
	return nil
}

// Load returns all entries, newest last. A missing file is an empty queue.
// Malformed lines are skipped.
func (q *FailedQueue) Load() ([]FailedLoan, error) {
	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "resilience: open failed queue %s", q.path)
	}
	defer f.Close() //nolint:errcheck

	var entries []FailedLoan
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e FailedLoan
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "resilience: scan failed queue")
	}
	return entries, nil
}

// Drain returns the distinct failed loan IDs (preserving first-seen order)
// and truncates the queue file.
func (q *FailedQueue) Drain() ([]string, error) {
	entries, err := q.Load()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if !seen[e.LoanID] {
			seen[e.LoanID] = true
			ids = append(ids, e.LoanID)
		}
	}

	if len(entries) > 0 {
		if err := os.Remove(q.path); err != nil && !os.IsNotExist(err) {
			return nil, eris.Wrapf(err, "resilience: truncate failed queue %s", q.path)
		}
	}
	return ids, nil
}
