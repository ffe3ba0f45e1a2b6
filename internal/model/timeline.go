package model

// BorrowerIncome is one borrower's declared income on a Form 1003 version.
type BorrowerIncome struct {
	Name          string  `json:"name"`
	Base          float64 `json:"base,omitempty"`
	Overtime      float64 `json:"overtime,omitempty"`
	Bonus         float64 `json:"bonus,omitempty"`
	Commission    float64 `json:"commission,omitempty"`
	Other         float64 `json:"other,omitempty"`
	MonthlyIncome float64 `json:"monthly_income"`
}

// Form1003Version is one application snapshot, ordered by upload date.
type Form1003Version struct {
	VersionNumber         int              `json:"version_number"`
	FileID                int64            `json:"file_id"`
	FileName              string           `json:"file_name"`
	UploadDate            string           `json:"upload_date"`
	Borrowers             []BorrowerIncome `json:"borrowers,omitempty"`
	CombinedMonthlyIncome float64          `json:"combined_monthly_income"`
	Notes                 string           `json:"notes,omitempty"`
}

// BorrowerConsistency records whether the same borrowers appear on every
// Form 1003 version. Accuracy histograms filter to consistent loans only,
// since a borrower swap makes version-over-version income moves meaningless.
type BorrowerConsistency struct {
	IsConsistent bool   `json:"is_consistent"`
	Notes        string `json:"notes,omitempty"`
}

// Form1003Timeline is the ordered sequence of loan-application snapshots
// used as the borrower-declared baseline for accuracy evaluation.
type Form1003Timeline struct {
	LoanID              string               `json:"loan_id"`
	TotalVersions       int                  `json:"total_versions"`
	IncomeByVersion     []Form1003Version    `json:"income_by_version"`
	BorrowerConsistency *BorrowerConsistency `json:"borrower_consistency,omitempty"`
}

// FinalIncome returns the combined monthly income of the last (most recent)
// version. ok is false when the timeline has no versions.
func (t *Form1003Timeline) FinalIncome() (income float64, ok bool) {
	if t == nil || len(t.IncomeByVersion) == 0 {
		return 0, false
	}
	return t.IncomeByVersion[len(t.IncomeByVersion)-1].CombinedMonthlyIncome, true
}
