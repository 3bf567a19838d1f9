package domain

import "time"

type VarianceFlag string

const (
	VarianceMatch VarianceFlag = "Match"
	VarianceOver  VarianceFlag = "Over"
	VarianceShort VarianceFlag = "Short"
)

// Submission is one completed count event. Immutable once written; the
// admin delete flow moves rows to the deleted log instead of mutating.
type Submission struct {
	SubmissionID string
	AssignmentID string // empty for ad-hoc counts
	Assignee     string
	Location     string
	SKU          string
	LotNumber    string // normalized
	PalletID     string
	CountedQty   int
	ExpectedQty  *int
	Variance     *int
	VarianceFlag VarianceFlag
	Timestamp    time.Time
	DeviceID     string
	Note         string

	// Exception reporting, all optional.
	IssueType       string
	ActualPalletID  string
	ActualLotNumber string
}

// DeleteAudit is attached to a submission when it is moved to the
// deleted log.
type DeleteAudit struct {
	DeletedBy string
	DeletedTS time.Time
	Reason    string
	Note      string
}

// ClassifyVariance computes counted minus expected and its flag. An
// unknown expected quantity leaves the variance blank and counts as a
// match.
func ClassifyVariance(counted int, expected *int) (*int, VarianceFlag) {
	if expected == nil {
		return nil, VarianceMatch
	}
	v := counted - *expected
	switch {
	case v > 0:
		return &v, VarianceOver
	case v < 0:
		return &v, VarianceShort
	default:
		return &v, VarianceMatch
	}
}
