package domain

import "time"

// FilingState is the lifecycle of a (filer, tax year) pair.
type FilingState string

const (
	FilingNotFiled           FilingState = "NOT_FILED"
	FilingSubmitted          FilingState = "SUBMITTED"
	FilingProcessing         FilingState = "PROCESSING"
	FilingAccepted           FilingState = "ACCEPTED"
	FilingAcceptedWithErrors FilingState = "ACCEPTED_WITH_ERRORS"
	FilingRejected           FilingState = "REJECTED"

	// FilingUnknown records that the authority answered with a status the
	// current vocabulary does not recognize, or that a check failed after
	// submission. It is never silently promoted to an accepted state.
	FilingUnknown FilingState = "UNKNOWN"
)

// Terminal reports whether the authority has finished processing.
func (s FilingState) Terminal() bool {
	switch s {
	case FilingAccepted, FilingAcceptedWithErrors, FilingRejected:
		return true
	}
	return false
}

// FilingStatus is the persisted lifecycle row for one (filer, tax year).
type FilingStatus struct {
	FilerID         string
	TaxYear         int
	Status          FilingState
	PreparedBy      *string
	LastReceiptID   *string
	LastUTID        *string
	LastErrors      []byte
	LastSubmittedAt *time.Time
	LastCheckedAt   *time.Time
	UpdatedAt       time.Time
}

// RecordError is one per-record problem reported by the authority, resolved
// back to the local record through the transmission's sequence map when
// possible.
type RecordError struct {
	RecordID       string
	UniqueRecordID string
	Code           string
	Message        string
	Field          string
}

// StatusResult is the interpreted answer to a status check.
type StatusResult struct {
	ReceiptID       string
	UTID            string
	Status          FilingState
	AuthorityStatus string
	RecordCount     int
	AcceptedCount   int
	RejectedCount   int
	Errors          []RecordError
	Raw             []byte
}

// AckDetail is the interpreted acknowledgment for a processed transmission.
type AckDetail struct {
	ReceiptID       string
	UTID            string
	Status          FilingState
	AuthorityStatus string
	CompletedAt     *time.Time
	Errors          []RecordError
	Raw             []byte
}
