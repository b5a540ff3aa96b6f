package http

import (
	"time"

	"github.com/sherpatax/golang_services/internal/efile_service/app"
	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/fieldcrypt"
)

type submittedRecordResponse struct {
	ID           string `json:"id"`
	FilerID      string `json:"filer_id"`
	RecipientTIN string `json:"recipient_tin"`
}

type submitResponse struct {
	ReceiptID   string                    `json:"receipt_id"`
	UTID        string                    `json:"utid"`
	RecordCount int                       `json:"record_count"`
	Filers      []string                  `json:"filers"`
	Records     []submittedRecordResponse `json:"records"`
}

func submitResponseFrom(r *app.SubmitResult, subs []domain.Submission) submitResponse {
	resp := submitResponse{
		ReceiptID:   r.ReceiptID,
		UTID:        r.UTID,
		RecordCount: r.RecordCount,
		Filers:      r.Filers,
	}
	for _, sub := range subs {
		for _, rec := range sub.Records {
			resp.Records = append(resp.Records, submittedRecordResponse{
				ID:           rec.ID,
				FilerID:      rec.FilerID,
				RecipientTIN: MaskedTIN(rec.Recipient.TIN, rec.Recipient.TINType),
			})
		}
	}
	return resp
}

type recordErrorResponse struct {
	RecordID       string `json:"record_id,omitempty"`
	UniqueRecordID string `json:"unique_record_id,omitempty"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
	Field          string `json:"field,omitempty"`
}

type statusResponse struct {
	ReceiptID       string                `json:"receipt_id"`
	UTID            string                `json:"utid,omitempty"`
	Status          string                `json:"status"`
	AuthorityStatus string                `json:"authority_status,omitempty"`
	RecordCount     int                   `json:"record_count,omitempty"`
	AcceptedCount   int                   `json:"accepted_count,omitempty"`
	RejectedCount   int                   `json:"rejected_count,omitempty"`
	Errors          []recordErrorResponse `json:"errors,omitempty"`
}

type ackResponse struct {
	ReceiptID       string                `json:"receipt_id"`
	UTID            string                `json:"utid,omitempty"`
	Status          string                `json:"status"`
	AuthorityStatus string                `json:"authority_status,omitempty"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
	Errors          []recordErrorResponse `json:"errors,omitempty"`
}

type filingStatusResponse struct {
	FilerID         string     `json:"filer_id"`
	TaxYear         int        `json:"tax_year"`
	Status          string     `json:"status"`
	PreparedBy      *string    `json:"prepared_by,omitempty"`
	LastReceiptID   *string    `json:"last_receipt_id,omitempty"`
	LastSubmittedAt *time.Time `json:"last_submitted_at,omitempty"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	HasErrors       bool       `json:"has_errors"`
}

func recordErrorsFrom(errs []domain.RecordError) []recordErrorResponse {
	if len(errs) == 0 {
		return nil
	}
	out := make([]recordErrorResponse, 0, len(errs))
	for _, e := range errs {
		out = append(out, recordErrorResponse{
			RecordID:       e.RecordID,
			UniqueRecordID: e.UniqueRecordID,
			Code:           e.Code,
			Message:        e.Message,
			Field:          e.Field,
		})
	}
	return out
}

func statusResponseFrom(r *domain.StatusResult) statusResponse {
	return statusResponse{
		ReceiptID:       r.ReceiptID,
		UTID:            r.UTID,
		Status:          string(r.Status),
		AuthorityStatus: r.AuthorityStatus,
		RecordCount:     r.RecordCount,
		AcceptedCount:   r.AcceptedCount,
		RejectedCount:   r.RejectedCount,
		Errors:          recordErrorsFrom(r.Errors),
	}
}

func ackResponseFrom(a *domain.AckDetail) ackResponse {
	return ackResponse{
		ReceiptID:       a.ReceiptID,
		UTID:            a.UTID,
		Status:          string(a.Status),
		AuthorityStatus: a.AuthorityStatus,
		CompletedAt:     a.CompletedAt,
		Errors:          recordErrorsFrom(a.Errors),
	}
}

func filingStatusResponseFrom(fs *domain.FilingStatus) filingStatusResponse {
	return filingStatusResponse{
		FilerID:         fs.FilerID,
		TaxYear:         fs.TaxYear,
		Status:          string(fs.Status),
		PreparedBy:      fs.PreparedBy,
		LastReceiptID:   fs.LastReceiptID,
		LastSubmittedAt: fs.LastSubmittedAt,
		LastCheckedAt:   fs.LastCheckedAt,
		HasErrors:       len(fs.LastErrors) > 0,
	}
}

// MaskedTIN renders the stored display fragment for API consumers without
// ever exposing the full identifier.
func MaskedTIN(enc domain.EncryptedTIN, tt domain.TINType) string {
	return fieldcrypt.Masked(enc.Last4, tt)
}
