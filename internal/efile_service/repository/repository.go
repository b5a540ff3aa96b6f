// Package repository defines the persistence ports for the e-file service.
package repository

import (
	"context"
	"time"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
)

// FilingStatusRepository tracks the lifecycle row per (filer, tax year).
type FilingStatusRepository interface {
	// UpsertOnSubmit moves the pair into SUBMITTED, recording the receipt
	// and transmission identifiers and clearing any stored errors.
	UpsertOnSubmit(ctx context.Context, filerID string, taxYear int, receiptID, utid string, submittedAt time.Time) error

	// UpsertOnCheck records the outcome of a status check: the new state,
	// the raw error payload when present, and the check time.
	UpsertOnCheck(ctx context.Context, filerID string, taxYear int, state domain.FilingState, errorsJSON []byte, checkedAt time.Time) error

	// SetPreparer records who prepared the filing. First touch wins: an
	// existing preparer is never overwritten.
	SetPreparer(ctx context.Context, filerID string, taxYear int, preparedBy string) error

	// Get returns the row, or domain.ErrFilingStatusNotFound.
	Get(ctx context.Context, filerID string, taxYear int) (*domain.FilingStatus, error)

	// List returns all rows for a tax year.
	List(ctx context.Context, taxYear int) ([]domain.FilingStatus, error)
}

// TransmissionRepository stores frozen transmissions and their record
// sequence maps.
type TransmissionRepository interface {
	// Save persists a built transmission and flattens its sequence map so
	// individual records stay addressable.
	Save(ctx context.Context, tx *domain.Transmission) error

	// SetReceipt attaches the authority receipt to a stored transmission.
	SetReceipt(ctx context.Context, utid, receiptID string) error

	// UpdateStatus records the latest known processing state.
	UpdateStatus(ctx context.Context, receiptID string, state domain.FilingState) error

	// GetByReceipt returns the transmission for a receipt, or
	// domain.ErrTransmissionNotFound.
	GetByReceipt(ctx context.Context, receiptID string) (*domain.Transmission, error)

	// RecordRefFor resolves where a record landed in its most recent
	// accepted transmission; corrections use this to build the original
	// record reference.
	RecordRefFor(ctx context.Context, recordID string) (domain.RecordRef, error)

	// ListPendingReceipts returns receipts still awaiting a terminal state,
	// oldest first.
	ListPendingReceipts(ctx context.Context, limit int) ([]string, error)
}

// RawResponseRepository archives raw authority response bodies.
type RawResponseRepository interface {
	Persist(ctx context.Context, op, reference string, statusCode int, body []byte) error
}
