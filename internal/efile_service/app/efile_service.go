// Package app orchestrates the e-filing workflow: build and submit
// transmissions, track receipts, interpret authority answers into the
// persistent filing lifecycle.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/encoder"
	"github.com/sherpatax/golang_services/internal/efile_service/repository"
)

// Transport is the authority exchange port, implemented by transport.Client.
type Transport interface {
	Submit(ctx context.Context, tx *domain.Transmission) (domain.SubmissionReceipt, error)
	CheckStatus(ctx context.Context, receiptID string) (domain.StatusResult, error)
	GetAcknowledgment(ctx context.Context, receiptID string) (domain.AckDetail, error)
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	ReceiptID   string
	UTID        string
	RecordCount int
	Filers      []string
}

// EFileService is the application service. Submissions for the same
// (filer, tax year) are serialized through per-pair locks so concurrent
// callers cannot interleave lifecycle updates.
type EFileService struct {
	encoder     *encoder.Encoder
	transport   Transport
	statusRepo  repository.FilingStatusRepository
	txRepo      repository.TransmissionRepository
	transmitter domain.Transmitter
	env         domain.Environment
	softwareID  string
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEFileService(
	enc *encoder.Encoder,
	tp Transport,
	statusRepo repository.FilingStatusRepository,
	txRepo repository.TransmissionRepository,
	transmitter domain.Transmitter,
	env domain.Environment,
	softwareID string,
	logger *slog.Logger,
) *EFileService {
	return &EFileService{
		encoder:     enc,
		transport:   tp,
		statusRepo:  statusRepo,
		txRepo:      txRepo,
		transmitter: transmitter,
		env:         env,
		softwareID:  softwareID,
		logger:      logger.With(slog.String("component", "efile_service")),
		locks:       map[string]*sync.Mutex{},
	}
}

// Submit builds, persists, and transmits a batch of original submissions,
// then moves every touched (filer, tax year) into SUBMITTED.
func (s *EFileService) Submit(ctx context.Context, taxYear int, subs []domain.Submission) (*SubmitResult, error) {
	return s.submit(ctx, taxYear, subs)
}

// SubmitCorrections transmits correction records. Records missing an
// original reference get one resolved from the most recent accepted
// transmission that carried them.
func (s *EFileService) SubmitCorrections(ctx context.Context, taxYear int, subs []domain.Submission) (*SubmitResult, error) {
	for si := range subs {
		for ri := range subs[si].Records {
			rec := &subs[si].Records[ri]
			rec.Corrected = true
			if rec.OriginalRef != nil {
				continue
			}
			ref, err := s.txRepo.RecordRefFor(ctx, rec.ID)
			if err != nil {
				return nil, fmt.Errorf("resolving original for record %s: %w", rec.ID, err)
			}
			rec.OriginalRef = &ref
		}
	}
	return s.submit(ctx, taxYear, subs)
}

func (s *EFileService) submit(ctx context.Context, taxYear int, subs []domain.Submission) (*SubmitResult, error) {
	tx, err := s.encoder.BuildTransmission(encoder.BuildInput{
		Transmitter: s.transmitter,
		Submissions: subs,
		TaxYear:     taxYear,
		Environment: s.env,
		SoftwareID:  s.softwareID,
	})
	if err != nil {
		return nil, err
	}

	unlock := s.lockFilers(tx.Filers, taxYear)
	defer unlock()

	if err := s.txRepo.Save(ctx, tx); err != nil {
		return nil, err
	}

	receipt, err := s.transport.Submit(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := s.txRepo.SetReceipt(ctx, tx.UTID, receipt.ReceiptID); err != nil {
		return nil, err
	}
	submittedAt := time.Now().UTC()
	for _, filerID := range tx.Filers {
		if err := s.statusRepo.UpsertOnSubmit(ctx, filerID, taxYear, receipt.ReceiptID, tx.UTID, submittedAt); err != nil {
			return nil, err
		}
	}

	s.logger.Info("batch submitted",
		slog.String("receipt_id", receipt.ReceiptID),
		slog.String("utid", tx.UTID),
		slog.Int("tax_year", taxYear),
		slog.Int("filer_count", len(tx.Filers)),
		slog.Int("record_count", tx.RecordCount))

	return &SubmitResult{
		ReceiptID:   receipt.ReceiptID,
		UTID:        tx.UTID,
		RecordCount: tx.RecordCount,
		Filers:      tx.Filers,
	}, nil
}

// CheckStatus queries the authority for a receipt and folds the answer into
// the filing lifecycle. A failed exchange or unparseable answer for an
// in-flight filing marks it UNKNOWN; nothing moves to an accepted state
// without an interpreted authority answer.
func (s *EFileService) CheckStatus(ctx context.Context, receiptID string) (*domain.StatusResult, error) {
	tx, err := s.txRepo.GetByReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockFilers(tx.Filers, tx.TaxYear)
	defer unlock()

	checkedAt := time.Now().UTC()
	result, err := s.transport.CheckStatus(ctx, receiptID)
	if err != nil {
		s.markUnknown(ctx, tx, checkedAt)
		return nil, err
	}

	s.resolveRecordErrors(tx, result.Errors)
	if err := s.applyState(ctx, tx, receiptID, result.Status, result.Errors, checkedAt); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAcknowledgment retrieves the detailed acknowledgment for a receipt and
// applies it to the lifecycle the same way a status check does.
func (s *EFileService) GetAcknowledgment(ctx context.Context, receiptID string) (*domain.AckDetail, error) {
	tx, err := s.txRepo.GetByReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	unlock := s.lockFilers(tx.Filers, tx.TaxYear)
	defer unlock()

	checkedAt := time.Now().UTC()
	ack, err := s.transport.GetAcknowledgment(ctx, receiptID)
	if err != nil {
		s.markUnknown(ctx, tx, checkedAt)
		return nil, err
	}

	s.resolveRecordErrors(tx, ack.Errors)
	if err := s.applyState(ctx, tx, receiptID, ack.Status, ack.Errors, checkedAt); err != nil {
		return nil, err
	}
	return &ack, nil
}

// SetPreparer records who prepared a filing. First touch wins.
func (s *EFileService) SetPreparer(ctx context.Context, filerID string, taxYear int, preparedBy string) error {
	return s.statusRepo.SetPreparer(ctx, filerID, taxYear, preparedBy)
}

// FilingStatus returns the lifecycle row for a filer, synthesizing a
// NOT_FILED row when none exists yet.
func (s *EFileService) FilingStatus(ctx context.Context, filerID string, taxYear int) (*domain.FilingStatus, error) {
	fs, err := s.statusRepo.Get(ctx, filerID, taxYear)
	if err == domain.ErrFilingStatusNotFound {
		return &domain.FilingStatus{
			FilerID: filerID,
			TaxYear: taxYear,
			Status:  domain.FilingNotFiled,
		}, nil
	}
	return fs, err
}

// FilingDashboard lists all lifecycle rows for a tax year.
func (s *EFileService) FilingDashboard(ctx context.Context, taxYear int) ([]domain.FilingStatus, error) {
	return s.statusRepo.List(ctx, taxYear)
}

// PollPending checks every non-terminal receipt. Individual failures are
// logged and do not stop the sweep.
func (s *EFileService) PollPending(ctx context.Context, limit int) {
	receipts, err := s.txRepo.ListPendingReceipts(ctx, limit)
	if err != nil {
		s.logger.Error("failed to list pending receipts", slog.String("error", err.Error()))
		return
	}
	for _, receiptID := range receipts {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.CheckStatus(ctx, receiptID); err != nil {
			s.logger.Warn("status poll failed",
				slog.String("receipt_id", receiptID),
				slog.String("error", err.Error()))
		}
	}
}

func (s *EFileService) applyState(ctx context.Context, tx *domain.Transmission, receiptID string, state domain.FilingState, recordErrors []domain.RecordError, checkedAt time.Time) error {
	var errorsJSON []byte
	if len(recordErrors) > 0 {
		b, err := json.Marshal(recordErrors)
		if err != nil {
			return fmt.Errorf("marshaling record errors: %w", err)
		}
		errorsJSON = b
	}
	for _, filerID := range tx.Filers {
		if err := s.statusRepo.UpsertOnCheck(ctx, filerID, tx.TaxYear, state, errorsJSON, checkedAt); err != nil {
			return err
		}
	}
	if err := s.txRepo.UpdateStatus(ctx, receiptID, state); err != nil && err != domain.ErrTransmissionNotFound {
		return err
	}
	return nil
}

func (s *EFileService) markUnknown(ctx context.Context, tx *domain.Transmission, checkedAt time.Time) {
	for _, filerID := range tx.Filers {
		if err := s.statusRepo.UpsertOnCheck(ctx, filerID, tx.TaxYear, domain.FilingUnknown, nil, checkedAt); err != nil {
			s.logger.Error("failed to mark filing unknown",
				slog.String("filer_id", filerID), slog.String("error", err.Error()))
		}
	}
}

// resolveRecordErrors maps authority unique record identifiers
// ({receipt}|{submission}|{record}) back to local record IDs through the
// transmission's sequence map.
func (s *EFileService) resolveRecordErrors(tx *domain.Transmission, errs []domain.RecordError) {
	for i := range errs {
		parts := strings.Split(errs[i].UniqueRecordID, "|")
		if len(parts) != 3 {
			continue
		}
		submissionSeq, err1 := strconv.Atoi(parts[1])
		recordSeq, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			continue
		}
		if records, ok := tx.RecordMap[submissionSeq]; ok {
			errs[i].RecordID = records[recordSeq]
		}
	}
}

// lockFilers takes the per-(filer, tax year) locks in sorted order and
// returns the matching unlock.
func (s *EFileService) lockFilers(filers []string, taxYear int) func() {
	keys := make([]string, 0, len(filers))
	for _, f := range filers {
		keys = append(keys, fmt.Sprintf("%s:%d", f, taxYear))
	}
	sort.Strings(keys)

	held := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		s.mu.Lock()
		m, ok := s.locks[key]
		if !ok {
			m = &sync.Mutex{}
			s.locks[key] = m
		}
		s.mu.Unlock()
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
