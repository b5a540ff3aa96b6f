package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/repository"
)

type PgTransmissionRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgTransmissionRepository(db DB, logger *slog.Logger) repository.TransmissionRepository {
	return &PgTransmissionRepository{db: db, logger: logger.With("component", "transmission_repository_pg")}
}

func (r *PgTransmissionRepository) Save(ctx context.Context, tx *domain.Transmission) error {
	recordMap, err := json.Marshal(tx.RecordMap)
	if err != nil {
		return fmt.Errorf("marshaling record map for %s: %w", tx.UTID, err)
	}
	filers, err := json.Marshal(tx.Filers)
	if err != nil {
		return fmt.Errorf("marshaling filers for %s: %w", tx.UTID, err)
	}
	// The wire payload is deliberately not stored: it carries decrypted
	// identifiers and exists only for the duration of the submit call. The
	// sequence map is all that corrections and status resolution need.
	query := `INSERT INTO transmissions
	          (utid, tx_type, environment, tax_year, record_map, filers, cfsf_election, submission_count, record_count, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.Exec(ctx, query,
		tx.UTID, string(tx.Type), string(tx.Environment), tx.TaxYear, recordMap, filers,
		tx.CFSFElection, tx.SubmissionCount, tx.RecordCount, string(domain.FilingNotFiled), tx.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error saving transmission", "utid", tx.UTID, "error", err)
		return fmt.Errorf("saving transmission %s: %w", tx.UTID, err)
	}

	for submissionSeq, records := range tx.RecordMap {
		for recordSeq, recordID := range records {
			_, err := r.db.Exec(ctx,
				`INSERT INTO transmission_records (utid, record_id, submission_seq, record_seq)
				 VALUES ($1, $2, $3, $4)`,
				tx.UTID, recordID, submissionSeq, recordSeq)
			if err != nil {
				r.logger.ErrorContext(ctx, "Error saving transmission record", "utid", tx.UTID, "record_id", recordID, "error", err)
				return fmt.Errorf("saving transmission record %s: %w", recordID, err)
			}
		}
	}
	return nil
}

func (r *PgTransmissionRepository) SetReceipt(ctx context.Context, utid, receiptID string) error {
	query := `UPDATE transmissions SET receipt_id = $2, status = $3 WHERE utid = $1`
	tag, err := r.db.Exec(ctx, query, utid, receiptID, string(domain.FilingSubmitted))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error setting receipt", "utid", utid, "error", err)
		return fmt.Errorf("setting receipt for %s: %w", utid, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransmissionNotFound
	}
	return nil
}

func (r *PgTransmissionRepository) UpdateStatus(ctx context.Context, receiptID string, state domain.FilingState) error {
	query := `UPDATE transmissions SET status = $2 WHERE receipt_id = $1`
	tag, err := r.db.Exec(ctx, query, receiptID, string(state))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating transmission status", "receipt_id", receiptID, "error", err)
		return fmt.Errorf("updating transmission status for receipt %s: %w", receiptID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransmissionNotFound
	}
	return nil
}

func (r *PgTransmissionRepository) GetByReceipt(ctx context.Context, receiptID string) (*domain.Transmission, error) {
	query := `SELECT utid, tx_type, environment, tax_year, record_map, filers, cfsf_election, submission_count, record_count, created_at
	          FROM transmissions WHERE receipt_id = $1`
	row := r.db.QueryRow(ctx, query, receiptID)

	var tx domain.Transmission
	var txType, environment string
	var recordMap, filers []byte
	err := row.Scan(&tx.UTID, &txType, &environment, &tx.TaxYear, &recordMap, &filers,
		&tx.CFSFElection, &tx.SubmissionCount, &tx.RecordCount, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransmissionNotFound
		}
		r.logger.ErrorContext(ctx, "Error scanning transmission", "receipt_id", receiptID, "error", err)
		return nil, fmt.Errorf("scanning transmission for receipt %s: %w", receiptID, err)
	}
	tx.Type = domain.TransmissionType(txType)
	tx.Environment = domain.Environment(environment)
	if len(recordMap) > 0 {
		if err := json.Unmarshal(recordMap, &tx.RecordMap); err != nil {
			return nil, fmt.Errorf("unmarshaling record map for receipt %s: %w", receiptID, err)
		}
	}
	if len(filers) > 0 {
		if err := json.Unmarshal(filers, &tx.Filers); err != nil {
			return nil, fmt.Errorf("unmarshaling filers for receipt %s: %w", receiptID, err)
		}
	}
	return &tx, nil
}

func (r *PgTransmissionRepository) RecordRefFor(ctx context.Context, recordID string) (domain.RecordRef, error) {
	// Only accepted transmissions can anchor a correction.
	query := `SELECT t.receipt_id, tr.submission_seq, tr.record_seq
	          FROM transmission_records tr
	          JOIN transmissions t ON t.utid = tr.utid
	          WHERE tr.record_id = $1 AND t.receipt_id IS NOT NULL AND t.status IN ($2, $3)
	          ORDER BY t.created_at DESC
	          LIMIT 1`
	row := r.db.QueryRow(ctx, query, recordID,
		string(domain.FilingAccepted), string(domain.FilingAcceptedWithErrors))

	var ref domain.RecordRef
	var receiptID sql.NullString
	if err := row.Scan(&receiptID, &ref.SubmissionSeq, &ref.RecordSeq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RecordRef{}, domain.ErrTransmissionNotFound
		}
		r.logger.ErrorContext(ctx, "Error resolving record reference", "record_id", recordID, "error", err)
		return domain.RecordRef{}, fmt.Errorf("resolving record reference for %s: %w", recordID, err)
	}
	ref.ReceiptID = receiptID.String
	return ref, nil
}

func (r *PgTransmissionRepository) ListPendingReceipts(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT receipt_id FROM transmissions
	          WHERE receipt_id IS NOT NULL AND status IN ($1, $2, $3)
	          ORDER BY created_at ASC
	          LIMIT $4`
	rows, err := r.db.Query(ctx, query,
		string(domain.FilingSubmitted), string(domain.FilingProcessing), string(domain.FilingUnknown), limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing pending receipts", "error", err)
		return nil, fmt.Errorf("listing pending receipts: %w", err)
	}
	defer rows.Close()

	var receipts []string
	for rows.Next() {
		var receiptID string
		if err := rows.Scan(&receiptID); err != nil {
			return nil, fmt.Errorf("scanning pending receipt: %w", err)
		}
		receipts = append(receipts, receiptID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending receipts: %w", err)
	}
	return receipts, nil
}
