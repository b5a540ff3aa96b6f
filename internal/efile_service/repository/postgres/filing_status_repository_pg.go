package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/repository"
)

type PgFilingStatusRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgFilingStatusRepository(db DB, logger *slog.Logger) repository.FilingStatusRepository {
	return &PgFilingStatusRepository{db: db, logger: logger.With("component", "filing_status_repository_pg")}
}

func (r *PgFilingStatusRepository) UpsertOnSubmit(ctx context.Context, filerID string, taxYear int, receiptID, utid string, submittedAt time.Time) error {
	query := `INSERT INTO filing_status (filer_id, tax_year, status, last_receipt_id, last_utid, last_errors, last_submitted_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NULL, $6, NOW())
	          ON CONFLICT (filer_id, tax_year) DO UPDATE SET
	              status = EXCLUDED.status,
	              last_receipt_id = EXCLUDED.last_receipt_id,
	              last_utid = EXCLUDED.last_utid,
	              last_errors = NULL,
	              last_submitted_at = EXCLUDED.last_submitted_at,
	              updated_at = NOW()`
	_, err := r.db.Exec(ctx, query, filerID, taxYear, string(domain.FilingSubmitted), receiptID, utid, submittedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error upserting filing status on submit", "filer_id", filerID, "tax_year", taxYear, "error", err)
		return fmt.Errorf("upserting filing status on submit for filer %s: %w", filerID, err)
	}
	return nil
}

func (r *PgFilingStatusRepository) UpsertOnCheck(ctx context.Context, filerID string, taxYear int, state domain.FilingState, errorsJSON []byte, checkedAt time.Time) error {
	query := `INSERT INTO filing_status (filer_id, tax_year, status, last_errors, last_checked_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())
	          ON CONFLICT (filer_id, tax_year) DO UPDATE SET
	              status = EXCLUDED.status,
	              last_errors = EXCLUDED.last_errors,
	              last_checked_at = EXCLUDED.last_checked_at,
	              updated_at = NOW()`
	_, err := r.db.Exec(ctx, query, filerID, taxYear, string(state), errorsJSON, checkedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error upserting filing status on check", "filer_id", filerID, "tax_year", taxYear, "error", err)
		return fmt.Errorf("upserting filing status on check for filer %s: %w", filerID, err)
	}
	return nil
}

func (r *PgFilingStatusRepository) SetPreparer(ctx context.Context, filerID string, taxYear int, preparedBy string) error {
	// First touch wins: COALESCE keeps an existing preparer.
	query := `INSERT INTO filing_status (filer_id, tax_year, status, prepared_by, updated_at)
	          VALUES ($1, $2, $3, $4, NOW())
	          ON CONFLICT (filer_id, tax_year) DO UPDATE SET
	              prepared_by = COALESCE(filing_status.prepared_by, EXCLUDED.prepared_by),
	              updated_at = NOW()`
	_, err := r.db.Exec(ctx, query, filerID, taxYear, string(domain.FilingNotFiled), preparedBy)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error setting preparer", "filer_id", filerID, "tax_year", taxYear, "error", err)
		return fmt.Errorf("setting preparer for filer %s: %w", filerID, err)
	}
	return nil
}

func scanFilingStatus(row pgx.Row) (*domain.FilingStatus, error) {
	var fs domain.FilingStatus
	var status string
	var preparedBy, receiptID, utid sql.NullString
	var lastErrors []byte
	var submittedAt, checkedAt sql.NullTime

	err := row.Scan(
		&fs.FilerID,
		&fs.TaxYear,
		&status,
		&preparedBy,
		&receiptID,
		&utid,
		&lastErrors,
		&submittedAt,
		&checkedAt,
		&fs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	fs.Status = domain.FilingState(status)
	if preparedBy.Valid {
		fs.PreparedBy = &preparedBy.String
	}
	if receiptID.Valid {
		fs.LastReceiptID = &receiptID.String
	}
	if utid.Valid {
		fs.LastUTID = &utid.String
	}
	fs.LastErrors = lastErrors
	if submittedAt.Valid {
		fs.LastSubmittedAt = &submittedAt.Time
	}
	if checkedAt.Valid {
		fs.LastCheckedAt = &checkedAt.Time
	}
	return &fs, nil
}

const filingStatusColumns = `filer_id, tax_year, status, prepared_by, last_receipt_id, last_utid, last_errors, last_submitted_at, last_checked_at, updated_at`

func (r *PgFilingStatusRepository) Get(ctx context.Context, filerID string, taxYear int) (*domain.FilingStatus, error) {
	query := `SELECT ` + filingStatusColumns + ` FROM filing_status WHERE filer_id = $1 AND tax_year = $2`
	row := r.db.QueryRow(ctx, query, filerID, taxYear)
	fs, err := scanFilingStatus(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFilingStatusNotFound
		}
		r.logger.ErrorContext(ctx, "Error scanning filing status", "filer_id", filerID, "tax_year", taxYear, "error", err)
		return nil, fmt.Errorf("scanning filing status for filer %s: %w", filerID, err)
	}
	return fs, nil
}

func (r *PgFilingStatusRepository) List(ctx context.Context, taxYear int) ([]domain.FilingStatus, error) {
	query := `SELECT ` + filingStatusColumns + ` FROM filing_status WHERE tax_year = $1 ORDER BY filer_id`
	rows, err := r.db.Query(ctx, query, taxYear)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing filing statuses", "tax_year", taxYear, "error", err)
		return nil, fmt.Errorf("listing filing statuses for year %d: %w", taxYear, err)
	}
	defer rows.Close()

	var out []domain.FilingStatus
	for rows.Next() {
		fs, err := scanFilingStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning filing status row: %w", err)
		}
		out = append(out, *fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating filing status rows: %w", err)
	}
	return out, nil
}
