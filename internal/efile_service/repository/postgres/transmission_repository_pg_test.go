package postgres

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/repository"
)

func setupTransmissionTest(t *testing.T) (repository.TransmissionRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewPgTransmissionRepository(mockPool, logger)
	return repo, mockPool
}

func storedTransmission() *domain.Transmission {
	return &domain.Transmission{
		UTID:            "utid-1:IRIS:ABCDE::T",
		Type:            domain.TransmissionOriginal,
		Environment:     domain.EnvironmentTest,
		TaxYear:         2025,
		Payload:         []byte(`<?xml version="1.0"?><IRTransmission><TIN>400123456</TIN></IRTransmission>`),
		RecordMap:       domain.RecordSequenceMap{1: {1: "rec-a"}},
		Filers:          []string{"filer-1"},
		CFSFElection:    true,
		SubmissionCount: 1,
		RecordCount:     1,
		CreatedAt:       time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestPgTransmissionRepository_Save(t *testing.T) {
	repo, mockPool := setupTransmissionTest(t)
	defer mockPool.Close()

	// The in-memory payload holds decrypted identifiers; the expected
	// argument list proves none of it is written to storage.
	tx := storedTransmission()
	recordMapJSON, err := json.Marshal(tx.RecordMap)
	require.NoError(t, err)
	filersJSON, err := json.Marshal(tx.Filers)
	require.NoError(t, err)

	mockPool.ExpectExec(`INSERT INTO transmissions`).
		WithArgs(tx.UTID, "O", "test", 2025, recordMapJSON, filersJSON, true, 1, 1, string(domain.FilingNotFiled), tx.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec(`INSERT INTO transmission_records`).
		WithArgs(tx.UTID, "rec-a", 1, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), tx))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgTransmissionRepository_SetReceipt(t *testing.T) {
	repo, mockPool := setupTransmissionTest(t)
	defer mockPool.Close()

	t.Run("Success", func(t *testing.T) {
		mockPool.ExpectExec(`UPDATE transmissions SET receipt_id = \$2, status = \$3 WHERE utid = \$1`).
			WithArgs("utid-1", "r-100", string(domain.FilingSubmitted)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetReceipt(context.Background(), "utid-1", "r-100"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownUTID", func(t *testing.T) {
		mockPool.ExpectExec(`UPDATE transmissions SET receipt_id`).
			WithArgs("missing", "r-100", string(domain.FilingSubmitted)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetReceipt(context.Background(), "missing", "r-100")
		assert.ErrorIs(t, err, domain.ErrTransmissionNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgTransmissionRepository_UpdateStatus(t *testing.T) {
	repo, mockPool := setupTransmissionTest(t)
	defer mockPool.Close()

	t.Run("Success", func(t *testing.T) {
		mockPool.ExpectExec(`UPDATE transmissions SET status = \$2 WHERE receipt_id = \$1`).
			WithArgs("r-100", string(domain.FilingAccepted)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateStatus(context.Background(), "r-100", domain.FilingAccepted))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownReceipt", func(t *testing.T) {
		mockPool.ExpectExec(`UPDATE transmissions SET status`).
			WithArgs("missing", string(domain.FilingRejected)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(context.Background(), "missing", domain.FilingRejected)
		assert.ErrorIs(t, err, domain.ErrTransmissionNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgTransmissionRepository_GetByReceipt(t *testing.T) {
	repo, mockPool := setupTransmissionTest(t)
	defer mockPool.Close()

	columns := []string{"utid", "tx_type", "environment", "tax_year", "record_map", "filers", "cfsf_election", "submission_count", "record_count", "created_at"}

	t.Run("Found", func(t *testing.T) {
		want := storedTransmission()
		recordMapJSON, err := json.Marshal(want.RecordMap)
		require.NoError(t, err)
		filersJSON, err := json.Marshal(want.Filers)
		require.NoError(t, err)

		rows := mockPool.NewRows(columns).
			AddRow(want.UTID, "O", "test", 2025, recordMapJSON, filersJSON, true, 1, 1, want.CreatedAt)

		mockPool.ExpectQuery(`SELECT .+ FROM transmissions WHERE receipt_id = \$1`).
			WithArgs("r-100").
			WillReturnRows(rows)

		tx, err := repo.GetByReceipt(context.Background(), "r-100")
		require.NoError(t, err)
		assert.Equal(t, want.UTID, tx.UTID)
		assert.Equal(t, domain.TransmissionOriginal, tx.Type)
		assert.Equal(t, domain.EnvironmentTest, tx.Environment)
		assert.Equal(t, want.RecordMap, tx.RecordMap)
		assert.Equal(t, want.Filers, tx.Filers)
		assert.True(t, tx.CFSFElection)
		assert.Empty(t, tx.Payload)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool.ExpectQuery(`SELECT .+ FROM transmissions WHERE receipt_id = \$1`).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByReceipt(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrTransmissionNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgTransmissionRepository_RecordRefFor(t *testing.T) {
	repo, mockPool := setupTransmissionTest(t)
	defer mockPool.Close()

	t.Run("Found", func(t *testing.T) {
		rows := mockPool.NewRows([]string{"receipt_id", "submission_seq", "record_seq"}).
			AddRow("2025-68698468914-b0b2da138", 1, 1)

		mockPool.ExpectQuery(`FROM transmission_records tr\s+JOIN transmissions t ON t\.utid = tr\.utid`).
			WithArgs("rec-a", string(domain.FilingAccepted), string(domain.FilingAcceptedWithErrors)).
			WillReturnRows(rows)

		ref, err := repo.RecordRefFor(context.Background(), "rec-a")
		require.NoError(t, err)
		assert.Equal(t, "2025-68698468914-b0b2da138", ref.ReceiptID)
		assert.Equal(t, 1, ref.SubmissionSeq)
		assert.Equal(t, 1, ref.RecordSeq)
		assert.Equal(t, "2025-68698468914-b0b2da138|1|1", ref.UniqueRecordID())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NoAcceptedTransmission", func(t *testing.T) {
		mockPool.ExpectQuery(`FROM transmission_records`).
			WithArgs("rec-never-accepted", string(domain.FilingAccepted), string(domain.FilingAcceptedWithErrors)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.RecordRefFor(context.Background(), "rec-never-accepted")
		assert.ErrorIs(t, err, domain.ErrTransmissionNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgTransmissionRepository_ListPendingReceipts(t *testing.T) {
	repo, mockPool := setupTransmissionTest(t)
	defer mockPool.Close()

	rows := mockPool.NewRows([]string{"receipt_id"}).
		AddRow("r-100").
		AddRow("r-101")

	mockPool.ExpectQuery(`SELECT receipt_id FROM transmissions`).
		WithArgs(string(domain.FilingSubmitted), string(domain.FilingProcessing), string(domain.FilingUnknown), 50).
		WillReturnRows(rows)

	receipts, err := repo.ListPendingReceipts(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"r-100", "r-101"}, receipts)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgRawResponseRepository_Persist(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewPgRawResponseRepository(mockPool, logger)

	body := []byte(`<Response><ReceiptId>r-100</ReceiptId></Response>`)
	mockPool.ExpectExec(`INSERT INTO raw_responses`).
		WithArgs("submit", "utid-1:IRIS:ABCDE::T", 200, body).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Persist(context.Background(), "submit", "utid-1:IRIS:ABCDE::T", 200, body))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
