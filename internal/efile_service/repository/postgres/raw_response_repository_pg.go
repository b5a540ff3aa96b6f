package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sherpatax/golang_services/internal/efile_service/repository"
)

type PgRawResponseRepository struct {
	db     DB
	logger *slog.Logger
}

func NewPgRawResponseRepository(db DB, logger *slog.Logger) repository.RawResponseRepository {
	return &PgRawResponseRepository{db: db, logger: logger.With("component", "raw_response_repository_pg")}
}

func (r *PgRawResponseRepository) Persist(ctx context.Context, op, reference string, statusCode int, body []byte) error {
	query := `INSERT INTO raw_responses (op, reference, status_code, body, received_at)
	          VALUES ($1, $2, $3, $4, NOW())`
	_, err := r.db.Exec(ctx, query, op, reference, statusCode, body)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error persisting raw response", "op", op, "reference", reference, "error", err)
		return fmt.Errorf("persisting raw %s response for %s: %w", op, reference, err)
	}
	return nil
}
