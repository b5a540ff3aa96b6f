// Package http exposes the e-file workflow over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sherpatax/golang_services/internal/efile_service/app"
	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/fieldcrypt"
)

const MaxRequestBodySize = 4 << 20 // 4 MB

// EFiler is the application surface the handler needs. An interface so
// tests can substitute the service.
type EFiler interface {
	Submit(ctx context.Context, taxYear int, subs []domain.Submission) (*app.SubmitResult, error)
	SubmitCorrections(ctx context.Context, taxYear int, subs []domain.Submission) (*app.SubmitResult, error)
	CheckStatus(ctx context.Context, receiptID string) (*domain.StatusResult, error)
	GetAcknowledgment(ctx context.Context, receiptID string) (*domain.AckDetail, error)
	SetPreparer(ctx context.Context, filerID string, taxYear int, preparedBy string) error
	FilingStatus(ctx context.Context, filerID string, taxYear int) (*domain.FilingStatus, error)
	FilingDashboard(ctx context.Context, taxYear int) ([]domain.FilingStatus, error)
}

type EFileHandler struct {
	service EFiler
	keeper  *fieldcrypt.Keeper
	logger  *slog.Logger
}

func NewEFileHandler(service EFiler, keeper *fieldcrypt.Keeper, logger *slog.Logger) *EFileHandler {
	return &EFileHandler{
		service: service,
		keeper:  keeper,
		logger:  logger.With("component", "efile_handler"),
	}
}

// NewRouter mounts the e-file API.
func NewRouter(h *EFileHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chi_middleware.RequestID)
	r.Use(chi_middleware.Recoverer)

	r.Route("/api/v1/efile", func(r chi.Router) {
		r.Post("/submit", h.HandleSubmit)
		r.Post("/corrections", h.HandleSubmitCorrections)
		r.Post("/status", h.HandleCheckStatus)
		r.Post("/acknowledgment", h.HandleGetAcknowledgment)
		r.Post("/filing-status/preparer", h.HandleSetPreparer)
		r.Get("/filing-status", h.HandleFilingStatus)
		r.Get("/filing-dashboard", h.HandleFilingDashboard)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (h *EFileHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	h.handleSubmission(w, r, h.service.Submit)
}

func (h *EFileHandler) HandleSubmitCorrections(w http.ResponseWriter, r *http.Request) {
	h.handleSubmission(w, r, h.service.SubmitCorrections)
}

func (h *EFileHandler) handleSubmission(w http.ResponseWriter, r *http.Request, submit func(context.Context, int, []domain.Submission) (*app.SubmitResult, error)) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TaxYear == 0 || len(req.Submissions) == 0 {
		http.Error(w, "tax_year and submissions are required", http.StatusBadRequest)
		return
	}

	subs := make([]domain.Submission, 0, len(req.Submissions))
	for _, dto := range req.Submissions {
		sub, err := dto.toDomain(req.TaxYear, h.keeper)
		if err != nil {
			logger.WarnContext(ctx, "Invalid submission payload", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		subs = append(subs, sub)
	}

	result, err := submit(ctx, req.TaxYear, subs)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, submitResponseFrom(result, subs))
}

func (h *EFileHandler) HandleCheckStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req statusCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ReceiptID == "" {
		http.Error(w, "receipt_id is required", http.StatusBadRequest)
		return
	}
	result, err := h.service.CheckStatus(ctx, req.ReceiptID)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponseFrom(result))
}

func (h *EFileHandler) HandleGetAcknowledgment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req statusCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ReceiptID == "" {
		http.Error(w, "receipt_id is required", http.StatusBadRequest)
		return
	}
	ack, err := h.service.GetAcknowledgment(ctx, req.ReceiptID)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ackResponseFrom(ack))
}

func (h *EFileHandler) HandleSetPreparer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req setPreparerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.FilerID == "" || req.TaxYear == 0 || req.PreparedBy == "" {
		http.Error(w, "filer_id, tax_year, and prepared_by are required", http.StatusBadRequest)
		return
	}
	if err := h.service.SetPreparer(ctx, req.FilerID, req.TaxYear, req.PreparedBy); err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EFileHandler) HandleFilingStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	filerID := r.URL.Query().Get("filer_id")
	taxYear, _ := strconv.Atoi(r.URL.Query().Get("tax_year"))
	if filerID == "" || taxYear == 0 {
		http.Error(w, "filer_id and tax_year query parameters are required", http.StatusBadRequest)
		return
	}
	fs, err := h.service.FilingStatus(ctx, filerID, taxYear)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}
	h.writeJSON(w, http.StatusOK, filingStatusResponseFrom(fs))
}

func (h *EFileHandler) HandleFilingDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	taxYear, _ := strconv.Atoi(r.URL.Query().Get("tax_year"))
	if taxYear == 0 {
		http.Error(w, "tax_year query parameter is required", http.StatusBadRequest)
		return
	}
	rows, err := h.service.FilingDashboard(ctx, taxYear)
	if err != nil {
		h.writeServiceError(ctx, w, logger, err)
		return
	}
	out := make([]filingStatusResponse, 0, len(rows))
	for i := range rows {
		out = append(out, filingStatusResponseFrom(&rows[i]))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tax_year": taxYear, "filings": out})
}

func (h *EFileHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *EFileHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	var encErr *domain.EncodeError
	var transportErr *domain.TransportError
	switch {
	case errors.As(err, &encErr),
		errors.Is(err, domain.ErrMixedBatch),
		errors.Is(err, domain.ErrEmptyBatch),
		errors.Is(err, fieldcrypt.ErrTINInvalid):
		logger.WarnContext(ctx, "Rejected e-file request", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrFilingStatusNotFound),
		errors.Is(err, domain.ErrTransmissionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &transportErr):
		logger.ErrorContext(ctx, "Authority exchange failed", "error", err)
		http.Error(w, "authority exchange failed", http.StatusBadGateway)
	default:
		logger.ErrorContext(ctx, "E-file request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *EFileHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
