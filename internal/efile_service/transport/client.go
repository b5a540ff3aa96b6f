// Package transport performs the authenticated HTTP exchanges with the
// authority: submit, status check, acknowledgment retrieval. Every raw
// response body is handed to the sink before any parsing, so operators can
// inspect exactly what the authority said even when interpretation fails.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/interpreter"
)

const (
	maxAttempts    = 3
	backoffBase    = 1 * time.Second
	maxBodyBytes   = 4 << 20
	requestTimeout = 60 * time.Second
)

// TokenProvider supplies bearer tokens. ForceRefresh is called at most once
// per operation, after an authorization rejection.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// RawResponseSink persists raw authority responses. Persistence failures are
// logged, not fatal: losing an audit copy must not fail a live exchange.
type RawResponseSink interface {
	Persist(ctx context.Context, op, reference string, statusCode int, body []byte) error
}

// Endpoints are the authority URLs for one environment.
type Endpoints struct {
	SubmitURL string
	StatusURL string
	AckURL    string
}

// Client is bound to a single environment at construction. Handing it a
// transmission built for the other environment fails fast before any bytes
// leave the process.
type Client struct {
	env        domain.Environment
	endpoints  Endpoints
	tokens     TokenProvider
	interp     *interpreter.Interpreter
	sink       RawResponseSink
	httpClient *http.Client
	logger     *slog.Logger
}

// Options configures optional Client behavior.
type Options struct {
	HTTPClient *http.Client
}

func NewClient(env domain.Environment, endpoints Endpoints, tokens TokenProvider, interp *interpreter.Interpreter, sink RawResponseSink, logger *slog.Logger, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		env:        env,
		endpoints:  endpoints,
		tokens:     tokens,
		interp:     interp,
		sink:       sink,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "transport"), slog.String("environment", string(env))),
	}
}

// Submit posts a transmission and returns the authority's receipt.
func (c *Client) Submit(ctx context.Context, tx *domain.Transmission) (domain.SubmissionReceipt, error) {
	if err := c.checkEnvironment(tx); err != nil {
		return domain.SubmissionReceipt{}, err
	}
	body, err := c.exchange(ctx, "submit", tx.UTID, http.MethodPost, c.endpoints.SubmitURL, tx.Payload, "application/xml")
	if err != nil {
		return domain.SubmissionReceipt{}, err
	}
	receipt, err := c.interp.ParseSubmitResponse(body)
	if err != nil {
		return domain.SubmissionReceipt{}, err
	}
	c.logger.Info("transmission submitted",
		slog.String("utid", tx.UTID),
		slog.String("receipt_id", receipt.ReceiptID),
		slog.Int("record_count", tx.RecordCount))
	return receipt, nil
}

// CheckStatus queries processing status for a receipt.
func (c *Client) CheckStatus(ctx context.Context, receiptID string) (domain.StatusResult, error) {
	statusURL, err := withReceipt(c.endpoints.StatusURL, receiptID)
	if err != nil {
		return domain.StatusResult{}, &domain.TransportError{Op: "status", Err: err}
	}
	body, err := c.exchange(ctx, "status", receiptID, http.MethodGet, statusURL, nil, "")
	if err != nil {
		return domain.StatusResult{}, err
	}
	result, err := c.interp.ParseStatusResponse(body)
	if err != nil {
		return domain.StatusResult{}, err
	}
	if result.ReceiptID == "" {
		result.ReceiptID = receiptID
	}
	return result, nil
}

// GetAcknowledgment retrieves the detailed acknowledgment for a receipt.
func (c *Client) GetAcknowledgment(ctx context.Context, receiptID string) (domain.AckDetail, error) {
	ackURL, err := withReceipt(c.endpoints.AckURL, receiptID)
	if err != nil {
		return domain.AckDetail{}, &domain.TransportError{Op: "acknowledgment", Err: err}
	}
	body, err := c.exchange(ctx, "acknowledgment", receiptID, http.MethodGet, ackURL, nil, "")
	if err != nil {
		return domain.AckDetail{}, err
	}
	ack, err := c.interp.ParseAckResponse(body)
	if err != nil {
		return domain.AckDetail{}, err
	}
	if ack.ReceiptID == "" {
		ack.ReceiptID = receiptID
	}
	return ack, nil
}

func (c *Client) checkEnvironment(tx *domain.Transmission) error {
	if tx.Environment != c.env {
		return domain.ErrEnvironmentMismatch
	}
	if !strings.HasSuffix(tx.UTID, tx.Environment.UTIDSuffix()) {
		return fmt.Errorf("%w: utid suffix does not match %s", domain.ErrEnvironmentMismatch, c.env)
	}
	return nil
}

// exchange runs one operation with bounded retries. Server-side and network
// failures back off and retry; an authorization rejection triggers exactly
// one token refresh; any other client error is fatal immediately. Every
// response body the authority produced is handed to the sink before the
// outcome is decided, so rejection payloads survive even when the operation
// ultimately fails.
func (c *Client) exchange(ctx context.Context, op, reference, method, rawURL string, payload []byte, contentType string) ([]byte, error) {
	var lastErr error
	refreshed := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &domain.TransportError{Op: op, Err: err}
		}
		if attempt > 0 {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return nil, &domain.TransportError{Op: op, Err: err}
			}
			c.logger.Warn("retrying authority request",
				slog.String("op", op), slog.Int("attempt", attempt+1))
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		body, status, err := c.do(ctx, method, rawURL, payload, contentType, token)
		if err != nil {
			lastErr = &domain.TransportError{Op: op, Retryable: true, Err: err}
			continue
		}
		c.persist(ctx, op, reference, status, body)

		switch {
		case status >= 200 && status < 300:
			return body, nil
		case status == http.StatusUnauthorized && !refreshed:
			refreshed = true
			if _, err := c.tokens.ForceRefresh(ctx); err != nil {
				return nil, err
			}
			attempt--
			continue
		case status >= 500:
			lastErr = &domain.TransportError{Op: op, StatusCode: status, Body: truncate(body), Retryable: true}
			continue
		default:
			return nil, &domain.TransportError{Op: op, StatusCode: status, Body: truncate(body)}
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte, contentType, token string) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func (c *Client) persist(ctx context.Context, op, reference string, statusCode int, body []byte) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Persist(ctx, op, reference, statusCode, body); err != nil {
		c.logger.Error("failed to persist raw response",
			slog.String("op", op), slog.String("reference", reference), slog.String("error", err.Error()))
	}
}

func withReceipt(base, receiptID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("receiptId", receiptID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func backoff(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	return d + time.Duration(rand.Int63n(int64(d/2)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(body []byte) string {
	const max = 2048
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
