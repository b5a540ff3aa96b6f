package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
	"github.com/sherpatax/golang_services/internal/efile_service/interpreter"
	"github.com/sherpatax/golang_services/internal/efile_service/schema"
)

type fakeTokens struct {
	tokenCalls   atomic.Int32
	refreshCalls atomic.Int32
	tokenErr     error
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	f.tokenCalls.Add(1)
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok-current", nil
}

func (f *fakeTokens) ForceRefresh(ctx context.Context) (string, error) {
	f.refreshCalls.Add(1)
	return "tok-refreshed", nil
}

type persistedResponse struct {
	op         string
	reference  string
	statusCode int
	body       string
}

type fakeSink struct {
	persisted []persistedResponse
	err       error
}

func (f *fakeSink) Persist(ctx context.Context, op, reference string, statusCode int, body []byte) error {
	f.persisted = append(f.persisted, persistedResponse{op: op, reference: reference, statusCode: statusCode, body: string(body)})
	return f.err
}

func newTestClient(t *testing.T, serverURL string, tokens TokenProvider, sink RawResponseSink) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	interp := interpreter.New(schema.Default(), logger)
	endpoints := Endpoints{
		SubmitURL: serverURL + "/submit",
		StatusURL: serverURL + "/status",
		AckURL:    serverURL + "/ack",
	}
	return NewClient(domain.EnvironmentTest, endpoints, tokens, interp, sink, logger, Options{})
}

func testTransmission() *domain.Transmission {
	return &domain.Transmission{
		UTID:        "utid-1:IRIS:ABCDE::T",
		Type:        domain.TransmissionOriginal,
		Environment: domain.EnvironmentTest,
		TaxYear:     2025,
		Payload:     []byte(`<?xml version="1.0"?><IRTransmission/>`),
		RecordCount: 1,
	}
}

func TestClient_Submit(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `<Response><ReceiptId>r-100</ReceiptId></Response>`)
	}))
	defer server.Close()

	tokens := &fakeTokens{}
	sink := &fakeSink{}
	client := newTestClient(t, server.URL, tokens, sink)

	tx := testTransmission()
	receipt, err := client.Submit(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, "r-100", receipt.ReceiptID)

	assert.Equal(t, "Bearer tok-current", gotAuth)
	assert.Equal(t, "application/xml", gotContentType)
	assert.Equal(t, tx.Payload, gotBody)

	require.Len(t, sink.persisted, 1)
	assert.Equal(t, "submit", sink.persisted[0].op)
	assert.Equal(t, tx.UTID, sink.persisted[0].reference)
	assert.Equal(t, http.StatusOK, sink.persisted[0].statusCode)
}

func TestClient_SubmitEnvironmentMismatch(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	tokens := &fakeTokens{}
	client := newTestClient(t, server.URL, tokens, &fakeSink{})

	t.Run("wrong environment", func(t *testing.T) {
		tx := testTransmission()
		tx.Environment = domain.EnvironmentProduction
		tx.UTID = "utid-1:IRIS:ABCDE::P"
		_, err := client.Submit(context.Background(), tx)
		assert.ErrorIs(t, err, domain.ErrEnvironmentMismatch)
	})

	t.Run("wrong utid suffix", func(t *testing.T) {
		tx := testTransmission()
		tx.UTID = "utid-1:IRIS:ABCDE::P"
		_, err := client.Submit(context.Background(), tx)
		assert.ErrorIs(t, err, domain.ErrEnvironmentMismatch)
	})

	// Nothing left the process.
	assert.Equal(t, int32(0), requests.Load())
	assert.Equal(t, int32(0), tokens.tokenCalls.Load())
}

func TestClient_SubmitPersistsRawBodyBeforeParsing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<Response><Status>Received</Status></Response>`)
	}))
	defer server.Close()

	sink := &fakeSink{}
	client := newTestClient(t, server.URL, &fakeTokens{}, sink)

	_, err := client.Submit(context.Background(), testTransmission())
	var pe *domain.ParseError
	require.ErrorAs(t, err, &pe)

	// The unparseable body was still captured for the audit trail.
	require.Len(t, sink.persisted, 1)
	assert.Contains(t, sink.persisted[0].body, "Received")
}

func TestClient_SubmitSinkFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<Response><ReceiptId>r-101</ReceiptId></Response>`)
	}))
	defer server.Close()

	sink := &fakeSink{err: errors.New("disk full")}
	client := newTestClient(t, server.URL, &fakeTokens{}, sink)

	receipt, err := client.Submit(context.Background(), testTransmission())
	require.NoError(t, err)
	assert.Equal(t, "r-101", receipt.ReceiptID)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `<Response><ReceiptId>r-102</ReceiptId></Response>`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeTokens{}, &fakeSink{})

	receipt, err := client.Submit(context.Background(), testTransmission())
	require.NoError(t, err)
	assert.Equal(t, "r-102", receipt.ReceiptID)
	assert.Equal(t, int32(2), requests.Load())
}

func TestClient_ExhaustsRetriesOnPersistentServerError(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "maintenance window")
	}))
	defer server.Close()

	sink := &fakeSink{}
	client := newTestClient(t, server.URL, &fakeTokens{}, sink)

	_, err := client.Submit(context.Background(), testTransmission())
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.True(t, te.Retryable)
	assert.Contains(t, te.Body, "maintenance")
	assert.Equal(t, int32(maxAttempts), requests.Load())

	// Each failed attempt's body was archived.
	require.Len(t, sink.persisted, maxAttempts)
	for _, p := range sink.persisted {
		assert.Equal(t, http.StatusServiceUnavailable, p.statusCode)
		assert.Contains(t, p.body, "maintenance")
	}
}

func TestClient_ClientErrorIsFatal(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, "schema validation failed")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeTokens{}, &fakeSink{})

	_, err := client.Submit(context.Background(), testTransmission())
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnprocessableEntity, te.StatusCode)
	assert.False(t, te.Retryable)
	assert.Equal(t, int32(1), requests.Load())
}

func TestClient_RejectionBodyIsPersisted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `<Errors><Error>manifest element missing</Error></Errors>`)
	}))
	defer server.Close()

	sink := &fakeSink{}
	client := newTestClient(t, server.URL, &fakeTokens{}, sink)

	tx := testTransmission()
	_, err := client.Submit(context.Background(), tx)
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)

	// The rejection payload survived the failed operation.
	require.Len(t, sink.persisted, 1)
	assert.Equal(t, "submit", sink.persisted[0].op)
	assert.Equal(t, tx.UTID, sink.persisted[0].reference)
	assert.Equal(t, http.StatusBadRequest, sink.persisted[0].statusCode)
	assert.Contains(t, sink.persisted[0].body, "manifest element missing")
}

func TestClient_UnauthorizedTriggersSingleRefresh(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `<Response><ReceiptId>r-103</ReceiptId></Response>`)
	}))
	defer server.Close()

	tokens := &fakeTokens{}
	client := newTestClient(t, server.URL, tokens, &fakeSink{})

	receipt, err := client.Submit(context.Background(), testTransmission())
	require.NoError(t, err)
	assert.Equal(t, "r-103", receipt.ReceiptID)
	assert.Equal(t, int32(1), tokens.refreshCalls.Load())
	assert.Equal(t, int32(2), requests.Load())
}

func TestClient_SecondUnauthorizedIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &fakeTokens{}
	client := newTestClient(t, server.URL, tokens, &fakeSink{})

	_, err := client.Submit(context.Background(), testTransmission())
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
	assert.Equal(t, int32(1), tokens.refreshCalls.Load())
}

func TestClient_TokenFailureAbortsOperation(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	tokens := &fakeTokens{tokenErr: &domain.AuthError{Op: "exchange", StatusCode: 400}}
	client := newTestClient(t, server.URL, tokens, &fakeSink{})

	_, err := client.Submit(context.Background(), testTransmission())
	var authError *domain.AuthError
	require.ErrorAs(t, err, &authError)
	assert.Equal(t, int32(0), requests.Load())
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeTokens{}, &fakeSink{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Submit(ctx, testTransmission())
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_CheckStatus(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("receiptId")
		fmt.Fprint(w, `<StatusResponse><TransmissionStatusCd>Processing</TransmissionStatusCd></StatusResponse>`)
	}))
	defer server.Close()

	sink := &fakeSink{}
	client := newTestClient(t, server.URL, &fakeTokens{}, sink)

	res, err := client.CheckStatus(context.Background(), "r-200")
	require.NoError(t, err)
	assert.Equal(t, "r-200", gotQuery)
	assert.Equal(t, domain.FilingProcessing, res.Status)
	// The response carried no receipt; the client backfills the queried one.
	assert.Equal(t, "r-200", res.ReceiptID)

	require.Len(t, sink.persisted, 1)
	assert.Equal(t, "status", sink.persisted[0].op)
	assert.Equal(t, "r-200", sink.persisted[0].reference)
}

func TestClient_GetAcknowledgment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<AckResponse>
	<ReceiptId>r-300</ReceiptId>
	<ProcessingStatusCd>Rejected</ProcessingStatusCd>
	<ErrorDetailGrp>
		<UniqueRecordId>r-300|1|1</UniqueRecordId>
		<ErrorMessageCd>1099NEC-020</ErrorMessageCd>
		<ErrorMessageTxt>Invalid amount</ErrorMessageTxt>
	</ErrorDetailGrp>
</AckResponse>`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, &fakeTokens{}, &fakeSink{})

	ack, err := client.GetAcknowledgment(context.Background(), "r-300")
	require.NoError(t, err)
	assert.Equal(t, "r-300", ack.ReceiptID)
	assert.Equal(t, domain.FilingRejected, ack.Status)
	require.Len(t, ack.Errors, 1)
	assert.Equal(t, "1099NEC-020", ack.Errors[0].Code)
}
