// Package auth acquires OAuth2 access tokens from the authority's token
// endpoint using the JWT client-assertion grant.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sherpatax/golang_services/internal/efile_service/domain"
)

const (
	assertionLifetime = 5 * time.Minute
	refreshMargin     = 30 * time.Second
	assertionType     = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// Options configures a TokenSource. Exactly one of PrivateKeyPEM or
// PrivateKeyPath must be set.
type Options struct {
	TokenURL       string
	ClientID       string
	KeyID          string
	PrivateKeyPEM  string
	PrivateKeyPath string
	HTTPClient     *http.Client
	Now            func() time.Time
}

// TokenSource mints and caches access tokens. A cached token is reused until
// it is within the refresh margin of expiry; concurrent callers share one
// exchange.
type TokenSource struct {
	opts       Options
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger

	mu         sync.Mutex
	privateKey *rsa.PrivateKey
	token      string
	expiresAt  time.Time
}

// NewTokenSource builds a TokenSource. The private key is loaded lazily on
// the first exchange so construction never touches the filesystem.
func NewTokenSource(opts Options, logger *slog.Logger) *TokenSource {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenSource{
		opts:       opts,
		httpClient: httpClient,
		now:        now,
		logger:     logger.With(slog.String("component", "token_source")),
	}
}

// Token returns a valid access token, exchanging a fresh assertion when the
// cached one is expired or inside the refresh margin.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && ts.now().Before(ts.expiresAt.Add(-refreshMargin)) {
		return ts.token, nil
	}
	return ts.exchangeLocked(ctx)
}

// ForceRefresh discards the cached token and performs a fresh exchange. The
// transport calls this once after an authorization rejection.
func (ts *TokenSource) ForceRefresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.token = ""
	ts.expiresAt = time.Time{}
	return ts.exchangeLocked(ctx)
}

func (ts *TokenSource) exchangeLocked(ctx context.Context) (string, error) {
	key, err := ts.loadKeyLocked()
	if err != nil {
		return "", authErr("load_key", err)
	}
	assertion, err := ts.buildAssertion(key)
	if err != nil {
		return "", authErr("sign_assertion", err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_assertion_type", assertionType)
	form.Set("client_assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", authErr("build_request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", authErr("exchange", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", authErr("read_response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domain.AuthError{Op: "exchange", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", authErr("decode_response", err)
	}
	if payload.AccessToken == "" {
		return "", &domain.AuthError{Op: "decode_response", StatusCode: resp.StatusCode, Body: "no access_token in response"}
	}
	if payload.ExpiresIn <= 0 {
		payload.ExpiresIn = 900
	}

	ts.token = payload.AccessToken
	ts.expiresAt = ts.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	ts.logger.Info("access token acquired",
		slog.Int("expires_in_sec", payload.ExpiresIn))
	return ts.token, nil
}

// buildAssertion signs the client-assertion JWT: issuer and subject are both
// the client identifier, audience is the token endpoint, lifetime five
// minutes, with a fresh jti per assertion.
func (ts *TokenSource) buildAssertion(key *rsa.PrivateKey) (string, error) {
	now := ts.now()
	claims := jwt.MapClaims{
		"iss": ts.opts.ClientID,
		"sub": ts.opts.ClientID,
		"aud": ts.opts.TokenURL,
		"iat": now.Unix(),
		"exp": now.Add(assertionLifetime).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ts.opts.KeyID
	return token.SignedString(key)
}

func authErr(op string, err error) *domain.AuthError {
	return &domain.AuthError{Op: op, Err: err}
}

func (ts *TokenSource) loadKeyLocked() (*rsa.PrivateKey, error) {
	if ts.privateKey != nil {
		return ts.privateKey, nil
	}
	pemBytes := []byte(ts.opts.PrivateKeyPEM)
	if len(pemBytes) == 0 {
		b, err := os.ReadFile(ts.opts.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		pemBytes = b
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	ts.privateKey = key
	return key, nil
}
