package reviewapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"

	"github.com/helixir/review-screening/internal/domain"
)

// TokenSource supplies the bearer credential attached to every backend request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource always returns the same token. An empty token sends no
// Authorization header.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

const (
	sessionCacheKey = "access_token"
	// defaultSessionTTL applies to tokens without a readable exp claim.
	defaultSessionTTL = 5 * time.Minute
)

// SessionTokenSource exchanges a refresh token for short-lived access tokens
// and caches each one until shortly before its JWT exp claim.
type SessionTokenSource struct {
	url          string
	refreshToken string
	skew         time.Duration
	http         *HTTPClient
	cache        *cache.Cache

	// mu serialises refreshes so concurrent callers share one exchange.
	mu  sync.Mutex
	now func() time.Time
}

// NewSessionTokenSource creates a token source that posts
// {"refresh_token": ...} to sessionURL and expects {"access_token": ...}.
func NewSessionTokenSource(sessionURL, refreshToken string, skew time.Duration, httpClient *HTTPClient) *SessionTokenSource {
	return &SessionTokenSource{
		url:          sessionURL,
		refreshToken: refreshToken,
		skew:         skew,
		http:         httpClient,
		cache:        cache.New(defaultSessionTTL, 10*time.Minute),
		now:          time.Now,
	}
}

type sessionRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken string `json:"access_token"`
}

// Token returns a cached access token or fetches a new one.
func (s *SessionTokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	tok, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	if ttl := s.ttl(tok); ttl > 0 {
		s.cache.Set(sessionCacheKey, tok, ttl)
	}
	return tok, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (s *SessionTokenSource) Invalidate() {
	s.cache.Delete(sessionCacheKey)
}

func (s *SessionTokenSource) cached() (string, bool) {
	v, ok := s.cache.Get(sessionCacheKey)
	if !ok {
		return "", false
	}
	tok, ok := v.(string)
	return tok, ok
}

func (s *SessionTokenSource) fetch(ctx context.Context) (string, error) {
	const op = "session_token"

	body, err := json.Marshal(sessionRequest{RefreshToken: s.refreshToken})
	if err != nil {
		return "", fmt.Errorf("marshal session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", domain.NewNetworkError(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.NewBackendError(op, resp.StatusCode, errorDetail(data))
	}

	var out sessionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", decodeError("session", err)
	}
	if out.AccessToken == "" {
		return "", domain.NewSchemaError("session", "access_token", "missing")
	}
	return out.AccessToken, nil
}

// ttl returns how long tok may be cached. Tokens that are not JWTs or carry
// no exp claim get the default TTL.
func (s *SessionTokenSource) ttl(tok string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return defaultSessionTTL
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return defaultSessionTTL
	}
	return exp.Sub(s.now()) - s.skew
}
