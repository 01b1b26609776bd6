// Package reviewapi is the JSON/HTTP client for the systematic-review backend.
//
// Every response is decoded into explicit domain types and validated before
// it is returned, so callers never see partially shaped data. Failures are
// reported as domain errors:
//
//   - transport failures and cancellations become *domain.NetworkError
//   - non-2xx responses become *domain.BackendError carrying the server detail
//   - undecodable or invalid payloads become *domain.SchemaError
package reviewapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/review-screening/internal/domain"
	"github.com/helixir/review-screening/internal/observability"
)

// APIPrefix is the path prefix of every backend route.
const APIPrefix = "/api/systematic-review"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 32 << 20

// Operation names used in errors, logs and metrics.
const (
	OpListReviews  = "list_reviews"
	OpCreateReview = "create_review"
	OpDeleteReview = "delete_review"
	OpSearch       = "search"
	OpListStudies  = "list_studies"
	OpPatchStudy   = "patch_study"
	OpPrismaFlow   = "prisma_flow"
)

// invalidator is implemented by token sources that can drop a cached token.
type invalidator interface {
	Invalidate()
}

// Client talks to the systematic-review backend.
// It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *HTTPClient
	tokens  TokenSource
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewClient creates a backend client. metrics may be nil.
func NewClient(baseURL string, httpClient *HTTPClient, tokens TokenSource, metrics *observability.Metrics, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", baseURL)
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(HTTPClientConfig{})
	}
	if tokens == nil {
		tokens = StaticTokenSource("")
	}
	return &Client{
		baseURL: u,
		http:    httpClient,
		tokens:  tokens,
		metrics: metrics,
		logger:  logger.With().Str("component", "reviewapi").Logger(),
	}, nil
}

// ListReviews returns every review visible to the caller.
func (c *Client) ListReviews(ctx context.Context) ([]domain.Review, error) {
	var out reviewList
	if err := c.do(ctx, OpListReviews, http.MethodGet, "/reviews", nil, "reviews", &out); err != nil {
		return nil, err
	}
	return out.Reviews, nil
}

// CreateReview creates a review. The input should already be normalized and validated.
func (c *Client) CreateReview(ctx context.Context, in domain.CreateReviewInput) (*domain.Review, error) {
	var out domain.Review
	if err := c.do(ctx, OpCreateReview, http.MethodPost, "/reviews", in, "review", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteReview deletes a review and, on the backend, its studies.
func (c *Client) DeleteReview(ctx context.Context, reviewID string) error {
	return c.do(ctx, OpDeleteReview, http.MethodDelete, reviewPath(reviewID, ""), nil, "", nil)
}

// Search runs a literature search for a review.
func (c *Client) Search(ctx context.Context, reviewID string, in SearchInput) (*SearchResult, error) {
	var out SearchResult
	if err := c.do(ctx, OpSearch, http.MethodPost, reviewPath(reviewID, "/search"), in, "search_result", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListStudies returns the studies of a review with the backend's statistics.
func (c *Client) ListStudies(ctx context.Context, reviewID string) (*StudiesPage, error) {
	var out StudiesPage
	if err := c.do(ctx, OpListStudies, http.MethodGet, reviewPath(reviewID, "/studies"), nil, "studies", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PatchStudy records a screening decision and returns the updated listing.
func (c *Client) PatchStudy(ctx context.Context, reviewID string, patch StudyPatch) (*StudiesPage, error) {
	var out StudiesPage
	if err := c.do(ctx, OpPatchStudy, http.MethodPatch, reviewPath(reviewID, "/studies"), patch, "studies", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PrismaFlow returns the backend's own PRISMA flow for a review. Every
// bucket count must be present; a missing one is a SchemaError.
func (c *Client) PrismaFlow(ctx context.Context, reviewID string) (*domain.PrismaFlow, error) {
	var out prismaFlowPayload
	if err := c.do(ctx, OpPrismaFlow, http.MethodGet, reviewPath(reviewID, "/prisma-flow"), nil, "prisma_flow", &out); err != nil {
		return nil, err
	}
	return out.toDomain("prisma_flow")
}

func reviewPath(reviewID, suffix string) string {
	return "/reviews/" + url.PathEscape(reviewID) + suffix
}

// do sends one request and decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body interface{}, entity string, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordBackendRequest(op, outcome(err), time.Since(start).Seconds())
	}()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	logger := observability.WithBackendContext(c.logger, op, req.Header.Get(RequestIDHeader))
	if reviewID, epoch := observability.ReviewScopeFromContext(ctx); reviewID != "" {
		logger = observability.WithReviewContext(logger, reviewID, epoch)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("backend request failed")
		return domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.NewNetworkError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := c.tokens.(invalidator); ok {
				inv.Invalidate()
			}
		}
		backendErr := domain.NewBackendError(op, resp.StatusCode, errorDetail(data))
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("detail", backendErr.Detail).
			Msg("backend returned error status")
		return backendErr
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("backend request completed")

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.NewSchemaError(entity, "", "empty response body")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return decodeError(entity, err)
	}
	return validateEntity(entity, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL.String() + APIPrefix + path
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain credentials: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrBackend):
		return "backend_error"
	case errors.Is(err, domain.ErrNetwork):
		return "network_error"
	case errors.Is(err, domain.ErrSchema):
		return "schema_error"
	default:
		return "error"
	}
}
