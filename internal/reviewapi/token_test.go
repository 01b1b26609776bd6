package reviewapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/review-screening/internal/domain"
)

const testSessionURL = "https://auth.test/token"

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newTestSessionSource() *SessionTokenSource {
	hc := NewHTTPClient(HTTPClientConfig{RateLimit: 1000, BurstSize: 100})
	return NewSessionTokenSource(testSessionURL, "refresh-1", 30*time.Second, hc)
}

func TestStaticTokenSource(t *testing.T) {
	tok, err := StaticTokenSource("abc").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}

func TestSessionTokenSource_CachesUntilExpiry(t *testing.T) {
	setupHTTPMock(t)

	access := signedToken(t, time.Now().Add(time.Hour))
	var gotRefresh string
	httpmock.RegisterResponder(http.MethodPost, testSessionURL,
		func(req *http.Request) (*http.Response, error) {
			data, _ := io.ReadAll(req.Body)
			var body sessionRequest
			_ = json.Unmarshal(data, &body)
			gotRefresh = body.RefreshToken
			return httpmock.NewStringResponse(http.StatusOK, `{"access_token": "`+access+`"}`), nil
		})

	src := newTestSessionSource()

	first, err := src.Token(context.Background())
	require.NoError(t, err)
	second, err := src.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, access, first)
	assert.Equal(t, access, second)
	assert.Equal(t, "refresh-1", gotRefresh)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSessionTokenSource_TokenInsideSkewIsNotCached(t *testing.T) {
	setupHTTPMock(t)

	// Expires within the 30s skew, so every call fetches again.
	access := signedToken(t, time.Now().Add(10*time.Second))
	httpmock.RegisterResponder(http.MethodPost, testSessionURL,
		httpmock.NewStringResponder(http.StatusOK, `{"access_token": "`+access+`"}`))

	src := newTestSessionSource()
	for i := 0; i < 2; i++ {
		tok, err := src.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, access, tok)
	}
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestSessionTokenSource_TTL(t *testing.T) {
	src := newTestSessionSource()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	t.Run("jwt with exp", func(t *testing.T) {
		tok := signedToken(t, now.Add(10*time.Minute))
		assert.Equal(t, 10*time.Minute-30*time.Second, src.ttl(tok))
	})

	t.Run("opaque token", func(t *testing.T) {
		assert.Equal(t, defaultSessionTTL, src.ttl("not-a-jwt"))
	})
}

func TestSessionTokenSource_Invalidate(t *testing.T) {
	setupHTTPMock(t)

	httpmock.RegisterResponder(http.MethodPost, testSessionURL,
		httpmock.NewStringResponder(http.StatusOK, `{"access_token": "opaque"}`))

	src := newTestSessionSource()
	_, err := src.Token(context.Background())
	require.NoError(t, err)

	src.Invalidate()

	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestSessionTokenSource_Errors(t *testing.T) {
	setupHTTPMock(t)

	t.Run("backend rejects refresh token", func(t *testing.T) {
		httpmock.RegisterResponder(http.MethodPost, testSessionURL,
			httpmock.NewStringResponder(http.StatusUnauthorized, `{"detail": "invalid refresh token"}`))

		_, err := newTestSessionSource().Token(context.Background())
		var backendErr *domain.BackendError
		require.ErrorAs(t, err, &backendErr)
		assert.Equal(t, "invalid refresh token", backendErr.Error())
	})

	t.Run("missing access token", func(t *testing.T) {
		httpmock.RegisterResponder(http.MethodPost, testSessionURL,
			httpmock.NewStringResponder(http.StatusOK, `{"token_type": "bearer"}`))

		_, err := newTestSessionSource().Token(context.Background())
		assert.ErrorIs(t, err, domain.ErrSchema)
	})
}
