package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouksibkhalid-create/cleargate/internal/aggregate"
	"github.com/bouksibkhalid-create/cleargate/internal/cache"
	"github.com/bouksibkhalid-create/cleargate/internal/models"
	"github.com/bouksibkhalid-create/cleargate/internal/source"
)

func newTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubClient struct {
	id      models.SourceID
	records []models.EntityRecord
}

func (s *stubClient) ID() models.SourceID { return s.id }

func (s *stubClient) FetchCandidates(_ context.Context, _ string, _ models.SearchMode, _ int) ([]models.EntityRecord, error) {
	return s.records, nil
}

func testAggregator(t *testing.T) *aggregate.Aggregator {
	t.Helper()
	client := &stubClient{id: models.SourceOpenSanctions, records: []models.EntityRecord{{
		ID:               "Q7747",
		Name:             "Vladimir Putin",
		Aliases:          []string{},
		Kind:             models.KindPerson,
		Nationalities:    []string{"ru"},
		IsSanctioned:     true,
		SanctionPrograms: []models.SanctionProgram{},
		Source:           models.SourceOpenSanctions,
	}}}
	return aggregate.New([]source.Client{client}, aggregate.Options{}, newTestLogger(t))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(testAggregator(t), nil, nil, nil, time.Minute, nil, newTestLogger(t), "")
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t).Handler()
	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSearchEndpoint(t *testing.T) {
	handler := newTestServer(t).Handler()
	rec := doJSON(t, handler, http.MethodPost, "/v1/search",
		models.SearchRequest{Query: "Vladimir Putin"}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var env models.SearchEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Vladimir Putin", env.Query)
	assert.Equal(t, 1, env.TotalResults)
	assert.Equal(t, 1, env.TotalSanctioned)
	assert.Equal(t, models.DefaultFuzzyThreshold, env.FuzzyThreshold)
}

func TestSearchInvalidBody(t *testing.T) {
	handler := newTestServer(t).Handler()
	req := httptest.NewRequest(http.MethodPost, "/v1/search", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchValidationErrorNamesField(t *testing.T) {
	handler := newTestServer(t).Handler()
	rec := doJSON(t, handler, http.MethodPost, "/v1/search",
		models.SearchRequest{Query: "x"}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "query", body["field"])
}

func TestSearchCachedResponseIsByteIdentical(t *testing.T) {
	srv := NewServer(testAggregator(t), nil, nil, cache.NewMemory(), time.Minute, nil, newTestLogger(t), "")
	handler := srv.Handler()
	req := models.SearchRequest{Query: "Vladimir Putin"}

	first := doJSON(t, handler, http.MethodPost, "/v1/search", req, nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := doJSON(t, handler, http.MethodPost, "/v1/search", req, nil)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestAuthRequired(t *testing.T) {
	srv := NewServer(testAggregator(t), nil, nil, nil, time.Minute, nil, newTestLogger(t), "secret-token")
	handler := srv.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/v1/search",
		models.SearchRequest{Query: "Vladimir Putin"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/v1/search",
		models.SearchRequest{Query: "Vladimir Putin"},
		map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, handler, http.MethodPost, "/v1/search",
		models.SearchRequest{Query: "Vladimir Putin"},
		map[string]string{"Authorization": "Bearer secret-token"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = doJSON(t, handler, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConnectionsUnavailableWithoutGraph(t *testing.T) {
	handler := newTestServer(t).Handler()
	rec := doJSON(t, handler, http.MethodPost, "/v1/connections",
		models.ConnectionRequest{NodeID: 42}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEnrichUnavailableWithoutKey(t *testing.T) {
	handler := newTestServer(t).Handler()
	rec := doJSON(t, handler, http.MethodPost, "/v1/enrich",
		models.SearchRequest{Query: "Vladimir Putin"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("10.0.0.1")
		assert.True(t, ok)
	}
	ok, retryAfter := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Positive(t, retryAfter)

	// Other clients are unaffected.
	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok)
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	ok, _ := rl.Allow("10.0.0.1")
	require.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1")
	require.False(t, ok)

	time.Sleep(30 * time.Millisecond)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := NewServer(testAggregator(t), nil, nil, nil, time.Minute,
		NewRateLimiter(2, time.Minute), newTestLogger(t), "")
	handler := srv.Handler()

	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodGet, "/healthz", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate limit exceeded", body["error"])
}
