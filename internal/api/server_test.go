package api

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gold-portfolio/internal/circuitbreaker"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/service"
)

func TestHealth(t *testing.T) {
	e := newTestEnv(t, pricedAt(2000), nil)

	rec := e.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "gold-portfolio", resp.Service)
	require.Len(t, resp.Instances, 1)
	assert.Equal(t, "main", resp.Instances[0].ID)
	assert.True(t, resp.Instances[0].HasPrice)
	require.NotNil(t, resp.Instances[0].Refresh)
}

func TestHealth_DegradedWithoutPrice(t *testing.T) {
	e := newTestEnv(t, &stubPrices{}, nil)

	rec := e.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "uninitialized", string(resp.Instances[0].State))
}

func TestHealth_IncludesCircuitBreakers(t *testing.T) {
	reg := service.NewRegistry()
	breakers := circuitbreaker.NewManager(logging.Discard())
	breakers.GetOrCreate("postgres", nil)

	srv := NewServer(&ServerConfig{}, Dependencies{
		Registry: reg,
		Commands: service.NewCommandService(reg, logging.Discard()),
		Breakers: breakers,
		Logger:   logging.Discard(),
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.CircuitBreakers, 1)
	assert.Equal(t, "postgres", resp.CircuitBreakers[0].Name)
	assert.Empty(t, resp.Instances)
}

func TestListInstances(t *testing.T) {
	e := newTestEnv(t, pricedAt(2000), nil)

	rec := e.do(t, http.MethodGet, "/api/instances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"main"`)
}

func TestMethodNotAllowed(t *testing.T) {
	e := newTestEnv(t, pricedAt(2000), nil)

	rec := e.do(t, http.MethodGet, "/api/commands/add_portfolio_entry", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	router := mux.NewRouter()
	router.Use(RateLimitMiddleware(NewRateLimiter(1, 2)))
	router.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// a different client has its own budget
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestCORSPreflight(t *testing.T) {
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompressionMiddleware(t *testing.T) {
	handler := CompressionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello gold"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "hello gold", string(body))
}
