package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/foresight/internal/metrics"
	"github.com/nvandessel/foresight/internal/simulate"
	"github.com/nvandessel/foresight/internal/store"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestServer(t *testing.T, burst int) (*Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	_, err := st.SeedDefaults(t.Context())
	require.NoError(t, err)

	m := metrics.New()
	srv := NewServer(Options{
		Service:   simulate.New(simulate.Options{Store: st, Metrics: m}),
		Store:     st,
		Metrics:   m,
		Version:   "test",
		RateLimit: 0.001,
		Burst:     burst,
	})
	return srv, st
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := setupTestServer(t, 0)
	w := doJSON(t, srv, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "online", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t, 0)
	w := doJSON(t, srv, http.MethodOptions, "/api/simulate", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestSimulate(t *testing.T) {
	srv, _ := setupTestServer(t, 0)

	t.Run("ok", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/simulate", map[string]any{
			"argument": "AI and quantum compute", "steps": 3, "seed": 5, "use_field": false,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp["status"])
		assert.EqualValues(t, 3, resp["steps"])
		history, ok := resp["history"].([]any)
		require.True(t, ok)
		assert.Len(t, history, 3)
		first := history[0].(map[string]any)
		assert.Contains(t, first, "probs_before")
		assert.Contains(t, first, "probs_after")
		assert.Contains(t, first, "realized")
		final := resp["final_state"].(map[string]any)
		assert.Len(t, final["futures"], 5)
		field := resp["field_context"].(map[string]any)
		assert.Equal(t, simulate.StatusNotFetched, field["status"])
	})

	t.Run("missing argument", func(t *testing.T) {
		w := doJSON(t, srv, http.MethodPost, "/api/simulate", map[string]any{"argument": "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[ErrorResponse](t, w)
		assert.Equal(t, "error", resp.Status)
		assert.Contains(t, resp.Error, "argument is required")
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestStep_EmptyBody(t *testing.T) {
	srv, _ := setupTestServer(t, 0)
	req := httptest.NewRequest(http.MethodPost, "/api/step", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "(internal feedback only)", resp["argument"])
	assert.EqualValues(t, 1, resp["iteration"])
	assert.Contains(t, resp, "state")
}

func TestBattle(t *testing.T) {
	srv, _ := setupTestServer(t, 0)

	w := doJSON(t, srv, http.MethodPost, "/api/battle", map[string]any{
		"argument_a": "surveillance and control", "argument_b": "community networks", "rounds": 2, "seed": 1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["rounds"], 2)
	assert.Contains(t, []any{"A", "B", "draw"}, resp["winner"])

	w = doJSON(t, srv, http.MethodPost, "/api/battle", map[string]any{"argument_a": "only one"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFuturesCRUD(t *testing.T) {
	srv, _ := setupTestServer(t, 0)

	w := doJSON(t, srv, http.MethodGet, "/api/futures", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[FuturesResponse](t, w)
	require.Len(t, list.Futures, 5)
	defaultID := list.Futures[0].ID

	w = doJSON(t, srv, http.MethodPost, "/api/futures", store.ScenarioInput{
		Name: "Deep Sea", Keywords: []string{"ocean", "Reef"}, CoreLogic: "the oceans decide",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[FutureResponse](t, w).Future
	assert.Equal(t, "Deep-Sea", created.Name)
	assert.Equal(t, []string{"ocean", "reef"}, created.Keywords)

	w = doJSON(t, srv, http.MethodPost, "/api/futures", store.ScenarioInput{
		Name: "deep-sea", Keywords: []string{"x"}, CoreLogic: "dup",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/futures", store.ScenarioInput{Name: "No Keywords", CoreLogic: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPatch, "/api/futures/"+defaultID, map[string]any{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[FutureResponse](t, w).Future.IsActive)

	w = doJSON(t, srv, http.MethodPatch, "/api/futures/"+defaultID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/futures?active=true", nil)
	assert.Len(t, decode[FuturesResponse](t, w).Futures, 5)

	w = doJSON(t, srv, http.MethodDelete, "/api/futures/"+defaultID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/futures/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodDelete, "/api/futures/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := setupTestServer(t, 2)

	for i := 0; i < 2; i++ {
		w := doJSON(t, srv, http.MethodGet, "/api/futures", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := doJSON(t, srv, http.MethodGet, "/api/futures", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Health is never limited.
	w = doJSON(t, srv, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, 0)
	doJSON(t, srv, http.MethodGet, "/api/health", nil)

	w := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `foresight_http_requests_total{code="200",method="GET",route="/api/health"} 1`)
}
