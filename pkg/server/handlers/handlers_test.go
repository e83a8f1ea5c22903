package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphrag "github.com/donbr/graphrag-platform"
	"github.com/donbr/graphrag-platform/pkg/driver"
	"github.com/donbr/graphrag-platform/pkg/types"
)

type fakeEngine struct {
	report    *types.IngestReport
	ingestErr error

	result    *types.SearchResult
	searchErr error

	stats    *driver.GraphStats
	statsErr error

	clearedDataset string

	lastQuestion string
	lastOpts     *graphrag.SearchOptions
}

func (f *fakeEngine) Ingest(ctx context.Context, dataset string, segments []types.Segment) (*types.IngestReport, error) {
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	if f.report != nil {
		return f.report, nil
	}
	return &types.IngestReport{Dataset: dataset, Succeeded: len(segments)}, nil
}

func (f *fakeEngine) Search(ctx context.Context, question string, opts *graphrag.SearchOptions) (*types.SearchResult, error) {
	f.lastQuestion = question
	f.lastOpts = opts
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &types.SearchResult{Sources: []types.RetrievedItem{}, Outcome: types.OutcomeEmpty}, nil
}

func (f *fakeEngine) Stats(ctx context.Context, dataset string) (*driver.GraphStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if f.stats != nil {
		return f.stats, nil
	}
	return &driver.GraphStats{}, nil
}

func (f *fakeEngine) ClearDataset(ctx context.Context, dataset string) error {
	f.clearedDataset = dataset
	return nil
}

func setupRouter(engine Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	health := NewHealthHandler(engine)
	ingest := NewIngestHandler(engine)
	search := NewSearchHandler(engine)
	r.GET("/health", health.HealthCheck)
	r.GET("/ready", health.ReadinessCheck)
	r.POST("/api/v1/ingest", ingest.AddSegments)
	r.DELETE("/api/v1/ingest/clear", ingest.ClearDataset)
	r.GET("/api/v1/stats", ingest.GetStats)
	r.POST("/api/v1/search", search.Search)
	return r
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := setupRouter(&fakeEngine{})

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestReadinessReportsStoreFailure(t *testing.T) {
	router := setupRouter(&fakeEngine{statsErr: errors.New("store down")})

	w := doJSON(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestIngestReturnsReport(t *testing.T) {
	engine := &fakeEngine{report: &types.IngestReport{Dataset: "talks", Succeeded: 2, Skipped: 1}}
	router := setupRouter(engine)

	w := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]any{
		"dataset": "talks",
		"segments": []map[string]any{
			{"id": "s1", "text": "hello", "order": 0},
			{"id": "s2", "text": "world", "order": 1},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var report types.IngestReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Skipped)
}

func TestIngestRejectsMissingDataset(t *testing.T) {
	router := setupRouter(&fakeEngine{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]any{
		"segments": []map[string]any{{"id": "s1", "text": "hello"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestRejectsEmptySegments(t *testing.T) {
	router := setupRouter(&fakeEngine{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/ingest", map[string]any{
		"dataset":  "talks",
		"segments": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchPassesOptions(t *testing.T) {
	engine := &fakeEngine{result: &types.SearchResult{
		Answer:       "graphs win",
		Sources:      []types.RetrievedItem{},
		StrategyUsed: "hybrid",
		Outcome:      types.OutcomeAnswered,
	}}
	router := setupRouter(engine)

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]any{
		"question": "who said graphs win?",
		"dataset":  "talks",
		"strategy": "hybrid",
		"top_k":    7,
	})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "who said graphs win?", engine.lastQuestion)
	require.NotNil(t, engine.lastOpts)
	assert.Equal(t, "hybrid", engine.lastOpts.Strategy)
	assert.Equal(t, 7, engine.lastOpts.TopK)
	require.NotNil(t, engine.lastOpts.Filters)
	assert.Equal(t, "talks", engine.lastOpts.Filters.Dataset)

	var result types.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, types.OutcomeAnswered, result.Outcome)
}

func TestSearchRejectsUnknownStrategy(t *testing.T) {
	router := setupRouter(&fakeEngine{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]any{
		"question": "anything",
		"strategy": "quantum",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEmptyOutcomeIsOK(t *testing.T) {
	router := setupRouter(&fakeEngine{})

	w := doJSON(t, router, http.MethodPost, "/api/v1/search", map[string]any{
		"question": "anything",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result types.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, types.OutcomeEmpty, result.Outcome)
}

func TestClearDataset(t *testing.T) {
	engine := &fakeEngine{}
	router := setupRouter(engine)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/ingest/clear", map[string]any{
		"dataset": "stale",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stale", engine.clearedDataset)
}
