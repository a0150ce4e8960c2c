package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/cache"
	"portfolio/internal/db"
	"portfolio/internal/store"
)

type testEnv struct {
	srv *httptest.Server
	mem *cache.Memory
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	mem := cache.NewMemory(0, 0, nil)
	t.Cleanup(mem.Stop)

	database, err := db.Open(filepath.Join(t.TempDir(), "api.db")+"?_foreign_keys=on", mem, nil, db.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	tiered := cache.NewTiered(mem, nil, nil)
	st := store.New(database, tiered, time.Minute, nil)
	require.NoError(t, st.Migrate(context.Background()))

	srv := httptest.NewServer(New(st, tiered, database, nil).Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, mem: mem}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	env := setupServer(t)
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	env := setupServer(t)

	resp, body := env.do(t, http.MethodPost, "/api/projects", map[string]any{
		"title":       "CLI Toolkit",
		"description": "assorted terminal helpers",
		"featured":    true,
		"tags":        []string{"go", "cli"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created store.Project
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotZero(t, created.ID)

	resp, body = env.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []store.Project
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, []string{"cli", "go"}, listed[0].Tags)

	resp, _ = env.do(t, http.MethodPut, "/api/projects/"+jsonID(created.ID), map[string]any{
		"title": "CLI Toolkit v2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/projects/"+jsonID(created.ID), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/projects/"+jsonID(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProjectValidation(t *testing.T) {
	env := setupServer(t)

	resp, _ := env.do(t, http.MethodPost, "/api/projects", map[string]any{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/projects/notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/projects", map[string]any{"title": "x", "bogusField": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields are rejected")
}

func TestPostRoutes(t *testing.T) {
	env := setupServer(t)

	resp, body := env.do(t, http.MethodPost, "/api/posts", map[string]any{
		"slug":      "first-post",
		"title":     "First Post",
		"published": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/posts/first-post", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var post store.BlogPost
	require.NoError(t, json.Unmarshal(body, &post))
	assert.Equal(t, "First Post", post.Title)

	resp, _ = env.do(t, http.MethodGet, "/api/posts/12345", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "numeric slugs are reserved for write routes")

	resp, _ = env.do(t, http.MethodGet, "/api/posts/no-such-post", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAboutRoutes(t *testing.T) {
	env := setupServer(t)

	resp, body := env.do(t, http.MethodPut, "/api/about", map[string]any{
		"name":     "Ada",
		"headline": "Engineer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/about", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info store.PersonalInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, "Ada", info.Name)
}

func TestDashboardReport(t *testing.T) {
	env := setupServer(t)

	// Warm the cache so the report has something to show.
	_, _ = env.do(t, http.MethodGet, "/api/projects", nil)

	resp, body := env.do(t, http.MethodGet, "/api/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report map[string]any
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Contains(t, report, "uptimeSeconds")
	assert.Contains(t, report, "heapAllocBytes")
	assert.Contains(t, report, "memoryCache")
	redisStats, ok := report["redisCache"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, redisStats["connected"], "no redis tier configured")
}

func TestMetricsReport(t *testing.T) {
	env := setupServer(t)

	resp, body := env.do(t, http.MethodGet, "/api/admin/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report map[string]any
	require.NoError(t, json.Unmarshal(body, &report))
	dbReport, ok := report["database"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, dbReport["ok"])
	redisReport, ok := report["redis"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, redisReport["ok"])
}

func TestCacheClearEndpoint(t *testing.T) {
	env := setupServer(t)

	// Populate the memory tier via a listing.
	_, _ = env.do(t, http.MethodGet, "/api/projects", nil)
	require.Greater(t, env.mem.Stats().Keys, 0)

	resp, _ := env.do(t, http.MethodPost, "/api/admin/cache/clear", map[string]string{"type": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Greater(t, env.mem.Stats().Keys, 0, "invalid target must not flush anything")

	resp, _ = env.do(t, http.MethodPost, "/api/admin/cache/clear", map[string]string{"type": "all"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, env.mem.Stats().Keys)
}

func jsonID(id int64) string {
	return strconv.FormatInt(id, 10)
}
