package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnomegl/gitgraph/internal/config"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "4000")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	json.NewEncoder(w).Encode(v)
}

// fakeGitHub serves the a/root graph: u1 and u2 star a/root, u1 also stars
// b/x, which has no stargazers.
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	star := func(login string) map[string]any {
		return map[string]any{"starred_at": "2024-01-02T03:04:05Z", "user": map[string]any{"login": login}}
	}
	starred := func(fullName string) map[string]any {
		return map[string]any{"starred_at": "2024-01-02T03:04:05Z", "repo": map[string]any{"full_name": fullName}}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"login": "crawler"})
	})
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"resources": map[string]any{
			"core": map[string]any{"limit": 5000, "remaining": 4000, "reset": time.Now().Add(time.Hour).Unix()},
		}})
	})
	mux.HandleFunc("/repos/a/root", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"full_name": "a/root", "language": "Go", "stargazers_count": 2, "forks_count": 1})
	})
	mux.HandleFunc("/repos/b/x", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"full_name": "b/x", "language": "Rust"})
	})
	mux.HandleFunc("/repos/a/root/stargazers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{star("u1"), star("u2")})
	})
	mux.HandleFunc("/repos/b/x/stargazers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{})
	})
	mux.HandleFunc("/users/u1/starred", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{starred("a/root"), starred("b/x")})
	})
	mux.HandleFunc("/users/u2/starred", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []any{starred("a/root")})
	})
	mux.HandleFunc("/users/u1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"login": "u1", "name": "User One", "bio": "stars things"})
	})
	mux.HandleFunc("/users/u2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"login": "u2"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func sqliteConfig(t *testing.T, apiURL string) *config.AppConfig {
	cfg := config.DefaultConfig()
	cfg.GitHub.Tokens = []string{"test-token"}
	cfg.GitHub.BaseURL = apiURL
	cfg.Store.Kind = config.StoreSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "graph.db")
	cfg.Crawl.MaxRepos = 10
	cfg.Crawl.MaxStargazers = 10
	cfg.Crawl.RequestsPerSecond = 0
	cfg.Seeds = []string{"a/root"}
	return cfg
}

func TestOrchestrator_CrawlThenExportCSV(t *testing.T) {
	server := fakeGitHub(t)
	cfg := sqliteConfig(t, server.URL)
	ctx := context.Background()

	var out bytes.Buffer
	stats, err := NewOrchestrator(cfg, &out, nil).Crawl(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Repositories)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 2, stats.Edges)
	assert.Contains(t, out.String(), "Crawl complete")

	dir := filepath.Join(t.TempDir(), "export")
	out.Reset()
	require.NoError(t, NewOrchestrator(cfg, &out, nil).Export(ctx, "CSV", dir))

	users, err := os.ReadFile(filepath.Join(dir, "users.csv"))
	require.NoError(t, err)
	assert.Equal(t, "login,name,bio\nu1,User One,stars things\nu2,,\n", string(users))

	stars, err := os.ReadFile(filepath.Join(dir, "stars.csv"))
	require.NoError(t, err)
	assert.Equal(t, "source,target\nu1,a/root\nu2,a/root\n", string(stars))

	repos, err := os.ReadFile(filepath.Join(dir, "repos.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(repos), "a/root,Go,,2,1")
	assert.Contains(t, string(repos), "b/x,Rust,,0,0")
}

func TestOrchestrator_ExportGEXF(t *testing.T) {
	server := fakeGitHub(t)
	cfg := sqliteConfig(t, server.URL)
	ctx := context.Background()

	_, err := NewOrchestrator(cfg, nil, nil).Crawl(ctx)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, NewOrchestrator(cfg, &out, nil).Export(ctx, FormatGEXF, "-"))
	assert.True(t, strings.HasPrefix(out.String(), "<?xml"))
	assert.Contains(t, out.String(), `id="repo:a/root"`)

	path := filepath.Join(t.TempDir(), "graph.gexf")
	require.NoError(t, NewOrchestrator(cfg, nil, nil).Export(ctx, FormatGEXF, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `source="user:u1"`)
}

func TestOrchestrator_CrawlRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GitHub.Tokens = []string{"tok"}
	cfg.Seeds = []string{"a/root"}

	_, err := NewOrchestrator(cfg, nil, nil).Crawl(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEO4J_URI")

	cfg.Store.Kind = config.StoreMemory
	cfg.GitHub.Tokens = nil
	_, err = NewOrchestrator(cfg, nil, nil).Crawl(context.Background())
	assert.ErrorIs(t, err, config.ErrMissingToken)
}

func TestOrchestrator_InvalidTokenIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := sqliteConfig(t, server.URL)
	_, err := NewOrchestrator(cfg, nil, nil).Crawl(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid GitHub token")
	_, statErr := os.Stat(cfg.Store.SQLitePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrchestrator_ExportErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Kind = config.StoreMemory
	o := NewOrchestrator(cfg, nil, nil)

	assert.Error(t, o.Export(context.Background(), "xml", ""))
	assert.Error(t, o.Export(context.Background(), FormatCSV, t.TempDir()))
}

func TestOrchestrator_ExportJSONAndSummary(t *testing.T) {
	server := fakeGitHub(t)
	cfg := sqliteConfig(t, server.URL)
	ctx := context.Background()

	_, err := NewOrchestrator(cfg, nil, nil).Crawl(ctx)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, NewOrchestrator(cfg, &out, nil).Export(ctx, FormatJSON, ""))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 7)
	assert.JSONEq(t, `{"type":"meta","repositories":2,"users":2,"edges":2}`, lines[0])

	summary, err := NewOrchestrator(cfg, io.Discard, nil).Summary(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summary.TopRepos, 1)
	assert.Equal(t, "a/root", summary.TopRepos[0].FullName)
	assert.Equal(t, 2, summary.TopRepos[0].InDegree)
}
