package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.Handler) (*PoolProvider, *ClientPool) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	pool, err := NewClientPool([]string{"test-token"}, nil, WithBaseURL(server.URL))
	require.NoError(t, err)
	return NewPoolProvider(pool), pool
}

func writeJSON(w http.ResponseWriter, remaining int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	json.NewEncoder(w).Encode(v)
}

func TestPoolProvider_GetRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/a/root", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		writeJSON(w, 4999, map[string]any{
			"full_name":        "a/root",
			"language":         "Go",
			"stargazers_count": 2,
			"forks_count":      1,
		})
	})
	provider, pool := newTestProvider(t, mux)

	repo, err := provider.GetRepository(context.Background(), "a/root")
	require.NoError(t, err)
	assert.Equal(t, "a/root", repo.GetFullName())
	assert.Equal(t, 2, repo.GetStargazersCount())
	assert.Equal(t, 4999, pool.Remaining())
	assert.Equal(t, 4999, provider.RemainingQuota())
}

func TestPoolProvider_GetRepository_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/a/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	provider, _ := newTestProvider(t, mux)

	_, err := provider.GetRepository(context.Background(), "a/missing")
	var errResp *gh.ErrorResponse
	require.True(t, errors.As(err, &errResp))
	assert.Equal(t, http.StatusNotFound, errResp.Response.StatusCode)
}

func TestPoolProvider_GetRepository_BadIdentifier(t *testing.T) {
	provider, _ := newTestProvider(t, http.NewServeMux())

	for _, id := range []string{"", "noslash", "/name", "owner/", "a/b/c"} {
		_, err := provider.GetRepository(context.Background(), id)
		assert.ErrorIs(t, err, ErrBadIdentifier, id)
	}
}

func TestPoolProvider_RateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/a/root", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
	})
	provider, pool := newTestProvider(t, mux)

	_, err := provider.GetRepository(context.Background(), "a/root")
	var rateErr *gh.RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, 0, pool.Remaining())
}

func TestPoolProvider_GetStargazersPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/a/root/stargazers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		writeJSON(w, 4998, []map[string]any{
			{"starred_at": "2024-01-02T03:04:05Z", "user": map[string]any{"login": "u1"}},
			{"starred_at": "2024-01-02T03:04:05Z", "user": map[string]any{"login": ""}},
			{"starred_at": "2024-01-02T03:04:05Z", "user": map[string]any{"login": "u2"}},
		})
	})
	provider, _ := newTestProvider(t, mux)

	users, err := provider.GetStargazersPage(context.Background(), "a/root", 2)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].GetLogin())
	assert.Equal(t, "u2", users[1].GetLogin())
}

func TestPoolProvider_GetStarredPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/u1/starred", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		writeJSON(w, 4997, []map[string]any{
			{"starred_at": "2024-01-02T03:04:05Z", "repo": map[string]any{"full_name": "a/root"}},
			{"starred_at": "2024-01-02T03:04:05Z", "repo": map[string]any{"full_name": "b/x"}},
		})
	})
	provider, _ := newTestProvider(t, mux)

	repos, err := provider.GetStarredPage(context.Background(), "u1", 500)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "b/x", repos[1].GetFullName())
}

func TestPoolProvider_GetUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/u1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 4996, map[string]any{"login": "u1", "name": "User One", "bio": "hi"})
	})
	provider, _ := newTestProvider(t, mux)

	user, err := provider.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "User One", user.GetName())
}

func TestClientPool_GetClientPrefersMostQuota(t *testing.T) {
	pool, err := NewClientPool([]string{"a", "b", "c"}, nil)
	require.NoError(t, err)

	clients := pool.AllClients()
	clients[0].UpdateRateLimit(10, time.Now().Add(time.Hour))
	clients[1].UpdateRateLimit(3000, time.Now().Add(time.Hour))
	clients[2].UpdateRateLimit(200, time.Now().Add(time.Hour))
	assert.Same(t, clients[1], pool.GetClient())
	assert.Equal(t, 3210, pool.Remaining())

	clients[0].UpdateRateLimit(0, time.Now().Add(time.Minute))
	clients[1].UpdateRateLimit(5, time.Now().Add(time.Hour))
	clients[2].UpdateRateLimit(0, time.Now().Add(30*time.Minute))
	assert.Same(t, clients[0], pool.GetClient())
}

func TestNewClientPool_Anonymous(t *testing.T) {
	pool, err := NewClientPool(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Size())
	assert.Equal(t, 60, pool.Remaining())
	assert.Equal(t, "", pool.PrimaryToken())
}

func TestReadTokenAndProxyFiles(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "tokens")
	require.NoError(t, os.WriteFile(tokenFile, []byte("# pool\ntok1\n\n  tok2  \n"), 0600))
	proxyFile := filepath.Join(dir, "proxies")
	require.NoError(t, os.WriteFile(proxyFile, []byte("10.0.0.1:8080\nsocks5://10.0.0.2:1080\n"), 0600))

	tokens, err := ReadTokenFile(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok1", "tok2"}, tokens)

	proxies, err := ReadProxyFile(proxyFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://10.0.0.1:8080", "socks5://10.0.0.2:1080"}, proxies)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0600))
	_, err = ReadTokenFile(empty)
	assert.Error(t, err)
}

func TestResolveToken(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv(tokenEnvVar, "")
	t.Setenv("GITHUB_TOKEN", "")

	assert.Equal(t, "", ResolveToken(""))
	assert.Equal(t, "flag", ResolveToken(" flag "))

	t.Setenv("GITHUB_TOKEN", "env")
	assert.Equal(t, "env", ResolveToken(""))

	t.Setenv(tokenEnvVar, "app-env")
	assert.Equal(t, "app-env", ResolveToken(""))

	t.Setenv(tokenEnvVar, "")
	t.Setenv("GITHUB_TOKEN", "")
	require.NoError(t, SaveToken("saved"))
	assert.Equal(t, "saved", ResolveToken(""))
}
