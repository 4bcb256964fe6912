// Package githubtest provides an in-memory Provider for crawler tests.
package githubtest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v57/github"
)

// Provider serves a synthetic star graph. Repositories that were never added
// answer with 404, unless a generator is installed, in which case the graph
// is unbounded.
type Provider struct {
	mu sync.Mutex

	repos      map[string]*gh.Repository
	stargazers map[string][]string
	starred    map[string][]string
	profiles   map[string]*gh.User

	generated     int
	ignorePerPage bool
	quotaFailures int
	brokenStarred map[string]bool
	brokenRepos   map[string]error
	calls         map[string]int
	remaining     int
}

func New() *Provider {
	return &Provider{
		repos:         make(map[string]*gh.Repository),
		stargazers:    make(map[string][]string),
		starred:       make(map[string][]string),
		profiles:      make(map[string]*gh.User),
		brokenStarred: make(map[string]bool),
		brokenRepos:   make(map[string]error),
		calls:         make(map[string]int),
		remaining:     5000,
	}
}

// NewGenerated returns a provider whose graph never runs out: every unknown
// repository has 2*fanout stargazers, and each of them has starred 2*fanout
// repositories not seen before.
func NewGenerated(fanout int) *Provider {
	p := New()
	p.generated = fanout
	return p
}

// AddRepo registers a repository and its stargazers, in page order.
func (p *Provider) AddRepo(fullName string, stargazers ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repos[key(fullName)] = &gh.Repository{
		FullName:        gh.String(fullName),
		Language:        gh.String("Go"),
		StargazersCount: gh.Int(len(stargazers)),
		ForksCount:      gh.Int(0),
	}
	p.stargazers[key(fullName)] = stargazers
	return p
}

// SetRepo replaces the record returned for a repository.
func (p *Provider) SetRepo(repo *gh.Repository) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repos[key(repo.GetFullName())] = repo
	return p
}

// AddStarred registers the repositories a user has starred, in page order.
func (p *Provider) AddStarred(login string, repos ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starred[key(login)] = repos
	return p
}

func (p *Provider) AddProfile(login, name, bio string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[key(login)] = &gh.User{Login: gh.String(login), Name: gh.String(name), Bio: gh.String(bio)}
	return p
}

// IgnorePageSize makes listings return every entry regardless of the
// requested page size.
func (p *Provider) IgnorePageSize() *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ignorePerPage = true
	return p
}

// FailWithQuota makes the next n calls fail with a primary rate-limit error.
func (p *Provider) FailWithQuota(n int) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotaFailures = n
	return p
}

// BreakStarred makes the starred listing of login fail with a server error.
func (p *Provider) BreakStarred(login string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brokenStarred[key(login)] = true
	return p
}

// BreakRepo makes every call about the repository fail with err.
func (p *Provider) BreakRepo(fullName string, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brokenRepos[key(fullName)] = err
	return p
}

// Calls reports how many times op was attempted, including failed attempts.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *Provider) GetRepository(ctx context.Context, fullName string) (*gh.Repository, error) {
	if err := p.begin(ctx, "repository"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.brokenRepos[key(fullName)]; err != nil {
		return nil, err
	}
	if repo, ok := p.repos[key(fullName)]; ok {
		return repo, nil
	}
	if p.generated > 0 {
		return &gh.Repository{
			FullName:        gh.String(fullName),
			StargazersCount: gh.Int(2 * p.generated),
		}, nil
	}
	return nil, NotFound()
}

func (p *Provider) GetStargazersPage(ctx context.Context, fullName string, perPage int) ([]*gh.User, error) {
	if err := p.begin(ctx, "stargazers"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.brokenRepos[key(fullName)]; err != nil {
		return nil, err
	}

	logins, ok := p.stargazers[key(fullName)]
	if !ok && p.generated > 0 {
		for i := 0; i < 2*p.generated; i++ {
			logins = append(logins, fmt.Sprintf("%s-u%d", strings.ReplaceAll(fullName, "/", "-"), i))
		}
		ok = true
	}
	if !ok {
		return nil, NotFound()
	}

	users := make([]*gh.User, 0, len(logins))
	for _, login := range logins {
		users = append(users, &gh.User{Login: gh.String(login)})
	}
	return page(users, p.pageSize(perPage)), nil
}

func (p *Provider) GetStarredPage(ctx context.Context, login string, perPage int) ([]*gh.Repository, error) {
	if err := p.begin(ctx, "starred"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.brokenStarred[key(login)] {
		return nil, &gh.ErrorResponse{
			Response: response(http.StatusInternalServerError, "users/"+login+"/starred"),
			Message:  "starred listing unavailable",
		}
	}

	names := p.starred[key(login)]
	if names == nil && p.generated > 0 {
		for i := 0; i < 2*p.generated; i++ {
			names = append(names, fmt.Sprintf("gen/%s-r%d", login, i))
		}
	}

	repos := make([]*gh.Repository, 0, len(names))
	for _, name := range names {
		repos = append(repos, &gh.Repository{FullName: gh.String(name)})
	}
	return page(repos, p.pageSize(perPage)), nil
}

func (p *Provider) GetUser(ctx context.Context, login string) (*gh.User, error) {
	if err := p.begin(ctx, "user"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if user, ok := p.profiles[key(login)]; ok {
		return user, nil
	}
	return nil, NotFound()
}

func (p *Provider) RemainingQuota() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

func (p *Provider) begin(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if p.quotaFailures > 0 {
		p.quotaFailures--
		p.remaining = 0
		return RateLimited()
	}
	if p.remaining > 0 {
		p.remaining--
	}
	return nil
}

func NotFound() error {
	return &gh.ErrorResponse{
		Response: response(http.StatusNotFound, "synthetic"),
		Message:  "Not Found",
	}
}

func RateLimited() error {
	return &gh.RateLimitError{
		Rate:     gh.Rate{Limit: 5000, Remaining: 0, Reset: gh.Timestamp{Time: time.Now().Add(time.Minute)}},
		Response: response(http.StatusForbidden, "synthetic"),
		Message:  "API rate limit exceeded",
	}
}

// Forbidden returns the error GitHub gives for a blocked or private resource.
func Forbidden() error {
	return &gh.ErrorResponse{
		Response: response(http.StatusForbidden, "synthetic"),
		Message:  "Repository access blocked",
	}
}

func response(status int, path string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Request: &http.Request{
			Method: http.MethodGet,
			URL:    &url.URL{Scheme: "https", Host: "api.github.com", Path: "/" + path},
		},
	}
}

// pageSize is the page size the provider honours; 0 means unlimited.
func (p *Provider) pageSize(perPage int) int {
	if p.ignorePerPage {
		return 0
	}
	return perPage
}

func page[T any](items []T, perPage int) []T {
	if perPage > 0 && len(items) > perPage {
		return items[:perPage]
	}
	return items
}

func key(s string) string {
	return strings.ToLower(s)
}
