package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v57/github"
)

// MaxPerPage is the largest page size the GitHub REST API accepts.
const MaxPerPage = 100

var ErrBadIdentifier = errors.New("repository identifier must be owner/name")

// Provider is the slice of the code-hosting API the crawler needs. Only the
// first page of each listing is ever requested.
type Provider interface {
	GetRepository(ctx context.Context, fullName string) (*gh.Repository, error)
	GetStargazersPage(ctx context.Context, fullName string, perPage int) ([]*gh.User, error)
	GetStarredPage(ctx context.Context, login string, perPage int) ([]*gh.Repository, error)
	GetUser(ctx context.Context, login string) (*gh.User, error)
	RemainingQuota() int
}

// PoolProvider serves Provider calls from a token pool, recording the quota
// each response reports on the client that made it.
type PoolProvider struct {
	pool *ClientPool
}

func NewPoolProvider(pool *ClientPool) *PoolProvider {
	return &PoolProvider{pool: pool}
}

func (p *PoolProvider) GetRepository(ctx context.Context, fullName string) (*gh.Repository, error) {
	owner, name, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}
	mc := p.pool.GetClient()
	repo, resp, err := mc.Client.Repositories.Get(ctx, owner, name)
	mc.track(resp)
	if err != nil {
		return nil, err
	}
	if repo.GetFullName() == "" {
		return nil, fmt.Errorf("repository %s: response has no full_name", fullName)
	}
	return repo, nil
}

func (p *PoolProvider) GetStargazersPage(ctx context.Context, fullName string, perPage int) ([]*gh.User, error) {
	owner, name, err := SplitFullName(fullName)
	if err != nil {
		return nil, err
	}
	mc := p.pool.GetClient()
	stargazers, resp, err := mc.Client.Activity.ListStargazers(ctx, owner, name, firstPage(perPage))
	mc.track(resp)
	if err != nil {
		return nil, err
	}

	users := make([]*gh.User, 0, len(stargazers))
	for _, s := range stargazers {
		if s.GetUser().GetLogin() == "" {
			continue
		}
		users = append(users, s.GetUser())
	}
	return users, nil
}

func (p *PoolProvider) GetStarredPage(ctx context.Context, login string, perPage int) ([]*gh.Repository, error) {
	mc := p.pool.GetClient()
	starred, resp, err := mc.Client.Activity.ListStarred(ctx, login, &gh.ActivityListStarredOptions{
		ListOptions: *firstPage(perPage),
	})
	mc.track(resp)
	if err != nil {
		return nil, err
	}

	repos := make([]*gh.Repository, 0, len(starred))
	for _, s := range starred {
		if s.GetRepository().GetFullName() == "" {
			continue
		}
		repos = append(repos, s.GetRepository())
	}
	return repos, nil
}

func (p *PoolProvider) GetUser(ctx context.Context, login string) (*gh.User, error) {
	mc := p.pool.GetClient()
	user, resp, err := mc.Client.Users.Get(ctx, login)
	mc.track(resp)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (p *PoolProvider) RemainingQuota() int {
	return p.pool.Remaining()
}

func firstPage(perPage int) *gh.ListOptions {
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return &gh.ListOptions{Page: 1, PerPage: perPage}
}

// SplitFullName splits "owner/name".
func SplitFullName(fullName string) (string, string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrBadIdentifier, fullName)
	}
	return owner, name, nil
}
