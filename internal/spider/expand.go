package spider

import (
	"context"
	"errors"
	"strings"

	"github.com/gnomegl/gitgraph/internal/fetcher"
	"github.com/gnomegl/gitgraph/internal/frontier"
	"github.com/gnomegl/gitgraph/internal/graph"
	"github.com/gnomegl/gitgraph/internal/models"
)

// expansion is what one repository contributed. The batch is valid even when
// expand returns an error.
type expansion struct {
	name       string
	batch      *graph.Batch
	skipped    bool
	discovered int
}

// expand fetches the repository, its first stargazer page and each new
// stargazer's first starred page, staging nodes and edges and pushing
// discovered repositories. Unavailable entities are skipped at the smallest
// granularity; quota exhaustion and cancellation are returned.
func (s *Spider) expand(ctx context.Context, front *frontier.Frontier, id string) (expansion, error) {
	exp := expansion{name: id, batch: graph.NewBatch()}

	repo, err := s.fetcher.Repository(ctx, id)
	if err != nil {
		if isSkip(err) {
			exp.skipped = true
			s.warn("skipping repository %s: %v", id, err)
			return exp, nil
		}
		return exp, err
	}
	node := models.RepositoryFromGitHub(repo)
	if node.FullName == "" {
		node.FullName = id
	}
	exp.name = node.FullName
	exp.batch.AddRepository(node)

	stargazers, err := s.fetcher.Stargazers(ctx, node.FullName, s.config.MaxStargazers)
	if err != nil {
		if isSkip(err) {
			s.warn("no stargazers for %s: %v", node.FullName, err)
			return exp, nil
		}
		return exp, err
	}

	var fresh []string
	for _, sg := range stargazers {
		user := models.UserFromGitHub(sg)
		if user.Login == "" {
			continue
		}
		if s.claim(user.Login) {
			fresh = append(fresh, user.Login)
		}
		exp.batch.AddUser(user)
		exp.batch.AddStar(models.StarsEdge{User: user.Login, Repository: node.FullName})
	}

	for _, login := range fresh {
		if s.config.FetchProfiles {
			if err := s.completeProfile(ctx, exp.batch, login); err != nil {
				return exp, err
			}
		}

		starred, err := s.fetcher.Starred(ctx, login, s.config.MaxStarred)
		if err != nil {
			if isSkip(err) {
				s.warn("skipping starred repositories of %s: %v", login, err)
				continue
			}
			return exp, err
		}
		for _, r := range starred {
			if front.Push(r.GetFullName()) {
				exp.discovered++
			}
		}
	}
	return exp, nil
}

// completeProfile replaces the staged stargazer record with the full user
// profile. A profile that cannot be fetched leaves the stargazer record.
func (s *Spider) completeProfile(ctx context.Context, b *graph.Batch, login string) error {
	profile, err := s.fetcher.User(ctx, login)
	if err != nil {
		if isSkip(err) {
			return nil
		}
		return err
	}
	user := models.UserFromGitHub(profile)
	if !strings.EqualFold(user.Login, login) {
		return nil
	}
	user.Login = login
	b.ReplaceUser(user)
	return nil
}

func isSkip(err error) bool {
	return errors.Is(err, fetcher.ErrSkip)
}

func lower(s string) string {
	return strings.ToLower(s)
}
