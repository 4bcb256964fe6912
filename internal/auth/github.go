package auth

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/gnomegl/gitgraph/internal/config"
	"github.com/gnomegl/gitgraph/internal/github"
	"github.com/gnomegl/gitgraph/internal/utils"
)

// SetupClientPool builds the token pool and checks the primary token before
// any crawl work starts.
func SetupClientPool(ctx context.Context, cfg config.GitHubConfig, out io.Writer) (*github.ClientPool, error) {
	var opts []github.PoolOption
	if cfg.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.BaseURL))
	}
	pool, err := github.NewClientPool(cfg.Tokens, cfg.Proxies, opts...)
	if err != nil {
		return nil, err
	}

	primary := pool.AllClients()[0].Client
	if pool.PrimaryToken() != "" {
		if err := github.ValidateToken(ctx, primary); err != nil {
			return nil, fmt.Errorf("token validation failed: %w", err)
		}
	}
	checkLatestVersion(ctx, pool, out)

	if pool.Size() > 1 {
		color.New(color.FgCyan).Fprintf(out, "Using token pool with %d tokens\n", pool.Size())
	}
	return pool, nil
}

func checkLatestVersion(ctx context.Context, pool *github.ClientPool, out io.Writer) {
	mc := pool.GetClient()
	release, _, err := mc.Client.Repositories.GetLatestRelease(ctx, "gnomegl", "gitgraph")
	if err != nil {
		return
	}

	latest := strings.TrimPrefix(release.GetTagName(), "v")
	current := utils.GetVersion()
	if latest == "" || latest == current {
		return
	}
	color.New(color.FgYellow).Fprintf(out, "A new version of gitgraph is available: %s (you're running %s)\n", latest, current)
	fmt.Fprintln(out, "To update:")
	color.New(color.FgCyan).Fprintln(out, "go install github.com/gnomegl/gitgraph@latest")
	fmt.Fprintln(out)
}
