// Package fetcher wraps the provider with quota tracking and failure
// classification. Callers see three kinds of result: data, a *SkipError for
// an entity that is unavailable, or a *QuotaError once the quota has not
// recovered within the configured maximum wait.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	gh "github.com/google/go-github/v57/github"

	"github.com/gnomegl/gitgraph/internal/github"
)

var (
	ErrSkip           = errors.New("entity skipped")
	ErrQuotaExhausted = errors.New("provider quota exhausted")
)

// SkipError reports an entity the crawl should treat as unavailable.
type SkipError struct {
	Op     string
	Target string
	Reason string
	Err    error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Target, e.Reason, e.Err)
}

func (e *SkipError) Unwrap() []error { return []error{ErrSkip, e.Err} }

// QuotaError is fatal for the run.
type QuotaError struct {
	Op     string
	Target string
	Waited time.Duration
	Err    error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s %s: quota did not recover after %s: %v", e.Op, e.Target, e.Waited, e.Err)
}

func (e *QuotaError) Unwrap() []error { return []error{ErrQuotaExhausted, e.Err} }

type Config struct {
	// Cooldown is how long every worker pauses after a quota error.
	Cooldown time.Duration
	// MaxWait bounds the cumulative cooldown spent on a single call; 0 waits
	// until the quota recovers.
	MaxWait time.Duration
	// RequestsPerSecond paces outbound calls; 0 disables pacing.
	RequestsPerSecond float64
}

func DefaultConfig() Config {
	return Config{
		Cooldown:          60 * time.Second,
		MaxWait:           30 * time.Minute,
		RequestsPerSecond: 10,
	}
}

type Fetcher struct {
	provider github.Provider
	gate     *Gate
	config   Config
	out      io.Writer
}

func New(provider github.Provider, cfg Config, out io.Writer) *Fetcher {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if cfg.MaxWait < 0 {
		cfg.MaxWait = 0
	}
	if out == nil {
		out = io.Discard
	}
	return &Fetcher{
		provider: provider,
		gate:     NewGate(cfg.RequestsPerSecond),
		config:   cfg,
		out:      out,
	}
}

func (f *Fetcher) Remaining() int { return f.provider.RemainingQuota() }

func (f *Fetcher) Repository(ctx context.Context, fullName string) (*gh.Repository, error) {
	var repo *gh.Repository
	err := f.do(ctx, "get repository", fullName, func(ctx context.Context) error {
		var err error
		repo, err = f.provider.GetRepository(ctx, fullName)
		return err
	})
	return repo, err
}

// Stargazers returns at most limit users from the first stargazer page.
func (f *Fetcher) Stargazers(ctx context.Context, fullName string, limit int) ([]*gh.User, error) {
	var users []*gh.User
	err := f.do(ctx, "list stargazers", fullName, func(ctx context.Context) error {
		var err error
		users, err = f.provider.GetStargazersPage(ctx, fullName, limit)
		return err
	})
	return truncate(users, limit), err
}

// Starred returns at most limit repositories from the first page the user
// has starred.
func (f *Fetcher) Starred(ctx context.Context, login string, limit int) ([]*gh.Repository, error) {
	var repos []*gh.Repository
	err := f.do(ctx, "list starred", login, func(ctx context.Context) error {
		var err error
		repos, err = f.provider.GetStarredPage(ctx, login, limit)
		return err
	})
	return truncate(repos, limit), err
}

func (f *Fetcher) User(ctx context.Context, login string) (*gh.User, error) {
	var user *gh.User
	err := f.do(ctx, "get user", login, func(ctx context.Context) error {
		var err error
		user, err = f.provider.GetUser(ctx, login)
		return err
	})
	return user, err
}

// do drives the retry loop for one call. Only quota outcomes are retried,
// each time after the shared gate has been suspended for the cooldown.
func (f *Fetcher) do(ctx context.Context, op, target string, call func(context.Context) error) error {
	var waited time.Duration
	for {
		if err := f.gate.Wait(ctx); err != nil {
			return err
		}

		res := Classify(call(ctx), f.config.Cooldown)
		switch res.Outcome {
		case OK:
			return nil
		case Aborted:
			return res.Err
		case RetryAfter:
			if f.config.MaxWait > 0 && waited+res.Delay > f.config.MaxWait {
				return &QuotaError{Op: op, Target: target, Waited: waited, Err: res.Err}
			}
			waited += res.Delay
			until := f.gate.Suspend(res.Delay)
			color.New(color.FgYellow).Fprintf(f.out, "[!] %s while %s %s, pausing until %s\n",
				res.Reason, op, target, until.Format("15:04:05"))
		default:
			return &SkipError{Op: op, Target: target, Reason: res.Reason, Err: res.Err}
		}
	}
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
