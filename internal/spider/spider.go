// Package spider crawls the star graph: it pops repositories from the
// frontier, expands each through the fetcher and commits the result through
// the graph writer.
package spider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/gnomegl/gitgraph/internal/fetcher"
	"github.com/gnomegl/gitgraph/internal/frontier"
	"github.com/gnomegl/gitgraph/internal/graph"
)

type SpiderConfig struct {
	MaxRepos      int
	MaxStargazers int
	// MaxStarred bounds each stargazer's starred listing; 0 means
	// MaxStargazers.
	MaxStarred    int
	MaxWorkers    int
	FetchProfiles bool
	FlushTimeout  time.Duration
}

func DefaultConfig() SpiderConfig {
	return SpiderConfig{
		MaxRepos:      50,
		MaxStargazers: 50,
		MaxWorkers:    1,
		FetchProfiles: true,
		FlushTimeout:  30 * time.Second,
	}
}

// Stats counts what the writer actually committed during a run.
type Stats struct {
	Repositories int
	Users        int
	Edges        int
	Visited      int
	Skipped      int
	Discovered   int
}

type Option func(*Spider)

// WithOutput sends per-repository progress lines and warnings to w.
func WithOutput(w io.Writer) Option {
	return func(s *Spider) { s.out = w }
}

// WithProgressBar draws a progress bar over MaxRepos on w.
func WithProgressBar(w io.Writer) Option {
	return func(s *Spider) { s.barOut = w }
}

type Spider struct {
	fetcher *fetcher.Fetcher
	writer  *graph.Writer
	config  SpiderConfig
	out     io.Writer
	barOut  io.Writer

	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewSpider(f *fetcher.Fetcher, w *graph.Writer, cfg SpiderConfig, opts ...Option) *Spider {
	def := DefaultConfig()
	if cfg.MaxRepos <= 0 {
		cfg.MaxRepos = def.MaxRepos
	}
	if cfg.MaxStargazers <= 0 {
		cfg.MaxStargazers = def.MaxStargazers
	}
	if cfg.MaxStarred <= 0 {
		cfg.MaxStarred = cfg.MaxStargazers
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}

	s := &Spider{
		fetcher: f,
		writer:  w,
		config:  cfg,
		out:     io.Discard,
		claimed: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Spider) Config() SpiderConfig { return s.config }

// run holds the mutable state of one Run.
type run struct {
	front    *frontier.Frontier
	progress *progress

	mu      sync.Mutex
	stats   Stats
	running int
	wake    chan struct{}
}

func (r *run) started() {
	r.mu.Lock()
	r.running++
	r.mu.Unlock()
}

func (r *run) finished() {
	r.mu.Lock()
	r.running--
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *run) idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running == 0
}

func (r *run) record(fn func(*Stats)) Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.stats)
	return r.stats
}

func (r *run) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Run crawls outward from the seed repositories until the frontier is
// exhausted or MaxRepos expansions have started. Every expansion's staged
// writes are flushed, including those of expansions cut short by
// cancellation or a fatal error. On failure the partial stats are returned
// with the error.
func (s *Spider) Run(ctx context.Context, seeds ...string) (Stats, error) {
	r := &run{
		front: frontier.New(s.config.MaxRepos, seeds...),
		wake:  make(chan struct{}, 1),
	}
	if r.front.Queued() == 0 {
		return Stats{}, errors.New("no seed repository given")
	}
	s.mu.Lock()
	s.claimed = make(map[string]struct{})
	s.mu.Unlock()

	color.New(color.FgCyan).Fprintf(s.out, "Starting star graph crawl from: %v\n", seeds)
	fmt.Fprintf(s.out, "  Max repos: %d | Max stargazers: %d | Max starred: %d | Workers: %d\n\n",
		s.config.MaxRepos, s.config.MaxStargazers, s.config.MaxStarred, s.config.MaxWorkers)

	if err := s.writer.EnsureSchema(ctx); err != nil {
		return Stats{}, fmt.Errorf("ensure schema: %w", err)
	}

	r.progress = newProgress(s.out, s.barOut, s.config.MaxRepos)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxWorkers)

	for gctx.Err() == nil {
		id, ok := r.front.Pop()
		if !ok {
			if r.front.CapReached() {
				break
			}
			// Nothing running means nothing can be pushed any more.
			if r.idle() && r.front.Queued() == 0 {
				break
			}
			select {
			case <-r.wake:
			case <-gctx.Done():
			}
			continue
		}

		r.started()
		g.Go(func() error {
			defer r.finished()
			return s.visit(gctx, r, id)
		})
	}

	err := g.Wait()
	r.progress.finish()

	stats := r.snapshot()
	if err == nil {
		err = ctx.Err()
	}
	s.printSummary(stats, err)
	return stats, err
}

// visit expands one repository and flushes whatever it staged. Only quota
// exhaustion and write failures are returned; skips are logged and
// cancellations end the visit quietly. Visited counts every popped
// repository, as the frontier does, even one cancelled before expansion.
func (s *Spider) visit(ctx context.Context, r *run, id string) error {
	defer r.front.Done(id)
	if ctx.Err() != nil {
		r.record(func(st *Stats) { st.Visited++ })
		return nil
	}

	exp, expandErr := s.expand(ctx, r.front, id)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FlushTimeout)
	defer cancel()
	counts, flushErr := s.writer.Flush(flushCtx, exp.batch)

	stats := r.record(func(st *Stats) {
		st.Repositories += counts.Repositories
		st.Users += counts.Users
		st.Edges += counts.Edges
		st.Discovered += exp.discovered
		st.Visited++
		if exp.skipped {
			st.Skipped++
		}
	})

	if flushErr != nil {
		return fmt.Errorf("write %s: %w", id, flushErr)
	}
	if expandErr != nil {
		if isCanceled(expandErr) {
			return nil
		}
		return fmt.Errorf("expand %s: %w", id, expandErr)
	}

	r.progress.repository(exp.name, counts, stats, r.front.Queued(), s.fetcher.Remaining())
	return nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// claim reports whether login is seen for the first time this run. Only the
// first sighting of a user completes its profile and reads its starred list.
func (s *Spider) claim(login string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := lower(login)
	if _, ok := s.claimed[k]; ok {
		return false
	}
	s.claimed[k] = struct{}{}
	return true
}

func (s *Spider) warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(s.out, "[!] "+format+"\n", args...)
}

func (s *Spider) printSummary(stats Stats, err error) {
	fmt.Fprintln(s.out)
	if err != nil {
		color.New(color.FgRed).Fprintf(s.out, "[-] Crawl stopped: %v\n", err)
		fmt.Fprintln(s.out, "  Partial counts:")
	} else {
		color.New(color.FgGreen).Fprintln(s.out, "[+] Crawl complete:")
	}
	fmt.Fprintf(s.out, "  Repositories: %d\n", stats.Repositories)
	fmt.Fprintf(s.out, "  Users: %d\n", stats.Users)
	fmt.Fprintf(s.out, "  Edges: %d\n", stats.Edges)
	fmt.Fprintf(s.out, "  Visited: %d (skipped %d) | Discovered: %d\n", stats.Visited, stats.Skipped, stats.Discovered)
}
