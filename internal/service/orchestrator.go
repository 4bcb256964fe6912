package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/gnomegl/gitgraph/internal/auth"
	"github.com/gnomegl/gitgraph/internal/config"
	"github.com/gnomegl/gitgraph/internal/display"
	"github.com/gnomegl/gitgraph/internal/fetcher"
	"github.com/gnomegl/gitgraph/internal/github"
	"github.com/gnomegl/gitgraph/internal/graph"
	"github.com/gnomegl/gitgraph/internal/spider"
)

const (
	FormatCSV  = "csv"
	FormatGEXF = "gexf"
	FormatJSON = "json"
)

// Orchestrator wires configuration into the crawl pipeline: token pool,
// provider, fetcher, store, writer and spider.
type Orchestrator struct {
	config   *config.AppConfig
	out      io.Writer
	progress io.Writer
}

// NewOrchestrator reports to out; progress receives the progress bar and may
// be nil.
func NewOrchestrator(cfg *config.AppConfig, out, progress io.Writer) *Orchestrator {
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{config: cfg, out: out, progress: progress}
}

// OpenStore connects the configured store. The caller closes it.
func (o *Orchestrator) OpenStore(ctx context.Context) (graph.Store, error) {
	if err := o.config.ValidateStore(); err != nil {
		return nil, err
	}
	switch o.config.Store.Kind {
	case config.StoreNeo4j:
		return graph.NewNeo4jStore(ctx, o.config.Store.Neo4jDriverConfig())
	case config.StoreSQLite:
		return graph.NewSQLiteStore(ctx, o.config.Store.SQLitePath)
	default:
		return graph.NewMemoryStore(), nil
	}
}

func (o *Orchestrator) Crawl(ctx context.Context) (spider.Stats, error) {
	if err := o.config.Validate(); err != nil {
		return spider.Stats{}, err
	}

	pool, err := auth.SetupClientPool(ctx, o.config.GitHub, o.out)
	if err != nil {
		return spider.Stats{}, err
	}

	store, err := o.OpenStore(ctx)
	if err != nil {
		return spider.Stats{}, fmt.Errorf("open %s store: %w", o.config.Store.Kind, err)
	}
	defer store.Close(context.WithoutCancel(ctx))

	crawl := o.config.Crawl
	f := fetcher.New(github.NewPoolProvider(pool), fetcher.Config{
		Cooldown:          crawl.Cooldown,
		MaxWait:           crawl.MaxWait,
		RequestsPerSecond: crawl.RequestsPerSecond,
	}, o.out)

	s := spider.NewSpider(f, graph.NewWriter(store), spider.SpiderConfig{
		MaxRepos:      crawl.MaxRepos,
		MaxStargazers: crawl.MaxStargazers,
		MaxStarred:    crawl.MaxStarred,
		MaxWorkers:    crawl.Workers,
		FetchProfiles: crawl.Profiles(),
		FlushTimeout:  crawl.FlushTimeout,
	}, spider.WithOutput(o.out), spider.WithProgressBar(o.progress))

	stats, err := s.Run(ctx, o.config.Seeds...)
	if o.config.Store.Kind == config.StoreMemory {
		color.New(color.FgYellow).Fprintln(o.out, "[!] memory store: nothing was persisted")
	}
	if ctx.Err() == nil {
		pool.DisplayPoolRateLimit(ctx, o.out)
	}
	return stats, err
}

// snapshot reads the whole stored graph. The memory store starts empty every
// run, so there is nothing to read from it.
func (o *Orchestrator) snapshot(ctx context.Context) (*graph.Snapshot, error) {
	if o.config.Store.Kind == config.StoreMemory {
		return nil, errors.New("the memory store keeps nothing between runs; use sqlite or neo4j")
	}

	store, err := o.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", o.config.Store.Kind, err)
	}
	defer store.Close(context.WithoutCancel(ctx))

	reader, ok := store.(graph.Reader)
	if !ok {
		return nil, fmt.Errorf("%s store cannot be read back", o.config.Store.Kind)
	}
	return reader.Snapshot(ctx)
}

// Export writes the stored graph as CSV tables into the directory dest, or
// as a GEXF document or NDJSON stream into the file dest ("-" or "" for out).
func (o *Orchestrator) Export(ctx context.Context, format, dest string) error {
	format = strings.ToLower(format)
	var write func(io.Writer, *graph.Snapshot) error
	switch format {
	case FormatCSV:
	case FormatGEXF:
		write = func(w io.Writer, snap *graph.Snapshot) error {
			return graph.WriteGEXF(w, snap, "GitHub star graph")
		}
	case FormatJSON:
		write = display.WriteNDJSON
	default:
		return fmt.Errorf("unknown export format %q (want %s, %s or %s)", format, FormatCSV, FormatGEXF, FormatJSON)
	}

	snap, err := o.snapshot(ctx)
	if err != nil {
		return err
	}

	if format == FormatCSV {
		if dest == "" || dest == "-" {
			dest = "."
		}
		if err := graph.WriteCSV(dest, snap); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(o.out, "[+] Wrote users.csv, repos.csv and stars.csv to %s\n", dest)
	} else {
		if dest == "" || dest == "-" {
			return write(o.out, snap)
		}
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		if err := write(f, snap); err != nil {
			return fmt.Errorf("failed to write %s: %w", format, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(o.out, "[+] Wrote %s\n", dest)
	}

	fmt.Fprintf(o.out, "  Repositories: %d\n", len(snap.Repositories()))
	fmt.Fprintf(o.out, "  Users: %d\n", len(snap.Users()))
	fmt.Fprintf(o.out, "  Edges: %d\n", len(snap.Stars()))
	return nil
}

// Summary prints the top entries of the stored graph.
func (o *Orchestrator) Summary(ctx context.Context, top int) (display.Summary, error) {
	snap, err := o.snapshot(ctx)
	if err != nil {
		return display.Summary{}, err
	}
	summary := display.Summarize(snap, top)
	display.WriteSummary(o.out, summary)
	return summary, nil
}

// RateLimit prints the remaining quota of every token in the pool.
func (o *Orchestrator) RateLimit(ctx context.Context) error {
	pool, err := auth.SetupClientPool(ctx, o.config.GitHub, o.out)
	if err != nil {
		return err
	}
	pool.DisplayPoolRateLimit(ctx, o.out)
	return nil
}
