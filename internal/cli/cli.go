package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/gnomegl/gitgraph/internal/art"
	"github.com/gnomegl/gitgraph/internal/config"
	"github.com/gnomegl/gitgraph/internal/github"
	"github.com/gnomegl/gitgraph/internal/service"
	"github.com/gnomegl/gitgraph/internal/utils"
)

const helpTemplate = `{{.Name}} - {{.Usage}}

Usage: {{.HelpName}} <command> [options] [owner/repo...]

Commands:
   {{range .VisibleCommands}}{{join .Names ", "}}{{"\t"}}{{.Usage}}
   {{end}}
Options:
   {{range .VisibleFlags}}{{.}}
   {{end}}`

func NewApp() *cli.App {
	cli.AppHelpTemplate = helpTemplate

	return &cli.App{
		Name:    "gitgraph",
		Usage:   "Crawl the GitHub star graph outward from seed repositories",
		Version: "v" + utils.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:      "crawl",
				Usage:     "Expand seed repositories into users and the repositories they star",
				ArgsUsage: "<owner/repo> [owner/repo...]",
				Flags:     concat(commonFlags(), githubFlags(), storeFlags(), crawlFlags()),
				Action:    crawlAction,
			},
			{
				Name:  "export",
				Usage: "Dump the stored graph as CSV tables or a GEXF file",
				Flags: concat(commonFlags(), storeFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, gexf, json)",
						Value:   service.FormatCSV,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Directory for CSV tables, file for GEXF or JSON (- for stdout)",
					},
				}),
				Action: exportAction,
			},
			{
				Name:  "stats",
				Usage: "Rank the stored graph's repositories, users and languages",
				Flags: concat(commonFlags(), storeFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:  "top",
						Usage: "Entries per ranking (0 for all)",
						Value: 10,
					},
				}),
				Action: statsAction,
			},
			{
				Name:   "ratelimit",
				Usage:  "Show the remaining API quota of every configured token",
				Flags:  concat(commonFlags(), githubFlags()),
				Action: rateLimitAction,
			},
			{
				Name:      "token",
				Usage:     "Save a GitHub token for later runs",
				ArgsUsage: "<token>",
				Action:    saveTokenAction,
			},
		},
		Authors: []*cli.Author{
			{Name: "gnomegl"},
		},
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML config file; flags override it",
			EnvVars: []string{"GITGRAPH_CONFIG"},
		},
	}
}

func githubFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "GitHub personal access token",
			EnvVars: []string{"GITGRAPH_GITHUB_TOKEN"},
		},
		&cli.StringFlag{
			Name:  "token-file",
			Usage: "File with one token per line, used as a rotating pool",
		},
		&cli.StringFlag{
			Name:  "proxy-file",
			Usage: "File with one proxy per line, paired with tokens by position",
		},
		&cli.StringFlag{
			Name:    "api-url",
			Usage:   "GitHub API root (GitHub Enterprise)",
			EnvVars: []string{"GITGRAPH_API_URL"},
		},
	}
}

func storeFlags() []cli.Flag {
	d := config.DefaultConfig().Store
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "store",
			Usage: "Graph store (neo4j, sqlite, memory)",
			Value: d.Kind,
		},
		&cli.StringFlag{
			Name:  "sqlite-path",
			Usage: "Database file for the sqlite store",
			Value: d.SQLitePath,
		},
		&cli.StringFlag{
			Name:    "neo4j-uri",
			Usage:   "Neo4j connection URI",
			EnvVars: []string{"NEO4J_URI"},
		},
		&cli.StringFlag{
			Name:    "neo4j-user",
			Usage:   "Neo4j user",
			EnvVars: []string{"NEO4J_USER"},
		},
		&cli.StringFlag{
			Name:    "neo4j-password",
			Usage:   "Neo4j password",
			EnvVars: []string{"NEO4J_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "neo4j-database",
			Usage:   "Neo4j database",
			EnvVars: []string{"NEO4J_DATABASE"},
			Value:   d.Neo4j.Database,
		},
	}
}

func crawlFlags() []cli.Flag {
	d := config.DefaultConfig().Crawl
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "max-repos",
			Aliases: []string{"r"},
			Usage:   "Stop after expanding this many repositories",
			Value:   d.MaxRepos,
		},
		&cli.IntFlag{
			Name:    "max-stargazers",
			Aliases: []string{"s"},
			Usage:   "Stargazers read per repository",
			Value:   d.MaxStargazers,
		},
		&cli.IntFlag{
			Name:  "max-starred",
			Usage: "Starred repositories read per user (0 uses --max-stargazers)",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Repositories expanded concurrently",
			Value:   d.Workers,
		},
		&cli.BoolFlag{
			Name:  "fetch-profiles",
			Usage: "Read each new user's profile for name and bio",
			Value: true,
		},
		&cli.DurationFlag{
			Name:  "cooldown",
			Usage: "Pause after the API reports an exhausted quota",
			Value: d.Cooldown,
		},
		&cli.DurationFlag{
			Name:  "max-wait",
			Usage: "Give up on a request after waiting this long for quota (0 waits forever)",
			Value: d.MaxWait,
		},
		&cli.DurationFlag{
			Name:  "flush-timeout",
			Usage: "Time allowed to write a repository's batch after an interrupt",
			Value: d.FlushTimeout,
		},
		&cli.Float64Flag{
			Name:  "rps",
			Usage: "Requests per second across all workers (0 disables pacing)",
			Value: d.RequestsPerSecond,
		},
	}
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// signalContext cancels on Ctrl-C so the spider can flush what it staged.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func crawlAction(c *cli.Context) error {
	cfg, err := config.Load(c, c.Args().Slice())
	if err != nil {
		return err
	}
	if err := cfg.ResolveTokens(); err != nil {
		return err
	}
	if len(cfg.Seeds) == 0 {
		return cli.ShowSubcommandHelp(c)
	}

	ctx, stop := signalContext(c)
	defer stop()

	art.PrintLogo(os.Stderr)
	_, err = service.NewOrchestrator(cfg, os.Stdout, os.Stderr).Crawl(ctx)
	if errors.Is(err, context.Canceled) {
		return cli.Exit("interrupted", 130)
	}
	return err
}

func exportAction(c *cli.Context) error {
	cfg, err := config.Load(c, nil)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	return service.NewOrchestrator(cfg, os.Stdout, nil).Export(ctx, c.String("format"), c.String("out"))
}

func statsAction(c *cli.Context) error {
	cfg, err := config.Load(c, nil)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	_, err = service.NewOrchestrator(cfg, os.Stdout, nil).Summary(ctx, c.Int("top"))
	return err
}

func rateLimitAction(c *cli.Context) error {
	cfg, err := config.Load(c, nil)
	if err != nil {
		return err
	}
	if err := cfg.ResolveTokens(); err != nil {
		return err
	}
	if len(cfg.GitHub.Tokens) == 0 {
		color.New(color.FgYellow).Fprintln(os.Stderr, "[!] No token configured, showing the anonymous quota")
	}
	ctx, stop := signalContext(c)
	defer stop()
	return service.NewOrchestrator(cfg, os.Stdout, nil).RateLimit(ctx)
}

func saveTokenAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	if err := github.SaveToken(c.Args().First()); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	color.New(color.FgGreen).Fprintln(os.Stdout, "[+] Token saved")
	return nil
}
