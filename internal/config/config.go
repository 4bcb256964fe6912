// Package config assembles the crawl configuration from defaults, an
// optional YAML file, environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	gh "github.com/gnomegl/gitgraph/internal/github"
	"github.com/gnomegl/gitgraph/internal/graph"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreNeo4j  = "neo4j"
)

var (
	ErrMissingToken = errors.New("GitHub token required: use --token, --token-file, GITGRAPH_GITHUB_TOKEN or GITHUB_TOKEN")
	ErrMissingSeed  = errors.New("at least one seed repository (owner/name) is required")
)

type GitHubConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
	ProxyFile string `yaml:"proxy_file"`
	BaseURL   string `yaml:"base_url"`

	// Tokens is the resolved token list, filled by Load.
	Tokens  []string `yaml:"-"`
	Proxies []string `yaml:"-"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type StoreConfig struct {
	Kind       string      `yaml:"kind"`
	SQLitePath string      `yaml:"sqlite_path"`
	Neo4j      Neo4jConfig `yaml:"neo4j"`
}

func (s StoreConfig) Neo4jDriverConfig() graph.Neo4jConfig {
	return graph.Neo4jConfig{
		URI:      s.Neo4j.URI,
		Username: s.Neo4j.User,
		Password: s.Neo4j.Password,
		Database: s.Neo4j.Database,
	}
}

type CrawlConfig struct {
	MaxRepos          int           `yaml:"max_repos"`
	MaxStargazers     int           `yaml:"max_stargazers"`
	MaxStarred        int           `yaml:"max_starred"`
	Workers           int           `yaml:"workers"`
	FetchProfiles     *bool         `yaml:"fetch_profiles"`
	Cooldown          time.Duration `yaml:"cooldown"`
	MaxWait           time.Duration `yaml:"max_wait"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	FlushTimeout      time.Duration `yaml:"flush_timeout"`
}

// Profiles reports whether stargazer profiles are completed.
func (c CrawlConfig) Profiles() bool {
	return c.FetchProfiles == nil || *c.FetchProfiles
}

type AppConfig struct {
	GitHub GitHubConfig `yaml:"github"`
	Store  StoreConfig  `yaml:"store"`
	Crawl  CrawlConfig  `yaml:"crawl"`
	Seeds  []string     `yaml:"seeds"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Store: StoreConfig{
			Kind:       StoreNeo4j,
			SQLitePath: "gitgraph.db",
			Neo4j:      Neo4jConfig{Database: "neo4j"},
		},
		Crawl: CrawlConfig{
			MaxRepos:          50,
			MaxStargazers:     50,
			Workers:           1,
			Cooldown:          60 * time.Second,
			MaxWait:           30 * time.Minute,
			RequestsPerSecond: 10,
			FlushTimeout:      30 * time.Second,
		},
	}
}

// Values is the read side of parsed flags; *cli.Context satisfies it.
type Values interface {
	IsSet(name string) bool
	String(name string) string
	Int(name string) int
	Bool(name string) bool
	Float64(name string) float64
	Duration(name string) time.Duration
}

// LoadDotEnv loads variables from the given .env files without overriding
// the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadFile decodes the YAML file at path onto cfg. Keys the file leaves out
// keep their current value, and keys it sets win even when zero, so
// `max_wait: 0` in a file turns the quota wait bound off.
func LoadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Load builds the configuration for a command. Flags that were set, on the
// command line or through their environment variables, win over the file
// named by --config, which wins over the defaults. Positional seeds replace
// seeds from the file.
func Load(v Values, seeds []string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if path := v.String("config"); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	cfg.applyFlags(v)
	if len(seeds) > 0 {
		cfg.Seeds = nil
		for _, s := range seeds {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Seeds = append(cfg.Seeds, s)
			}
		}
	}
	return cfg, nil
}

func (c *AppConfig) applyFlags(v Values) {
	flagString := func(dst *string, name string) {
		if v.IsSet(name) {
			*dst = v.String(name)
		}
	}
	flagInt := func(dst *int, name string) {
		if v.IsSet(name) {
			*dst = v.Int(name)
		}
	}
	flagDuration := func(dst *time.Duration, name string) {
		if v.IsSet(name) {
			*dst = v.Duration(name)
		}
	}

	flagString(&c.GitHub.Token, "token")
	flagString(&c.GitHub.TokenFile, "token-file")
	flagString(&c.GitHub.ProxyFile, "proxy-file")
	flagString(&c.GitHub.BaseURL, "api-url")

	flagString(&c.Store.Kind, "store")
	flagString(&c.Store.SQLitePath, "sqlite-path")
	flagString(&c.Store.Neo4j.URI, "neo4j-uri")
	flagString(&c.Store.Neo4j.User, "neo4j-user")
	flagString(&c.Store.Neo4j.Password, "neo4j-password")
	flagString(&c.Store.Neo4j.Database, "neo4j-database")

	flagInt(&c.Crawl.MaxRepos, "max-repos")
	flagInt(&c.Crawl.MaxStargazers, "max-stargazers")
	flagInt(&c.Crawl.MaxStarred, "max-starred")
	flagInt(&c.Crawl.Workers, "workers")
	if v.IsSet("fetch-profiles") {
		b := v.Bool("fetch-profiles")
		c.Crawl.FetchProfiles = &b
	}
	flagDuration(&c.Crawl.Cooldown, "cooldown")
	flagDuration(&c.Crawl.MaxWait, "max-wait")
	flagDuration(&c.Crawl.FlushTimeout, "flush-timeout")
	if v.IsSet("rps") {
		c.Crawl.RequestsPerSecond = v.Float64("rps")
	}

	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
}

// ResolveTokens fills GitHub.Tokens and GitHub.Proxies. A token file wins
// over a single token, which falls back to the environment and the saved
// token.
func (c *AppConfig) ResolveTokens() error {
	c.GitHub.Tokens = nil
	if c.GitHub.TokenFile != "" {
		tokens, err := gh.ReadTokenFile(c.GitHub.TokenFile)
		if err != nil {
			return err
		}
		c.GitHub.Tokens = tokens
	} else if token := gh.ResolveToken(c.GitHub.Token); token != "" {
		c.GitHub.Tokens = []string{token}
	}

	c.GitHub.Proxies = nil
	if c.GitHub.ProxyFile != "" {
		proxies, err := gh.ReadProxyFile(c.GitHub.ProxyFile)
		if err != nil {
			return err
		}
		c.GitHub.Proxies = proxies
	}
	return nil
}

// ValidateStore checks the store selection and its connection parameters.
func (c *AppConfig) ValidateStore() error {
	switch c.Store.Kind {
	case StoreMemory:
	case StoreSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("--sqlite-path is required for the sqlite store")
		}
	case StoreNeo4j:
		var missing []string
		if c.Store.Neo4j.URI == "" {
			missing = append(missing, "NEO4J_URI")
		}
		if c.Store.Neo4j.User == "" {
			missing = append(missing, "NEO4J_USER")
		}
		if c.Store.Neo4j.Password == "" {
			missing = append(missing, "NEO4J_PASSWORD")
		}
		if len(missing) > 0 {
			return fmt.Errorf("neo4j store needs %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown store %q (want %s, %s or %s)", c.Store.Kind, StoreNeo4j, StoreSQLite, StoreMemory)
	}
	return nil
}

// Validate checks everything a crawl needs before any work starts. Tokens
// must have been resolved.
func (c *AppConfig) Validate() error {
	if len(c.GitHub.Tokens) == 0 {
		return ErrMissingToken
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}

	if len(c.Seeds) == 0 {
		return ErrMissingSeed
	}
	for _, seed := range c.Seeds {
		if _, _, err := gh.SplitFullName(seed); err != nil {
			return fmt.Errorf("seed %q: %w", seed, err)
		}
	}

	switch {
	case c.Crawl.MaxRepos <= 0:
		return errors.New("--max-repos must be positive")
	case c.Crawl.MaxStargazers <= 0:
		return errors.New("--max-stargazers must be positive")
	case c.Crawl.MaxStarred < 0:
		return errors.New("--max-starred must not be negative")
	case c.Crawl.Workers <= 0:
		return errors.New("--workers must be positive")
	case c.Crawl.Cooldown <= 0:
		return errors.New("--cooldown must be positive")
	case c.Crawl.MaxWait < 0:
		return errors.New("--max-wait must not be negative")
	case c.Crawl.RequestsPerSecond < 0:
		return errors.New("--rps must not be negative")
	}
	return nil
}
