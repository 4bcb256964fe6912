package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func command(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	cmd := app.Command(name)
	require.NotNil(t, cmd, name)
	return cmd
}

func flagNames(cmd *cli.Command) map[string]bool {
	names := map[string]bool{}
	for _, f := range cmd.Flags {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	return names
}

func TestNewApp_CrawlFlags(t *testing.T) {
	names := flagNames(command(t, NewApp(), "crawl"))
	for _, want := range []string{
		"config", "token", "token-file", "proxy-file", "api-url",
		"store", "sqlite-path", "neo4j-uri", "neo4j-user", "neo4j-password", "neo4j-database",
		"max-repos", "max-stargazers", "max-starred", "workers", "fetch-profiles",
		"cooldown", "max-wait", "flush-timeout", "rps",
	} {
		assert.True(t, names[want], "crawl is missing --%s", want)
	}
}

func TestNewApp_CommandsAreDistinct(t *testing.T) {
	app := NewApp()
	for _, name := range []string{"crawl", "export", "stats", "ratelimit", "token"} {
		command(t, app, name)
	}
	assert.False(t, flagNames(command(t, app, "export"))["max-repos"])
	assert.False(t, flagNames(command(t, app, "ratelimit"))["store"])
}

func TestNewApp_FlagDefaults(t *testing.T) {
	cmd := command(t, NewApp(), "crawl")
	for _, f := range cmd.Flags {
		switch flag := f.(type) {
		case *cli.IntFlag:
			if flag.Name == "max-repos" {
				assert.Equal(t, 50, flag.Value)
			}
		case *cli.DurationFlag:
			if flag.Name == "cooldown" {
				assert.Equal(t, 60*time.Second, flag.Value)
			}
		case *cli.BoolFlag:
			if flag.Name == "fetch-profiles" {
				assert.True(t, flag.Value)
			}
		}
	}
}

func TestExport_RejectsMemoryStore(t *testing.T) {
	app := NewApp()
	err := app.Run([]string{"gitgraph", "export", "--store", "memory", "--out", filepath.Join(t.TempDir(), "out")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory store")
}

func TestExport_RejectsUnknownFormat(t *testing.T) {
	app := NewApp()
	err := app.Run([]string{"gitgraph", "export", "--store", "sqlite",
		"--sqlite-path", filepath.Join(t.TempDir(), "g.db"), "--format", "dot"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}
