package github

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/go-github/v57/github"
)

const tokenEnvVar = "GITGRAPH_GITHUB_TOKEN"

// ResolveToken picks the first non-empty token from the flag value, the
// environment and the token saved under the user config dir.
func ResolveToken(flagValue string) string {
	if token := strings.TrimSpace(flagValue); token != "" {
		return token
	}
	if token := strings.TrimSpace(os.Getenv(tokenEnvVar)); token != "" {
		return token
	}
	if token := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); token != "" {
		return token
	}

	path, err := savedTokenPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SaveToken stores the token for later runs.
func SaveToken(token string) error {
	path, err := savedTokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func savedTokenPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil || configDir == "" {
		return "", fmt.Errorf("no user config dir: %v", err)
	}
	return filepath.Join(configDir, "gitgraph", "token"), nil
}

func setBaseURL(client *github.Client, raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", raw, err)
	}
	client.BaseURL = u
	return nil
}

func ValidateToken(ctx context.Context, client *github.Client) error {
	_, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case 401:
				return fmt.Errorf("invalid GitHub token")
			case 403:
				// Rate limited - skip validation, token is likely valid
				color.Yellow("⚠️  Rate limited, skipping token validation")
				return nil
			}
		}
		return fmt.Errorf("error validating token: %w", err)
	}
	return nil
}

func GetRateLimit(ctx context.Context, client *github.Client) (*github.Rate, error) {
	limits, _, err := client.RateLimit.Get(ctx)
	if err != nil {
		return nil, err
	}
	if limits == nil || limits.Core == nil {
		return nil, fmt.Errorf("rate limit response has no core quota")
	}
	return limits.Core, nil
}

func DisplayRateLimit(ctx context.Context, w io.Writer, client *github.Client) {
	rate, err := GetRateLimit(ctx, client)
	if err != nil {
		color.New(color.FgYellow).Fprintf(w, "Could not fetch rate limit: %v\n", err)
		return
	}
	printRate(w, "Rate limit", rate)
}

func printRate(w io.Writer, label string, rate *github.Rate) {
	percentage := 0.0
	if rate.Limit > 0 {
		percentage = float64(rate.Remaining) / float64(rate.Limit) * 100
	}

	c := color.New(color.FgRed)
	if percentage > 50 {
		c = color.New(color.FgGreen)
	} else if percentage > 20 {
		c = color.New(color.FgYellow)
	}
	c.Fprintf(w, "%s: %d/%d (%.1f%%), resets %s\n",
		label, rate.Remaining, rate.Limit, percentage, rate.Reset.Format("15:04:05"))
}
