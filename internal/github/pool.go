package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

type ManagedClient struct {
	Client    *gh.Client
	Token     string
	Proxy     string
	remaining int
	resetAt   time.Time
	mu        sync.Mutex
}

func (mc *ManagedClient) UpdateRateLimit(remaining int, resetAt time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.remaining = remaining
	mc.resetAt = resetAt
}

// track records the quota reported by a response, if any.
func (mc *ManagedClient) track(resp *gh.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	mc.UpdateRateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
}

func (mc *ManagedClient) Remaining() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.remaining
}

func (mc *ManagedClient) ResetAt() time.Time {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.resetAt
}

type ClientPool struct {
	clients []*ManagedClient
	mu      sync.Mutex
}

type PoolOption func(*poolOptions)

type poolOptions struct {
	baseURL string
}

// WithBaseURL points every client at a different API root (GitHub Enterprise
// or a test server).
func WithBaseURL(raw string) PoolOption {
	return func(o *poolOptions) {
		o.baseURL = raw
	}
}

func NewClientPool(tokens []string, proxies []string, opts ...PoolOption) (*ClientPool, error) {
	var o poolOptions
	for _, opt := range opts {
		opt(&o)
	}

	pool := &ClientPool{}

	if len(tokens) == 0 {
		pool.clients = []*ManagedClient{{
			Client:    gh.NewClient(nil),
			remaining: 60,
		}}
	}

	for i, token := range tokens {
		var proxyURL string
		if i < len(proxies) {
			proxyURL = proxies[i]
		}

		client, err := createClientWithProxy(token, proxyURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for token %d: %w", i+1, err)
		}

		pool.clients = append(pool.clients, &ManagedClient{
			Client:    client,
			Token:     token,
			Proxy:     proxyURL,
			remaining: 5000,
		})
	}

	if o.baseURL != "" {
		for _, mc := range pool.clients {
			if err := setBaseURL(mc.Client, o.baseURL); err != nil {
				return nil, err
			}
		}
	}

	return pool, nil
}

func createClientWithProxy(token, proxyURL string) (*gh.Client, error) {
	transport := &http.Transport{}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}

	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = &http.Client{
			Transport: &oauth2.Transport{
				Source: ts,
				Base:   transport,
			},
		}
	} else {
		httpClient = &http.Client{Transport: transport}
	}

	return gh.NewClient(httpClient), nil
}

// GetClient returns the client with the most quota left. When every client
// is nearly exhausted it prefers the one whose window resets first.
func (p *ClientPool) GetClient() *ManagedClient {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.clients) == 1 {
		return p.clients[0]
	}

	var best *ManagedClient
	bestRemaining := -1

	for _, mc := range p.clients {
		rem := mc.Remaining()
		if rem > bestRemaining {
			bestRemaining = rem
			best = mc
		}
	}

	if bestRemaining < 100 {
		var earliest *ManagedClient
		earliestReset := time.Now().Add(24 * time.Hour)

		for _, mc := range p.clients {
			reset := mc.ResetAt()
			if reset.Before(earliestReset) {
				earliestReset = reset
				earliest = mc
			}
		}

		if earliest != nil {
			return earliest
		}
	}

	return best
}

// Remaining is the quota left across the whole pool.
func (p *ClientPool) Remaining() int {
	total := 0
	for _, mc := range p.clients {
		total += mc.Remaining()
	}
	return total
}

func (p *ClientPool) PrimaryToken() string {
	if len(p.clients) == 0 {
		return ""
	}
	return p.clients[0].Token
}

func (p *ClientPool) Size() int {
	return len(p.clients)
}

func (p *ClientPool) AllClients() []*ManagedClient {
	return p.clients
}

func (p *ClientPool) DisplayPoolRateLimit(ctx context.Context, w io.Writer) {
	if p.Size() <= 1 {
		DisplayRateLimit(ctx, w, p.clients[0].Client)
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	color.New(color.FgCyan).Fprintf(w, "Token Pool Rate Limits (%d tokens):\n", p.Size())

	for i, mc := range p.clients {
		rate, err := GetRateLimit(ctx, mc.Client)
		if err != nil {
			color.New(color.FgYellow).Fprintf(w, "  Token %d: Could not fetch rate limit: %v\n", i+1, err)
			continue
		}
		mc.UpdateRateLimit(rate.Remaining, rate.Reset.Time)

		label := fmt.Sprintf("  Token %d", i+1)
		if mc.Proxy != "" {
			label += " (proxied)"
		}
		printRate(w, label, rate)
	}
}
