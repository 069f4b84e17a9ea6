package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Gate answers whether a URL may be crawled and what minimum delay the
// domain requests, based on each domain's robots.txt.
//
// Rules are fetched lazily on first encounter with a domain and cached
// for the crawl's lifetime; a crawl sees one consistent ruleset per
// domain, never a mid-run refetch.
//
// Design decision: An unreachable or absent robots.txt is treated as
// fully permissive. Fetch failure is not an allow/deny ambiguity to agonize
// over; it gets the explicit fail-open default the wider ecosystem uses.
type Gate struct {
	client    *http.Client
	userAgent string
	enabled   bool

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // nil value = permissive
}

// Option configures a Gate.
type Option func(*Gate)

// WithHTTPClient sets the client used for robots.txt fetches.
// Robots fetches go direct, not through rotated sessions: the ruleset
// fetch is an administrative request, not part of the disguise.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gate) {
		g.client = client
	}
}

// WithUserAgent sets the agent robots.txt group matching uses.
func WithUserAgent(ua string) Option {
	return func(g *Gate) {
		g.userAgent = ua
	}
}

// NewGate creates a robots compliance gate. When enabled is false the
// gate allows everything and reports no delay without any network I/O.
func NewGate(enabled bool, opts ...Option) *Gate {
	g := &Gate{
		enabled: enabled,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: 10 * time.Second}
	}
	return g
}

// Allowed reports whether the target URL may be fetched.
func (g *Gate) Allowed(ctx context.Context, target string) bool {
	if !g.enabled {
		return true
	}

	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		return false
	}

	data := g.rules(ctx, u)
	if data == nil {
		return true
	}

	group := g.findGroup(data)
	if group == nil {
		return true
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

// CrawlDelay returns the crawl-delay the domain's robots.txt requests for
// our user agent, or zero when none applies. Only domains already
// consulted through Allowed have rules; CrawlDelay never fetches.
func (g *Gate) CrawlDelay(host string) time.Duration {
	if !g.enabled {
		return 0
	}

	g.mu.Lock()
	data, ok := g.cache[strings.ToLower(host)]
	g.mu.Unlock()
	if !ok || data == nil {
		return 0
	}

	group := g.findGroup(data)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// rules returns the cached ruleset for the URL's host, fetching it on
// first encounter. A nil return means permissive.
func (g *Gate) rules(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	host := strings.ToLower(u.Host)

	g.mu.Lock()
	if data, ok := g.cache[host]; ok {
		g.mu.Unlock()
		return data
	}
	g.mu.Unlock()

	data := g.fetch(ctx, u)

	// First writer wins: if a concurrent worker fetched the same host
	// meanwhile, keep its result so the crawl sees one ruleset.
	g.mu.Lock()
	if existing, ok := g.cache[host]; ok {
		data = existing
	} else {
		g.cache[host] = data
	}
	g.mu.Unlock()

	return data
}

// fetch retrieves and parses /robots.txt for the URL's host.
// Every failure path returns nil, the permissive default.
func (g *Gate) fetch(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}

// findGroup resolves the rule group for our user agent, falling back to
// the wildcard group.
func (g *Gate) findGroup(data *robotstxt.RobotsData) *robotstxt.Group {
	if g.userAgent != "" {
		if group := data.FindGroup(g.userAgent); group != nil {
			return group
		}
	}
	return data.FindGroup("*")
}
