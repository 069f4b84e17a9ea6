package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/stealthcrawler/internal/config"
	"github.com/nao1215/stealthcrawler/internal/identity"
)

// maxRedirects caps redirect chains to prevent loops while allowing
// normal multi-hop redirects.
const maxRedirects = 10

// DefaultProbeURL is the endpoint used for proxy pre-flight validation.
// A plain what-is-my-ip service: tiny response, no side effects, and it
// exercises the full proxy path.
const DefaultProbeURL = "http://httpbin.org/ip"

// newHTTPClient builds an HTTP client routed through the identity's proxy
// (or direct when the identity has none), with a fresh cookie jar and
// connection pool.
//
// Design decisions carried from scratch-building clients per session:
//   - Each session gets its own Transport so rotation really discards the
//     old connection pool; reusing a Transport would keep pooled
//     connections tied to the previous identity alive.
//   - Conservative pool sizes, since sessions are short-lived by design.
//   - TLS verification is controlled by a single per-crawl flag, never
//     decided per request.
func newHTTPClient(id identity.Identity, timeout time.Duration, verifySSL bool, sites func(host string) config.SiteConfig) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !verifySSL, //nolint:gosec // Explicit per-crawl operator choice, logged at startup
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	if id.Proxy != "" {
		if err := configureProxy(transport, id.Proxy); err != nil {
			return nil, err
		}
	}

	// Cookie jar per session: cookies are part of the identity and must
	// not survive rotation.
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:  transport,
			id:    id,
			sites: sites,
		},
		Timeout: timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// configureProxy wires the transport to the proxy endpoint.
// http and https proxies go through Transport.Proxy; socks5 endpoints get
// a SOCKS5 dialer from golang.org/x/net/proxy.
func configureProxy(transport *http.Transport, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid proxy endpoint: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
		return nil

	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
		return nil

	default:
		return fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
}

// headerInjectingTransport injects the session identity's headers and any
// per-site overrides into every request, including redirect hops.
//
// Design decision: Injection at the transport rather than at each request
// site, so redirects and any future subrequests present the same identity
// as the original request.
type headerInjectingTransport struct {
	base  http.RoundTripper
	id    identity.Identity
	sites func(host string) config.SiteConfig
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.id.UserAgent != "" {
		clone.Header.Set("User-Agent", t.id.UserAgent)
	}
	for key, value := range t.id.Headers {
		clone.Header.Set(key, value)
	}

	// Site overrides win over randomized identity headers: an operator
	// supplying an Authorization header means it.
	if t.sites != nil {
		site := t.sites(req.URL.Hostname())
		for key, value := range site.Headers {
			clone.Header.Set(key, value)
		}
		if site.Cookie != "" {
			if existing := clone.Header.Get("Cookie"); existing != "" {
				clone.Header.Set("Cookie", existing+"; "+site.Cookie)
			} else {
				clone.Header.Set("Cookie", site.Cookie)
			}
		}
	}

	return t.base.RoundTrip(clone)
}

// Probe issues a lightweight request through the given proxy endpoint to
// verify it works end to end. Used for pre-flight proxy validation.
func Probe(ctx context.Context, endpoint string, timeout time.Duration, verifySSL bool) error {
	client, err := newHTTPClient(identity.Identity{Proxy: endpoint}, timeout, verifySSL, nil)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, DefaultProbeURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy probe returned status %d", resp.StatusCode)
	}
	return nil
}
