package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateDisabled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	gate := NewGate(false, WithHTTPClient(srv.Client()))

	if !gate.Allowed(context.Background(), srv.URL+"/secret") {
		t.Error("disabled gate should allow everything")
	}
	if got := gate.CrawlDelay("example.com"); got != 0 {
		t.Errorf("CrawlDelay = %v, want 0", got)
	}
}

func TestGateAllowed(t *testing.T) {
	t.Parallel()

	t.Run("disallow rules are enforced", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /admin\n"))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		gate := NewGate(true, WithHTTPClient(srv.Client()))

		if !gate.Allowed(context.Background(), srv.URL+"/public") {
			t.Error("/public should be allowed")
		}
		if gate.Allowed(context.Background(), srv.URL+"/admin/panel") {
			t.Error("/admin/panel should be blocked")
		}
	})

	t.Run("agent specific group wins over wildcard", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n\nUser-agent: friendlybot\nDisallow: /private\n"))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		gate := NewGate(true, WithHTTPClient(srv.Client()), WithUserAgent("friendlybot"))

		if !gate.Allowed(context.Background(), srv.URL+"/open") {
			t.Error("/open should be allowed for friendlybot")
		}
		if gate.Allowed(context.Background(), srv.URL+"/private/data") {
			t.Error("/private/data should be blocked for friendlybot")
		}
	})

	t.Run("missing robots.txt fails open", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		gate := NewGate(true, WithHTTPClient(srv.Client()))

		if !gate.Allowed(context.Background(), srv.URL+"/anything") {
			t.Error("404 robots.txt should be permissive")
		}
	})

	t.Run("unreachable host fails open", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		gate := NewGate(true, WithHTTPClient(&http.Client{Timeout: time.Second}))

		if !gate.Allowed(context.Background(), srv.URL+"/anything") {
			t.Error("fetch failure should be permissive")
		}
	})

	t.Run("malformed target is rejected", func(t *testing.T) {
		t.Parallel()

		gate := NewGate(true)

		if gate.Allowed(context.Background(), "://bad") {
			t.Error("unparsable URL should not be allowed")
		}
		if gate.Allowed(context.Background(), "/relative/path") {
			t.Error("relative URL should not be allowed")
		}
	})

	t.Run("empty path is treated as root", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		gate := NewGate(true, WithHTTPClient(srv.Client()))

		if gate.Allowed(context.Background(), srv.URL) {
			t.Error("bare host should map to / and be blocked")
		}
	})
}

func TestGateCaching(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /hidden\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gate := NewGate(true, WithHTTPClient(srv.Client()))

	for range 5 {
		if gate.Allowed(context.Background(), srv.URL+"/hidden") {
			t.Fatal("/hidden should be blocked")
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
}

func TestGateCrawlDelay(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nCrawl-delay: 2\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gate := NewGate(true, WithHTTPClient(srv.Client()))

	host := strings.TrimPrefix(srv.URL, "http://")

	// CrawlDelay never fetches; before Allowed it knows nothing.
	if got := gate.CrawlDelay(host); got != 0 {
		t.Errorf("CrawlDelay before first Allowed = %v, want 0", got)
	}

	if !gate.Allowed(context.Background(), srv.URL+"/page") {
		t.Fatal("/page should be allowed")
	}
	if got := gate.CrawlDelay(host); got != 2*time.Second {
		t.Errorf("CrawlDelay = %v, want 2s", got)
	}
	if got := gate.CrawlDelay("unknown.example"); got != 0 {
		t.Errorf("CrawlDelay for unknown host = %v, want 0", got)
	}
}

func TestGateUserAgentHeader(t *testing.T) {
	t.Parallel()

	var gotAgent atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		gotAgent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("User-agent: *\nDisallow:\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	gate := NewGate(true, WithHTTPClient(srv.Client()), WithUserAgent("friendlybot/1.0"))

	if !gate.Allowed(context.Background(), srv.URL+"/page") {
		t.Fatal("/page should be allowed")
	}
	if got, _ := gotAgent.Load().(string); got != "friendlybot/1.0" {
		t.Errorf("robots fetch User-Agent = %q, want %q", got, "friendlybot/1.0")
	}
}
