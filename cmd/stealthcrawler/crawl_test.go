package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/stealthcrawler/internal/config"
	"github.com/nao1215/stealthcrawler/internal/database"
	"github.com/nao1215/stealthcrawler/internal/model"
)

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "crawl [url]" {
			t.Errorf("expected use 'crawl [url]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("requires exactly one argument", func(t *testing.T) {
		t.Parallel()
		if cmd.Args == nil {
			t.Error("expected Args validator")
		}
	})

	t.Run("has depth flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("depth")
		if flag == nil {
			t.Fatal("expected depth flag")
		}
		if flag.Shorthand != "d" {
			t.Errorf("expected shorthand 'd', got %q", flag.Shorthand)
		}
	})

	t.Run("has max-pages flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("max-pages")
		if flag == nil {
			t.Fatal("expected max-pages flag")
		}
		if flag.Shorthand != "p" {
			t.Errorf("expected shorthand 'p', got %q", flag.Shorthand)
		}
	})

	t.Run("has timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("timeout")
		if flag == nil {
			t.Fatal("expected timeout flag")
		}
		if flag.Shorthand != "t" {
			t.Errorf("expected shorthand 't', got %q", flag.Shorthand)
		}
	})

	t.Run("has stealth flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("stealth")
		if flag == nil {
			t.Fatal("expected stealth flag")
		}
		if flag.Shorthand != "s" {
			t.Errorf("expected shorthand 's', got %q", flag.Shorthand)
		}
	})

	t.Run("has proxy flag", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("proxy") == nil {
			t.Fatal("expected proxy flag")
		}
	})

	t.Run("has delay-strategy flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("delay-strategy")
		if flag == nil {
			t.Fatal("expected delay-strategy flag")
		}
		if flag.DefValue != config.DelayFixed {
			t.Errorf("expected default %q, got %q", config.DelayFixed, flag.DefValue)
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("config")
		if flag == nil {
			t.Fatal("expected config flag")
		}
		if flag.Shorthand != "c" {
			t.Errorf("expected shorthand 'c', got %q", flag.Shorthand)
		}
	})

	t.Run("has json flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("json")
		if flag == nil {
			t.Fatal("expected json flag")
		}
		if flag.Shorthand != "j" {
			t.Errorf("expected shorthand 'j', got %q", flag.Shorthand)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
	})

	t.Run("does not have db-dir flag (uses XDG)", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("db-dir") != nil {
			t.Error("db-dir flag should not exist (always uses XDG data directory)")
		}
	})
}

// TestSetupLogger tests the logger setup.
func TestSetupLogger(t *testing.T) {
	t.Parallel()

	t.Run("creates logger for verbose mode", func(t *testing.T) {
		t.Parallel()
		logger := setupLogger(true)
		if logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("creates logger for non-verbose mode", func(t *testing.T) {
		t.Parallel()
		logger := setupLogger(false)
		if logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// TestGetVerboseFlag tests the verbose flag retrieval.
func TestGetVerboseFlag(t *testing.T) {
	t.Run("returns false when flag not set", func(t *testing.T) {
		cmd := NewCrawlCmd()
		if getVerboseFlag(cmd) {
			t.Error("expected false when flag not set")
		}
	})

	t.Run("returns value from parent verbose flag", func(t *testing.T) {
		root := NewRootCmd()
		_ = root.PersistentFlags().Set("verbose", "true")

		crawlCmd, _, err := root.Find([]string{"crawl"})
		if err != nil {
			t.Fatalf("failed to find crawl command: %v", err)
		}

		if !getVerboseFlag(crawlCmd) {
			t.Error("expected true from parent verbose flag")
		}
	})
}

// TestBuildConfig tests configuration building from flags.
func TestBuildConfig(t *testing.T) {
	t.Run("builds config with default values", func(t *testing.T) {
		cmd := NewCrawlCmd()
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg == nil {
			t.Fatal("expected non-nil config")
		}
		if cfg.SeedURL != "https://example.com" {
			t.Errorf("expected seed 'https://example.com', got %q", cfg.SeedURL)
		}
		if !cfg.RespectRobotsTxt {
			t.Error("expected RespectRobotsTxt to be true by default")
		}
		if !cfg.SameDomainOnly {
			t.Error("expected SameDomainOnly to be true by default")
		}
		if !cfg.VerifySSL {
			t.Error("expected VerifySSL to be true by default")
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true by default")
		}
		if cfg.DelayStrategy != config.DelayFixed {
			t.Errorf("expected fixed delay strategy, got %q", cfg.DelayStrategy)
		}
		if cfg.EnableProxyRotation {
			t.Error("expected EnableProxyRotation to be false without proxies")
		}
	})

	t.Run("ignore-robots disables robots compliance", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("ignore-robots", "true")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.RespectRobotsTxt {
			t.Error("expected RespectRobotsTxt to be false")
		}
	})

	t.Run("insecure disables TLS verification", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("insecure", "true")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.VerifySSL {
			t.Error("expected VerifySSL to be false")
		}
	})

	t.Run("builds config with custom depth", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("depth", "5")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxDepth != 5 {
			t.Errorf("expected MaxDepth 5, got %d", cfg.MaxDepth)
		}
	})

	t.Run("proxy flags enable proxy rotation", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("proxy", "http://proxy1:8080")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !cfg.EnableProxyRotation {
			t.Error("expected EnableProxyRotation to be true with proxies")
		}
		if len(cfg.ProxyList) != 1 || cfg.ProxyList[0] != "http://proxy1:8080" {
			t.Errorf("expected proxy list [http://proxy1:8080], got %v", cfg.ProxyList)
		}
	})

	t.Run("builds config with JSON flag", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("json", "true")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !cfg.JSONReport {
			t.Error("expected JSONReport to be true")
		}
	})

	t.Run("no-save disables database persistence", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("no-save", "true")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false")
		}
	})

	t.Run("builds config with valid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "stealthcrawler.yaml")

		content := []byte(`
proxies:
  - http://fileproxy:3128
userAgents:
  - "test-agent/2.0"
sites:
  app.example.com:
    cookie: session=xyz
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", configPath)
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.FileConfig == nil {
			t.Fatal("expected FileConfig to be loaded")
		}
		if len(cfg.ProxyList) != 1 || cfg.ProxyList[0] != "http://fileproxy:3128" {
			t.Errorf("expected file proxies to be merged, got %v", cfg.ProxyList)
		}
		if !cfg.EnableProxyRotation {
			t.Error("expected file proxies to enable proxy rotation")
		}
		if len(cfg.UserAgents) != 1 || cfg.UserAgents[0] != "test-agent/2.0" {
			t.Errorf("expected file user agents, got %v", cfg.UserAgents)
		}
		site := cfg.FileConfig.GetSiteConfig("app.example.com")
		if site.Cookie != "session=xyz" {
			t.Errorf("expected site cookie 'session=xyz', got %q", site.Cookie)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.yaml")

		if err := os.WriteFile(configPath, []byte(`{invalid yaml`), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", configPath)
		if _, err := buildConfig(cmd, []string{"https://example.com"}); err == nil {
			t.Fatal("expected error for invalid config file")
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", filepath.Join(t.TempDir(), "nope.yaml"))
		if _, err := buildConfig(cmd, []string{"https://example.com"}); err == nil {
			t.Fatal("expected error for missing explicit config file")
		}
	})

	t.Run("builds config with output file", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("output", "/tmp/report.json")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ReportFile != "/tmp/report.json" {
			t.Errorf("expected ReportFile '/tmp/report.json', got %q", cfg.ReportFile)
		}
	})
}

// TestRunCrawlCmdConflictingFormats tests that --json and --markdown are
// rejected together.
func TestRunCrawlCmdConflictingFormats(t *testing.T) {
	cmd := NewCrawlCmd()
	_ = cmd.Flags().Set("json", "true")
	_ = cmd.Flags().Set("markdown", "true")

	err := runCrawlCmd(cmd, []string{"https://example.com"})
	if err == nil {
		t.Fatal("expected error for conflicting report formats")
	}
	if !strings.Contains(err.Error(), "configuration error") {
		t.Errorf("expected configuration error, got %v", err)
	}
}

// TestRunCrawlCmdInvalidSeed tests seed URL validation.
func TestRunCrawlCmdInvalidSeed(t *testing.T) {
	cmd := NewCrawlCmd()

	err := runCrawlCmd(cmd, []string{"not-a-url"})
	if err == nil {
		t.Fatal("expected error for invalid seed URL")
	}
}

// sampleCrawlData builds a summary and results for report tests.
func sampleCrawlData() (*model.CrawlSummary, []*model.PageResult) {
	success := model.NewPageResult("https://example.com/")
	success.SetTitle("Home")
	success.SetStatusCode(200)
	success.Links = []string{"https://example.com/about"}

	failure := model.NewPageResult("https://example.com/missing")
	failure.SetStatusCode(404)
	failure.SetError("http_error: HTTP 404")

	summary := &model.CrawlSummary{
		RunID:         "0b1f6cdd-6a5e-4e7a-8c4e-1f2a3b4c5d6e",
		SeedURL:       "https://example.com",
		State:         model.CrawlStateCompleted,
		StartedAt:     time.Now(),
		Duration:      2 * time.Second,
		TotalRequests: 2,
		PagesCrawled:  2,
		Successes:     1,
		Failures:      map[string]int{"http_error": 1},
	}
	return summary, []*model.PageResult{success, failure}
}

// TestOutputReport tests report generation in each format.
func TestOutputReport(t *testing.T) {
	summary, results := sampleCrawlData()

	t.Run("writes JSON report to file", func(t *testing.T) {
		reportPath := filepath.Join(t.TempDir(), "out", "report.json")
		cfg := config.NewConfig()
		cfg.JSONReport = true
		cfg.ReportFile = reportPath

		if err := outputReport(cfg, summary, results); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}

		var pages []map[string]any
		if err := json.Unmarshal(data, &pages); err != nil {
			t.Fatalf("report is not a JSON array: %v", err)
		}
		if len(pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(pages))
		}
		for _, key := range []string{"url", "title", "links", "status_code", "error", "timestamp"} {
			if _, ok := pages[0][key]; !ok {
				t.Errorf("expected key %q in page result", key)
			}
		}
	})

	t.Run("writes Markdown report to file", func(t *testing.T) {
		reportPath := filepath.Join(t.TempDir(), "report.md")
		cfg := config.NewConfig()
		cfg.MarkdownReport = true
		cfg.ReportFile = reportPath

		if err := outputReport(cfg, summary, results); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(data), "# Crawl Report") {
			t.Error("expected Markdown report heading")
		}
	})

	t.Run("writes simple report to file", func(t *testing.T) {
		reportPath := filepath.Join(t.TempDir(), "report.txt")
		cfg := config.NewConfig()
		cfg.ReportFile = reportPath

		if err := outputReport(cfg, summary, results); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		if !strings.Contains(string(data), "CRAWL REPORT") {
			t.Error("expected simple report header")
		}
	})
}

// TestSaveCrawlRun tests run persistence.
func TestSaveCrawlRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("nil database is a no-op", func(t *testing.T) {
		summary, results := sampleCrawlData()
		if err := saveCrawlRun(context.Background(), nil, summary, results, logger); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("saves run to database", func(t *testing.T) {
		db, err := database.Open(t.TempDir(), database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() {
			if err := db.Close(); err != nil {
				t.Errorf("failed to close database: %v", err)
			}
		})

		summary, results := sampleCrawlData()
		ctx := context.Background()
		if err := saveCrawlRun(ctx, db, summary, results, logger); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := db.GetRun(ctx, summary.RunID)
		if err != nil {
			t.Fatalf("failed to load run: %v", err)
		}
		if got == nil {
			t.Fatal("expected saved run to exist")
		}
		if got.SeedURL != summary.SeedURL {
			t.Errorf("expected seed %q, got %q", summary.SeedURL, got.SeedURL)
		}
	})
}

// TestHasRecentRun tests the recent-run hint lookup.
func TestHasRecentRun(t *testing.T) {
	t.Run("nil database reports no recent run", func(t *testing.T) {
		if hasRecentRun(context.Background(), nil, "https://example.com") {
			t.Error("expected false for nil database")
		}
	})

	t.Run("finds a freshly saved run", func(t *testing.T) {
		db, err := database.Open(t.TempDir(), database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() {
			if err := db.Close(); err != nil {
				t.Errorf("failed to close database: %v", err)
			}
		})

		ctx := context.Background()
		summary, results := sampleCrawlData()
		if err := db.SaveRun(ctx, summary, results); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		if !hasRecentRun(ctx, db, summary.SeedURL) {
			t.Error("expected a recent run for the saved seed")
		}
		if hasRecentRun(ctx, db, "https://never-crawled.example") {
			t.Error("expected no recent run for an unknown seed")
		}
	})
}

// TestRunCrawlEndToEnd runs a full crawl against a local test server and
// checks the JSON report it produces.
func TestRunCrawlEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body><a href="/about">About</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>About</title></head><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reportPath := filepath.Join(t.TempDir(), "report.json")

	cfg := config.NewConfig()
	cfg.SeedURL = srv.URL
	cfg.MaxDepth = 2
	cfg.MaxPages = 10
	cfg.MinDelay = 1 * time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Timeout = 5 * time.Second
	cfg.Concurrency = 1
	cfg.JSONReport = true
	cfg.ReportFile = reportPath
	cfg.SaveToDB = false

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runCrawl(context.Background(), cfg, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}

	var pages []model.PageResult
	if err := json.Unmarshal(data, &pages); err != nil {
		t.Fatalf("report is not a JSON array: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}

	urls := map[string]bool{}
	for _, p := range pages {
		urls[p.URL] = true
		if p.Error != nil {
			t.Errorf("unexpected error for %s: %s", p.URL, *p.Error)
		}
	}
	if !urls[srv.URL+"/"] || !urls[srv.URL+"/about"] {
		t.Errorf("expected seed and /about in results, got %v", urls)
	}
}
