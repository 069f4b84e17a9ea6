package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/stealthcrawler/internal/config"
	"github.com/nao1215/stealthcrawler/internal/crawler"
	"github.com/nao1215/stealthcrawler/internal/database"
	"github.com/nao1215/stealthcrawler/internal/delay"
	"github.com/nao1215/stealthcrawler/internal/fetch"
	"github.com/nao1215/stealthcrawler/internal/identity"
	"github.com/nao1215/stealthcrawler/internal/log"
	"github.com/nao1215/stealthcrawler/internal/model"
	"github.com/nao1215/stealthcrawler/internal/report"
	"github.com/nao1215/stealthcrawler/internal/robots"
	"github.com/nao1215/stealthcrawler/internal/session"
	"github.com/nao1215/stealthcrawler/internal/stats"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl a website starting from the seed URL",
		Long: `Crawl recursively fetches pages starting from the seed URL.

It extracts titles and links from each page, follows discovered links up to
the configured depth, and reports one result per visited page. Requests are
paced by the selected delay strategy, and the anti-detection engine can
rotate user agents, randomize headers, and route traffic through proxies.

Examples:
  # Crawl with defaults (depth 3, same domain, robots.txt respected)
  stealthcrawler crawl https://example.com

  # Full anti-detection mode with adaptive pacing
  stealthcrawler crawl --stealth https://example.com

  # Rotate through validated proxies
  stealthcrawler crawl --proxy http://p1:8080 --proxy socks5://p2:1080 https://example.com

  # Deep crawl with a larger page budget and more workers
  stealthcrawler crawl -d 5 -p 500 -w 4 https://example.com

  # Output the raw JSON page results
  stealthcrawler crawl --json https://example.com

Configuration file (.stealthcrawler) example:
  proxies:
    - http://proxy1.example.com:8080
  sites:
    app.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	// Crawl scope flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from the seed URL")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl")
	cmd.Flags().Bool("same-domain", true,
		"Restrict the crawl to the seed URL's domain")
	cmd.Flags().Bool("ignore-robots", false,
		"Skip robots.txt compliance checks")

	// Request behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request attempt")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header when rotation is disabled")
	cmd.Flags().IntP("retries", "r", config.DefaultMaxRetries,
		"Retry budget per URL for transient failures")
	cmd.Flags().Duration("backoff", config.DefaultRetryBackoffBase,
		"Base wait between retries (doubles per attempt)")
	cmd.Flags().IntP("concurrency", "w", config.DefaultConcurrency,
		"Number of concurrent fetch workers")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body bytes read per page")
	cmd.Flags().BoolP("insecure", "k", false,
		"Skip TLS certificate verification")

	// Anti-detection flags
	cmd.Flags().BoolP("stealth", "s", false,
		"Enable user-agent rotation, header randomization, and adaptive delays")
	cmd.Flags().Bool("rotate-user-agents", false,
		"Rotate through realistic browser user-agent strings")
	cmd.Flags().Bool("randomize-headers", false,
		"Randomize Accept, Accept-Language, and optional headers per request")
	cmd.Flags().StringSlice("proxy", nil,
		"Proxy endpoint URL, repeatable (http://, https://, socks5://)")
	cmd.Flags().Bool("validate-proxies", true,
		"Probe each proxy before the crawl and disable failures")
	cmd.Flags().Int("session-rotation", config.DefaultSessionRotationInterval,
		"Requests served by one session before rotation")

	// Pacing flags
	cmd.Flags().String("delay-strategy", config.DelayFixed,
		"Delay strategy between requests: fixed, random, exponential, adaptive")
	cmd.Flags().Duration("min-delay", config.DefaultMinDelay,
		"Minimum wait between requests")
	cmd.Flags().Duration("max-delay", config.DefaultMaxDelay,
		"Maximum wait between requests")
	cmd.Flags().Int("host-rate", 0,
		"Requests per host allowed per --host-rate-window (0 disables)")
	cmd.Flags().Duration("host-rate-window", time.Minute,
		"Window for the per-host rate ceiling")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .stealthcrawler in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON page results (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false,
		"Skip recording this run in the crawl history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Resolve the anti-detection master switch before validation so the
	// upgraded delay strategy is what gets validated.
	cfg.ApplyAntiDetection()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	verbose := getVerboseFlag(cmd)
	cfg.Verbose = verbose
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.SeedURL = args[0]

	// Get flag values
	var err error

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.SameDomainOnly, err = cmd.Flags().GetBool("same-domain")
	if err != nil {
		return nil, err
	}

	ignoreRobots, err := cmd.Flags().GetBool("ignore-robots")
	if err != nil {
		return nil, err
	}
	cfg.RespectRobotsTxt = !ignoreRobots

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.MaxRetries, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.RetryBackoffBase, err = cmd.Flags().GetDuration("backoff")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size")
	if err != nil {
		return nil, err
	}

	insecure, err := cmd.Flags().GetBool("insecure")
	if err != nil {
		return nil, err
	}
	cfg.VerifySSL = !insecure

	cfg.EnableAntiDetection, err = cmd.Flags().GetBool("stealth")
	if err != nil {
		return nil, err
	}

	cfg.EnableUserAgentRotation, err = cmd.Flags().GetBool("rotate-user-agents")
	if err != nil {
		return nil, err
	}

	cfg.EnableHeaderRandomization, err = cmd.Flags().GetBool("randomize-headers")
	if err != nil {
		return nil, err
	}

	cfg.ProxyList, err = cmd.Flags().GetStringSlice("proxy")
	if err != nil {
		return nil, err
	}

	cfg.ValidateProxies, err = cmd.Flags().GetBool("validate-proxies")
	if err != nil {
		return nil, err
	}

	cfg.SessionRotationInterval, err = cmd.Flags().GetInt("session-rotation")
	if err != nil {
		return nil, err
	}

	cfg.DelayStrategy, err = cmd.Flags().GetString("delay-strategy")
	if err != nil {
		return nil, err
	}

	cfg.MinDelay, err = cmd.Flags().GetDuration("min-delay")
	if err != nil {
		return nil, err
	}

	cfg.MaxDelay, err = cmd.Flags().GetDuration("max-delay")
	if err != nil {
		return nil, err
	}

	cfg.HostRateLimit, err = cmd.Flags().GetInt("host-rate")
	if err != nil {
		return nil, err
	}

	cfg.HostRateWindow, err = cmd.Flags().GetDuration("host-rate-window")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load proxies, user agents, and per-site overrides from the config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.FileConfig, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.FileConfig = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	// File-supplied proxies are merged after the --proxy flags;
	// a file-supplied user-agent list replaces the built-in one.
	cfg.ProxyList = append(cfg.ProxyList, cfg.FileConfig.Proxies...)
	if len(cfg.FileConfig.UserAgents) > 0 {
		cfg.UserAgents = cfg.FileConfig.UserAgents
	}

	// Supplying proxies implies routing through them.
	if len(cfg.ProxyList) > 0 {
		cfg.EnableProxyRotation = true
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir = config.XDGDataDir()

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// The secure handler redacts proxy credentials and cookie values before
// any record reaches the terminal or a log file.
func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := log.NewSecureHandler(slog.NewTextHandler(os.Stderr, opts))
	return slog.New(handler)
}

// runCrawl wires the crawl components together and executes the run.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	cfg.LogTrustChoices(logger)

	// Validate guaranteed a parseable seed.
	seed, err := url.Parse(cfg.SeedURL)
	if err != nil {
		return fmt.Errorf("invalid seed URL: %w", err)
	}

	// Open database connection if saving is enabled
	var db *database.CrawlDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)

		if hasRecentRun(ctx, db, cfg.SeedURL) {
			fmt.Fprintf(os.Stderr, "Note: %s was crawled within the last %s; see 'stealthcrawler history'\n",
				cfg.SeedURL, recentRunWindow)
		}
	}

	// Identity pool: user agents, headers, proxies
	poolOpts := []identity.PoolOption{}
	if cfg.EnableUserAgentRotation {
		poolOpts = append(poolOpts, identity.WithUserAgentRotation(cfg.UserAgents, cfg.RandomUserAgentRotation))
	}
	if cfg.EnableHeaderRandomization {
		poolOpts = append(poolOpts, identity.WithHeaderRandomization())
	}

	var monitor *identity.ProxyMonitor
	if cfg.EnableProxyRotation {
		monitor = identity.NewProxyMonitor(cfg.ProxyList)
		if cfg.ValidateProxies {
			fmt.Fprintf(os.Stderr, "Validating %d proxies...\n", len(cfg.ProxyList))
			alive := monitor.Validate(ctx, func(ctx context.Context, endpoint string) error {
				return session.Probe(ctx, endpoint, cfg.Timeout, cfg.VerifySSL)
			})
			fmt.Fprintf(os.Stderr, "%d of %d proxies passed validation\n", alive, len(cfg.ProxyList))
			if alive == 0 {
				return errors.New("no working proxies (all failed validation)")
			}
		}
		poolOpts = append(poolOpts, identity.WithProxyRotation(monitor))
	}
	pool := identity.NewPool(cfg.UserAgent, poolOpts...)

	// Sessions rotate identities and connection pools together.
	var sites func(host string) config.SiteConfig
	if cfg.FileConfig != nil {
		sites = cfg.FileConfig.GetSiteConfig
	}
	sessions := session.NewManager(pool, cfg.SessionRotationInterval, cfg.Timeout, cfg.VerifySSL, sites)
	defer sessions.Close()

	strategy, err := delay.ParseStrategy(cfg.DelayStrategy)
	if err != nil {
		return err
	}
	policy := delay.NewPolicy(strategy, cfg.MinDelay, cfg.MaxDelay)

	gate := robots.NewGate(cfg.RespectRobotsTxt, robots.WithUserAgent(cfg.UserAgent))
	agg := stats.NewAggregator()

	controller := fetch.NewController(sessions, policy, monitor, agg, crawler.Extract, logger, fetch.Options{
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.RetryBackoffBase,
		MaxBodySize: cfg.MaxBodySize,
	})

	frontier := crawler.NewFrontier(seed, cfg.MaxDepth, cfg.SameDomainOnly)
	engine := crawler.NewEngine(frontier, controller, gate, policy, sessions, monitor, agg, logger, cfg.SeedURL, crawler.Options{
		RunID:          uuid.NewString(),
		Concurrency:    cfg.Concurrency,
		MaxPages:       cfg.MaxPages,
		HostRateLimit:  cfg.HostRateLimit,
		HostRateWindow: cfg.HostRateWindow,
	})

	fmt.Fprintf(os.Stderr, "Crawling %s...\n", cfg.SeedURL)
	startTime := time.Now()

	summary, results := engine.Run(ctx)

	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "Crawl finished in %s (%d pages)\n\n", elapsed.Round(time.Millisecond), summary.PagesCrawled)

	if monitor != nil {
		health := monitor.Health(log.RedactProxy)
		logger.Info("proxy pool health",
			"healthy", health.HealthyProxies,
			"total", health.TotalProxies,
			"percentage", health.HealthPercentage)
	}

	// Generate and output report
	if err := outputReport(cfg, &summary, results); err != nil {
		logger.Error("report failed", "seedURL", cfg.SeedURL, "error", err)
	}

	// Save to database if enabled
	if err := saveCrawlRun(ctx, db, &summary, results, logger); err != nil {
		logger.Error("failed to save crawl run", "runID", summary.RunID, "error", err)
	}

	if summary.State == model.CrawlStateAborted && ctx.Err() == nil {
		return fmt.Errorf("crawl aborted: %s", summary.AbortedReason)
	}
	return nil
}

// outputReport outputs the crawl report in the requested format.
func outputReport(cfg *config.Config, summary *model.CrawlSummary, results []*model.PageResult) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with secure permissions (0600).
		// Crawl results may map out internal sites and should stay private.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	// JSON output (the raw page-result array)
	if cfg.JSONReport {
		writer := report.NewJSONWriter(output, report.WithPrettyPrint())
		_, err := writer.Write(summary, results)
		return err
	}

	// Markdown output
	if cfg.MarkdownReport {
		writer := report.NewMarkdownWriter(output)
		_, err := writer.Write(summary, results)
		return err
	}

	// Human-readable report (default)
	writer := report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	_, err := writer.Write(summary, results)
	return err
}

// recentRunWindow is how far back hasRecentRun looks for a stored crawl
// of the same seed.
const recentRunWindow = 24 * time.Hour

// hasRecentRun reports whether the seed was already crawled within the
// hint window. Lookup failures are treated as no recent run; the hint is
// informational and must never block a crawl.
func hasRecentRun(ctx context.Context, db *database.CrawlDB, seedURL string) bool {
	if db == nil {
		return false
	}
	recent, err := db.HasRecentRun(ctx, seedURL, recentRunWindow)
	return err == nil && recent
}

// saveCrawlRun persists the run to the history database.
// A nil db (saving disabled) is a silent no-op.
func saveCrawlRun(ctx context.Context, db *database.CrawlDB, summary *model.CrawlSummary, results []*model.PageResult, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveRun(ctx, summary, results); err != nil {
		return err
	}

	logger.Info("crawl run saved", "runID", summary.RunID, "pages", len(results))
	return nil
}
