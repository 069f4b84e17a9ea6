package config

import (
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These are chosen to be polite by default: the point of anti-detection
// pacing is lost the moment the crawler hammers a site, so the defaults
// favor low concurrency and conservative delays.
const (
	// DefaultMaxDepth limits recursion from the seed URL.
	// Depth 0 means only the seed page itself.
	DefaultMaxDepth = 3

	// DefaultMaxPages caps the total number of pages fetched per crawl.
	// This prevents runaway crawling on large or infinitely-generating sites.
	DefaultMaxPages = 100

	// DefaultTimeout is the hard wall-clock timeout per fetch attempt.
	// Exceeding it classifies the attempt as a timeout and enters the
	// retry controller's policy.
	DefaultTimeout = 30 * time.Second

	// DefaultMinDelay is the lower bound for every delay strategy.
	// No strategy may schedule a wait below this value.
	DefaultMinDelay = 1 * time.Second

	// DefaultMaxDelay is the upper bound for the random and adaptive
	// strategies and the cap for exponential backoff delays.
	DefaultMaxDelay = 5 * time.Second

	// DefaultSessionRotationInterval is the number of requests served by
	// one session before it is replaced with a fresh identity and
	// connection pool.
	DefaultSessionRotationInterval = 50

	// DefaultMaxRetries bounds retry attempts for transient failures.
	// Client errors (4xx) are never retried regardless of this value.
	DefaultMaxRetries = 3

	// DefaultRetryBackoffBase is the base wait between retry attempts.
	// The wait for attempt n is base * 2^n, so retries spread out quickly.
	DefaultRetryBackoffBase = 1 * time.Second

	// DefaultConcurrency is the number of concurrent fetch workers.
	// Deliberately low: unbounded parallelism defeats rate-limit evasion.
	DefaultConcurrency = 2

	// DefaultMaxBodySize limits response body reads to prevent memory
	// exhaustion from unexpectedly large pages.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent identifies the crawler when rotation is disabled.
	// A descriptive User-Agent lets operators spot crawler traffic in logs.
	DefaultUserAgent = "stealthcrawler/1.0 (+https://github.com/nao1215/stealthcrawler)"

	// AppName is the application name used for XDG directory paths.
	AppName = "stealthcrawler"
)

// DelayStrategyName is the configuration-level name of a delay strategy.
// The delay package parses these into its tagged strategy type.
type DelayStrategyName = string

// Recognized delay strategy names.
const (
	// DelayFixed waits exactly MinDelay between requests.
	DelayFixed DelayStrategyName = "fixed"

	// DelayRandom waits a uniform duration between MinDelay and MaxDelay.
	DelayRandom DelayStrategyName = "random"

	// DelayExponential doubles the wait per consecutive failure,
	// capped at MaxDelay.
	DelayExponential DelayStrategyName = "exponential"

	// DelayAdaptive adjusts the wait based on observed server latency.
	DelayAdaptive DelayStrategyName = "adaptive"
)

// Config holds all options for a crawl run.
// It is populated from CLI flags plus the optional .stealthcrawler file and
// passed through the application by injection rather than global state.
//
// Design decision: We keep a single flat struct rather than nested
// sub-configs, matching the manageable option count. The anti-detection
// master switch is resolved once by ApplyAntiDetection so downstream
// components only ever read the individual feature flags.
type Config struct {
	// SeedURL is the crawl starting point. Must be an absolute http(s) URL.
	// An invalid seed is a fatal configuration error, never a silent skip.
	SeedURL string

	// MaxDepth is the maximum link distance from the seed.
	MaxDepth int

	// MaxPages caps the number of pages fetched in this run.
	MaxPages int

	// SameDomainOnly restricts the crawl to the seed's normalized host.
	SameDomainOnly bool

	// RespectRobotsTxt enables the robots.txt compliance gate.
	// When false the gate always answers "allowed" with no extra delay.
	RespectRobotsTxt bool

	// UserAgent is the User-Agent presented when rotation is disabled.
	UserAgent string

	// EnableAntiDetection is the master switch. When set, it turns on
	// user-agent rotation and header randomization and upgrades a fixed
	// delay strategy to adaptive. Proxy rotation still requires an
	// explicit proxy list.
	EnableAntiDetection bool

	// EnableUserAgentRotation rotates through realistic browser strings.
	EnableUserAgentRotation bool

	// EnableHeaderRandomization varies Accept, Accept-Language, DNT, and
	// optional header presence per request while keeping values consistent.
	EnableHeaderRandomization bool

	// EnableProxyRotation routes requests through the proxy pool.
	// With rotation enabled and every proxy disabled, fetching fails with
	// identity.ErrNoAvailableProxy rather than silently going direct.
	EnableProxyRotation bool

	// ProxyList holds proxy endpoint URLs (http://, https://, socks5://).
	ProxyList []string

	// ValidateProxies issues a pre-flight request through each proxy
	// before the crawl and disables the ones that fail.
	ValidateProxies bool

	// DelayStrategy selects the inter-request pacing strategy.
	DelayStrategy DelayStrategyName

	// MinDelay is the minimum wait between requests.
	MinDelay time.Duration

	// MaxDelay is the maximum base wait between requests. The adaptive
	// strategy may exceed it under backoff, up to a hard 10x ceiling.
	MaxDelay time.Duration

	// SessionRotationInterval is the request count before session rotation.
	SessionRotationInterval int

	// MaxRetries bounds retries for transient failures per URL.
	MaxRetries int

	// RetryBackoffBase is the base wait between retry attempts.
	RetryBackoffBase time.Duration

	// Timeout is the per-attempt wall-clock limit.
	Timeout time.Duration

	// VerifySSL controls TLS certificate verification. Disabling it is an
	// explicit trust-reducing choice and is logged as such at startup.
	VerifySSL bool

	// Concurrency is the fetch worker pool size.
	Concurrency int

	// MaxBodySize limits response body bytes read per page.
	MaxBodySize int64

	// UserAgents optionally replaces the built-in rotation list.
	UserAgents []string

	// RandomUserAgentRotation selects agents randomly; when false the
	// pool rotates sequentially.
	RandomUserAgentRotation bool

	// HostRateLimit and HostRateWindow optionally cap requests per host
	// (e.g. 30 requests per minute) on top of the delay policy.
	// Zero disables the ceiling.
	HostRateLimit  int
	HostRateWindow time.Duration

	// JSONReport emits the raw page-result array instead of the
	// human-readable summary. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport emits a Markdown crawl report.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to this path instead of stdout.
	// Parent directories are created as needed.
	ReportFile string

	// ConfigFilePath is an explicit .stealthcrawler path. Empty means
	// search the current directory and then the home directory.
	ConfigFilePath string

	// FileConfig holds proxies, user agents, and per-site overrides
	// loaded from the configuration file.
	FileConfig *File

	// DBDir is the directory for the crawl history database.
	// Empty disables persistence.
	DBDir string

	// SaveToDB records the run in the history database when true.
	SaveToDB bool

	// Verbose switches logging from warnings-only to debug.
	Verbose bool
}

// NewConfig returns a Config populated with defaults.
//
// Design decision: A constructor rather than zero values, because most
// defaults are non-zero and this doubles as their documentation.
func NewConfig() *Config {
	return &Config{
		MaxDepth:                DefaultMaxDepth,
		MaxPages:                DefaultMaxPages,
		SameDomainOnly:          true,
		RespectRobotsTxt:        true,
		UserAgent:               DefaultUserAgent,
		ValidateProxies:         true,
		DelayStrategy:           DelayFixed,
		MinDelay:                DefaultMinDelay,
		MaxDelay:                DefaultMaxDelay,
		SessionRotationInterval: DefaultSessionRotationInterval,
		MaxRetries:              DefaultMaxRetries,
		RetryBackoffBase:        DefaultRetryBackoffBase,
		Timeout:                 DefaultTimeout,
		VerifySSL:               true,
		Concurrency:             DefaultConcurrency,
		MaxBodySize:             DefaultMaxBodySize,
		RandomUserAgentRotation: true,
	}
}

// ApplyAntiDetection resolves the master switch into individual feature
// flags. Safe to call unconditionally; it only ever enables features.
func (c *Config) ApplyAntiDetection() {
	if !c.EnableAntiDetection {
		return
	}
	c.EnableUserAgentRotation = true
	c.EnableHeaderRandomization = true
	if c.DelayStrategy == DelayFixed {
		c.DelayStrategy = DelayAdaptive
	}
}

// XDGDataDir returns the XDG data directory for the crawl history database.
// On Linux: ~/.local/share/stealthcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory.
// On Linux: ~/.config/stealthcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
// It is called once after flag parsing, before any network activity, so a
// bad configuration never starts a crawl.
func (c *Config) Validate() error {
	if c.SeedURL == "" {
		return ErrNoSeedURL
	}

	// The seed must survive the same validation any discovered URL gets.
	u, err := url.Parse(c.SeedURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidSeedURL
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	switch c.DelayStrategy {
	case DelayFixed, DelayRandom, DelayExponential, DelayAdaptive:
	default:
		return ErrInvalidDelayStrategy
	}

	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return ErrInvalidDelayRange
	}

	if c.SessionRotationInterval <= 0 {
		return ErrInvalidSessionRotation
	}

	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}

	if c.RetryBackoffBase <= 0 {
		return ErrInvalidRetryBackoff
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	// Requesting proxy rotation without proxies is a contradiction, not a
	// degradable preference: crawling direct when the operator mandated
	// proxies would be a correctness violation.
	if c.EnableProxyRotation && len(c.ProxyList) == 0 {
		return ErrProxyRotationWithoutProxies
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.HostRateLimit < 0 || c.HostRateWindow < 0 {
		return ErrInvalidHostRateLimit
	}

	return nil
}

// LogTrustChoices emits warnings for explicitly trust-reducing settings.
// Called once at startup so the decision is visible in every run's logs.
func (c *Config) LogTrustChoices(logger *slog.Logger) {
	if !c.VerifySSL {
		logger.Warn("TLS certificate verification is disabled; connections can be intercepted")
	}
	if !c.RespectRobotsTxt {
		logger.Warn("robots.txt compliance is disabled")
	}
}
