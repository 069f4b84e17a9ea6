package config

import "errors"

// Configuration validation errors returned by Config.Validate.
//
// Design decision: Package-level sentinel errors rather than fmt.Errorf at
// each call site, so callers can branch with errors.Is while users still
// get a human-readable message. None of these messages need dynamic values.
var (
	// ErrNoSeedURL is returned when no seed URL was provided.
	ErrNoSeedURL = errors.New("no seed URL specified: provide a starting URL as the first argument")

	// ErrInvalidSeedURL is returned when the seed URL is not an absolute
	// http or https URL. The seed gets no special leniency: if it would
	// be rejected as a discovered link, it is rejected as a seed.
	ErrInvalidSeedURL = errors.New("invalid seed URL: must be an absolute http(s) URL")

	// ErrInvalidMaxDepth is returned for a negative crawl depth.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned for a non-positive page budget.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidDelayStrategy is returned for an unrecognized strategy name.
	ErrInvalidDelayStrategy = errors.New("invalid delay strategy: must be one of fixed, random, exponential, adaptive")

	// ErrInvalidDelayRange is returned when min/max delays are negative
	// or inverted.
	ErrInvalidDelayRange = errors.New("invalid delay range: min must be non-negative and max must not be below min")

	// ErrInvalidSessionRotation is returned for a non-positive rotation
	// interval. Rotating every zero requests is meaningless.
	ErrInvalidSessionRotation = errors.New("invalid session rotation interval: must be positive")

	// ErrInvalidMaxRetries is returned for a negative retry budget.
	// Zero is valid and disables retries entirely.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidRetryBackoff is returned for a non-positive backoff base.
	ErrInvalidRetryBackoff = errors.New("invalid retry backoff base: must be positive")

	// ErrInvalidTimeout is returned for a non-positive request timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned for a non-positive worker count.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned for a negative body size limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrProxyRotationWithoutProxies is returned when proxy rotation is
	// requested but the proxy list is empty. Falling back to direct
	// connections would defeat the explicitly requested protection.
	ErrProxyRotationWithoutProxies = errors.New("proxy rotation enabled but no proxies configured")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are requested.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidHostRateLimit is returned for negative host rate settings.
	ErrInvalidHostRateLimit = errors.New("invalid host rate limit: requests and window must be non-negative")
)
