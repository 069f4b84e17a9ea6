package identity

import "errors"

// Identity selection errors.
var (
	// ErrNoAvailableProxy is returned when proxy rotation is enabled but
	// every proxy in the pool is disabled. This is propagated, never
	// bypassed: crawling without a proxy when rotation was explicitly
	// requested would be a correctness violation, not a fallback.
	ErrNoAvailableProxy = errors.New("no available proxy: all proxies in the pool are disabled")
)
