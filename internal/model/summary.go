package model

import "time"

// CrawlState describes the lifecycle of a crawl run.
type CrawlState string

// Crawl lifecycle states. A crawl moves from initialized to running and
// ends in exactly one of completed or aborted.
const (
	// CrawlStateInitialized means the frontier holds only the seed.
	CrawlStateInitialized CrawlState = "initialized"

	// CrawlStateRunning means workers are actively fetching.
	CrawlStateRunning CrawlState = "running"

	// CrawlStateCompleted means the frontier drained or the page budget
	// was reached and all in-flight tasks finished.
	CrawlStateCompleted CrawlState = "completed"

	// CrawlStateAborted means the crawl stopped early: operator cancel,
	// or the consecutive-failure guard tripped.
	CrawlStateAborted CrawlState = "aborted"
)

// CrawlSummary is a point-in-time view of a crawl's progress, produced by
// the statistics aggregator. It never shares mutable state with the
// aggregator; every snapshot is an independent copy.
type CrawlSummary struct {
	// RunID identifies the crawl run. UUID, assigned at start.
	RunID string `json:"run_id"`

	// SeedURL is the crawl's starting point.
	SeedURL string `json:"seed_url"`

	// State is the crawl lifecycle state at snapshot time.
	State CrawlState `json:"state"`

	// AbortedReason explains an aborted state. Empty otherwise.
	AbortedReason string `json:"aborted_reason,omitempty"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the elapsed crawl time at snapshot.
	Duration time.Duration `json:"duration"`

	// TotalRequests counts every HTTP attempt, including retries.
	TotalRequests int `json:"total_requests"`

	// PagesCrawled counts dequeued tasks that produced a PageResult.
	PagesCrawled int `json:"pages_crawled"`

	// Successes counts results without an error.
	Successes int `json:"successes"`

	// Failures counts results with an error, keyed by failure category.
	Failures map[string]int `json:"failures"`

	// Retries counts retry attempts beyond each task's first attempt.
	Retries int `json:"retries"`

	// SessionRotations counts identity/connection-pool replacements.
	SessionRotations int `json:"session_rotations"`

	// ProxiesDisabled counts proxies removed by the health monitor.
	ProxiesDisabled int `json:"proxies_disabled"`

	// ResponseTimes summarizes observed response latencies.
	ResponseTimes LatencySummary `json:"response_times"`
}

// LatencySummary describes the distribution of response times in seconds.
type LatencySummary struct {
	// Samples is the number of observed response times.
	Samples int `json:"samples"`

	// Min is the fastest observed response.
	Min float64 `json:"min"`

	// Max is the slowest observed response.
	Max float64 `json:"max"`

	// Average is the arithmetic mean.
	Average float64 `json:"average"`

	// P50 is the median response time.
	P50 float64 `json:"p50"`

	// P95 is the 95th percentile response time.
	P95 float64 `json:"p95"`
}

// FailedPages filters results down to the failures.
func FailedPages(results []*PageResult) []*PageResult {
	failed := make([]*PageResult, 0)
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// SuccessfulPages filters results down to the successes.
func SuccessfulPages(results []*PageResult) []*PageResult {
	ok := make([]*PageResult, 0)
	for _, r := range results {
		if !r.Failed() {
			ok = append(ok, r)
		}
	}
	return ok
}
