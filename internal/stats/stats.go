package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/nao1215/stealthcrawler/internal/model"
)

// Aggregator accumulates crawl counters and the response-time
// distribution. It is shared by every fetch worker; all methods are safe
// for concurrent use.
//
// Design decision: Snapshot returns a deep copy built under the lock, so
// the crawl can be inspected mid-run without readers ever observing a
// half-updated summary. Counters are monotonic for the crawl's duration
// and reset only by creating a new Aggregator for the next run.
type Aggregator struct {
	mu sync.Mutex

	startedAt     time.Time
	totalRequests int
	pagesCrawled  int
	successes     int
	failures      map[string]int
	retries       int
	responseTimes []float64 // seconds, in observation order
}

// NewAggregator creates an aggregator with the crawl clock started.
func NewAggregator() *Aggregator {
	return &Aggregator{
		startedAt: time.Now(),
		failures:  make(map[string]int),
	}
}

// RecordRequest counts one HTTP attempt, retries included.
func (a *Aggregator) RecordRequest() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalRequests++
}

// RecordRetry counts one retry attempt beyond a task's first attempt.
func (a *Aggregator) RecordRetry() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.retries++
}

// RecordResult counts one finished task. A non-empty failureCategory
// records a failure under that category; empty records a success.
func (a *Aggregator) RecordResult(failureCategory string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pagesCrawled++
	if failureCategory == "" {
		a.successes++
		return
	}
	a.failures[failureCategory]++
}

// RecordResponseTime feeds one observed response latency.
func (a *Aggregator) RecordResponseTime(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responseTimes = append(a.responseTimes, d.Seconds())
}

// PagesCrawled returns the number of finished tasks so far.
func (a *Aggregator) PagesCrawled() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pagesCrawled
}

// Snapshot produces a point-in-time CrawlSummary. The caller supplies the
// run identity and lifecycle state, which the engine owns; the engine also
// fills SessionRotations and ProxiesDisabled from the session manager and
// proxy monitor, which count those events authoritatively.
func (a *Aggregator) Snapshot(runID, seedURL string, state model.CrawlState, abortedReason string) model.CrawlSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	failures := make(map[string]int, len(a.failures))
	for k, v := range a.failures {
		failures[k] = v
	}

	return model.CrawlSummary{
		RunID:            runID,
		SeedURL:          seedURL,
		State:            state,
		AbortedReason:    abortedReason,
		StartedAt:        a.startedAt,
		Duration:         time.Since(a.startedAt),
		TotalRequests:    a.totalRequests,
		PagesCrawled:     a.pagesCrawled,
		Successes:        a.successes,
		Failures:         failures,
		Retries:          a.retries,
		ResponseTimes:    summarizeLatencies(a.responseTimes),
	}
}

// summarizeLatencies computes the distribution summary from raw samples.
func summarizeLatencies(samples []float64) model.LatencySummary {
	if len(samples) == 0 {
		return model.LatencySummary{}
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}

	return model.LatencySummary{
		Samples: len(sorted),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Average: sum / float64(len(sorted)),
		P50:     percentile(sorted, 0.50),
		P95:     percentile(sorted, 0.95),
	}
}

// percentile returns the nearest-rank percentile of sorted samples.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
