package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nao1215/stealthcrawler/internal/delay"
	"github.com/nao1215/stealthcrawler/internal/fetch"
	"github.com/nao1215/stealthcrawler/internal/identity"
	"github.com/nao1215/stealthcrawler/internal/model"
	"github.com/nao1215/stealthcrawler/internal/robots"
	"github.com/nao1215/stealthcrawler/internal/session"
	"github.com/nao1215/stealthcrawler/internal/stats"
)

// consecutiveFailureLimit aborts the crawl when this many fetches fail in
// a row. A wall of failures means the crawler is blocked or the target is
// down; continuing just hammers a site that said no.
const consecutiveFailureLimit = 10

// robotsBlockedCategory is the failure category for URLs the compliance
// gate refused. Such URLs are never fetched but still produce a result.
const robotsBlockedCategory = "robots_blocked"

// Options bound one crawl run.
type Options struct {
	// RunID identifies this run in summaries and storage.
	RunID string

	// Concurrency is the worker pool size.
	Concurrency int

	// MaxPages caps the number of PageResults produced.
	MaxPages int

	// HostRateLimit and HostRateWindow optionally cap per-host request
	// rates on top of the delay policy. Zero disables the ceiling.
	HostRateLimit  int
	HostRateWindow time.Duration
}

// Engine drives a crawl: it feeds frontier tasks to a bounded worker
// pool, paces every fetch, and collects exactly one PageResult per
// dequeued task.
//
// Design decision: Workers pull directly from the blocking frontier
// rather than going through a dispatcher goroutine because:
//  1. The frontier already knows when the crawl is drained, so workers
//     can exit on a simple ok=false.
//  2. No channel sizing questions; backpressure is the frontier queue.
//  3. errgroup still bounds the pool and propagates nothing but panics,
//     since per-page failures are results, not errors.
type Engine struct {
	frontier   *Frontier
	controller *fetch.Controller
	gate       *robots.Gate
	policy     *delay.Policy
	sessions   *session.Manager
	monitor    *identity.ProxyMonitor
	agg        *stats.Aggregator
	logger     *slog.Logger
	opts       Options

	limiters *hostLimiters
	seedURL  string

	mu            sync.Mutex
	results       []*model.PageResult
	state         model.CrawlState
	abortedReason string
}

// NewEngine assembles a crawl engine. monitor may be nil when proxy
// rotation is disabled.
func NewEngine(
	frontier *Frontier,
	controller *fetch.Controller,
	gate *robots.Gate,
	policy *delay.Policy,
	sessions *session.Manager,
	monitor *identity.ProxyMonitor,
	agg *stats.Aggregator,
	logger *slog.Logger,
	seedURL string,
	opts Options,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		frontier:   frontier,
		controller: controller,
		gate:       gate,
		policy:     policy,
		sessions:   sessions,
		monitor:    monitor,
		agg:        agg,
		logger:     logger,
		seedURL:    seedURL,
		opts:       opts,
		limiters:   newHostLimiters(opts.HostRateLimit, opts.HostRateWindow),
		state:      model.CrawlStateInitialized,
	}
}

// Run executes the crawl to completion and returns the summary with all
// page results. It ends when the frontier drains, the page budget is
// reached, the context is cancelled, or the consecutive-failure guard
// trips. In-flight tasks always finish and report their results.
func (e *Engine) Run(ctx context.Context) (model.CrawlSummary, []*model.PageResult) {
	e.setState(model.CrawlStateRunning, "")
	e.logger.Info("crawl started",
		slog.String("run_id", e.opts.RunID),
		slog.String("seed", e.seedURL),
		slog.Int("concurrency", e.opts.Concurrency))

	// A cancelled context must release workers blocked on the frontier.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			e.frontier.Close()
		case <-watchDone:
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(e.opts.Concurrency)
	for i := 0; i < e.opts.Concurrency; i++ {
		g.Go(func() error {
			e.worker(ctx)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers only return nil
	close(watchDone)

	state, reason := e.finalState(ctx)
	e.setState(state, reason)

	summary := e.agg.Snapshot(e.opts.RunID, e.seedURL, state, reason)
	summary.SessionRotations = e.sessions.Rotations()
	if e.monitor != nil {
		summary.ProxiesDisabled = e.monitor.DisabledCount()
	}

	e.logger.Info("crawl finished",
		slog.String("run_id", e.opts.RunID),
		slog.String("state", string(state)),
		slog.Int("pages", summary.PagesCrawled),
		slog.Duration("duration", summary.Duration))

	e.mu.Lock()
	defer e.mu.Unlock()
	return summary, e.results
}

// State returns the current lifecycle state and abort reason.
func (e *Engine) State() (model.CrawlState, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.abortedReason
}

// worker processes frontier tasks until the crawl is over.
func (e *Engine) worker(ctx context.Context) {
	for {
		task, ok := e.frontier.Dequeue()
		if !ok {
			return
		}
		e.process(ctx, task)
		e.frontier.Done()
	}
}

// process handles one dequeued task and always records one PageResult.
func (e *Engine) process(ctx context.Context, task model.CrawlTask) {
	if !e.gate.Allowed(ctx, task.URL) {
		result := model.NewPageResult(task.URL)
		result.SetError(robotsBlockedCategory + ": disallowed by robots.txt")
		e.agg.RecordResult(robotsBlockedCategory)
		e.logger.Debug("robots.txt disallowed", slog.String("url", task.URL))
		e.record(result)
		return
	}

	if err := e.pace(ctx, task.URL); err != nil {
		// Cancelled mid-wait. The task was dequeued, so it still gets
		// its result.
		result := model.NewPageResult(task.URL)
		result.SetError(fetch.KindConnection + ": crawl cancelled")
		e.agg.RecordResult(fetch.KindConnection)
		e.record(result)
		return
	}

	result, fetchErr := e.controller.Fetch(ctx, task)
	budgetLeft := e.record(result)

	if errors.Is(fetchErr, identity.ErrNoAvailableProxy) {
		// Mandated proxy rotation with nothing left to rotate to.
		// Grinding through the frontier would fail every remaining URL.
		e.abort("proxy pool exhausted")
		return
	}

	if result.Failed() {
		if e.policy.ConsecutiveFailures() >= consecutiveFailureLimit {
			e.abort("too many consecutive failures")
			return
		}
	}

	if !budgetLeft {
		e.frontier.Close()
		return
	}

	for _, link := range result.Links {
		e.frontier.Enqueue(link, task.Depth+1)
	}
}

// pace waits out the politeness delay before a fetch: the larger of the
// delay policy's wait and the host's robots.txt crawl-delay, then the
// per-host rate ceiling when configured.
func (e *Engine) pace(ctx context.Context, rawURL string) error {
	wait := e.policy.Next()

	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if crawlDelay := e.gate.CrawlDelay(u.Hostname()); crawlDelay > wait {
		wait = crawlDelay
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if limiter := e.limiters.get(u.Hostname()); limiter != nil {
		return limiter.Wait(ctx)
	}
	return nil
}

// record appends a result and reports whether the page budget still has
// room afterwards.
func (e *Engine) record(result *model.PageResult) (budgetLeft bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append(e.results, result)
	return len(e.results) < e.opts.MaxPages
}

// abort stops the crawl early, keeping the first reason.
func (e *Engine) abort(reason string) {
	e.mu.Lock()
	if e.abortedReason == "" {
		e.abortedReason = reason
	}
	e.mu.Unlock()

	e.logger.Warn("crawl aborted", slog.String("reason", reason))
	e.frontier.Close()
}

// finalState determines how the crawl ended.
func (e *Engine) finalState(ctx context.Context) (model.CrawlState, string) {
	e.mu.Lock()
	reason := e.abortedReason
	e.mu.Unlock()

	if reason != "" {
		return model.CrawlStateAborted, reason
	}
	if ctx.Err() != nil {
		return model.CrawlStateAborted, "cancelled"
	}
	return model.CrawlStateCompleted, ""
}

// setState transitions the lifecycle state.
func (e *Engine) setState(state model.CrawlState, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.abortedReason = reason
}

// hostLimiters hands out one rate.Limiter per host. A nil registry (rate
// limiting disabled) always returns nil limiters.
type hostLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

// newHostLimiters builds a registry allowing requests per window for each
// host, or a disabled registry when requests is zero.
func newHostLimiters(requests int, window time.Duration) *hostLimiters {
	if requests <= 0 || window <= 0 {
		return &hostLimiters{}
	}
	return &hostLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(requests) / window.Seconds()),
	}
}

// get returns the limiter for a host, or nil when disabled.
func (h *hostLimiters) get(host string) *rate.Limiter {
	if h.limiters == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(h.limit, 1)
		h.limiters[host] = limiter
	}
	return limiter
}
