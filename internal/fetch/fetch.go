// Package fetch performs single-page retrieval with retry control.
// It turns one crawl task into exactly one PageResult, classifying every
// failure and retrying only the transient ones.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/stealthcrawler/internal/delay"
	"github.com/nao1215/stealthcrawler/internal/identity"
	"github.com/nao1215/stealthcrawler/internal/log"
	"github.com/nao1215/stealthcrawler/internal/model"
	"github.com/nao1215/stealthcrawler/internal/session"
	"github.com/nao1215/stealthcrawler/internal/stats"
)

// rateLimitEscalation is the factor applied to the delay policy when a
// server answers 429. The escalation is permanent for the crawl; servers
// that rate limit once will do so again.
const rateLimitEscalation = 1.5

// ExtractFunc parses an HTML body fetched from base into a title, a meta
// description, and absolute outbound links.
type ExtractFunc func(base *url.URL, body []byte) (title, metaDescription string, links []string, err error)

// Options bound the retry and body-read behavior of a Controller.
type Options struct {
	// MaxRetries is the retry budget per URL beyond the first attempt.
	MaxRetries int

	// BackoffBase is the base wait between attempts. The wait before
	// retry n is BackoffBase * 2^(n-1).
	BackoffBase time.Duration

	// MaxBodySize caps the number of body bytes read per page.
	MaxBodySize int64
}

// Controller fetches pages through the session manager with bounded
// retries. It is shared by all crawl workers and safe for concurrent use.
//
// Design decision: The controller owns the full retry loop rather than
// leaving retries to the engine because:
//  1. Retry decisions depend on failure classification, which only the
//     layer seeing the raw transport error can do.
//  2. The invariant "one PageResult per task" is easiest to hold when one
//     function produces that result.
//  3. The final-retry session rotation is a fetch concern: it exists to
//     shed a possibly burned identity, not to schedule work.
type Controller struct {
	sessions *session.Manager
	policy   *delay.Policy
	monitor  *identity.ProxyMonitor
	agg      *stats.Aggregator
	extract  ExtractFunc
	logger   *slog.Logger
	opts     Options
}

// NewController creates a fetch controller. monitor may be nil when proxy
// rotation is disabled; extract may be nil to skip HTML parsing.
func NewController(sessions *session.Manager, policy *delay.Policy, monitor *identity.ProxyMonitor, agg *stats.Aggregator, extract ExtractFunc, logger *slog.Logger, opts Options) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessions: sessions,
		policy:   policy,
		monitor:  monitor,
		agg:      agg,
		extract:  extract,
		logger:   logger,
		opts:     opts,
	}
}

// Fetch retrieves one URL and always returns a PageResult, successful or
// not. Transient failures (timeout, connection error, 429, 5xx) are
// retried up to MaxRetries times with exponential backoff; before the
// final retry the session is force-rotated to present a fresh identity.
// Client errors, TLS failures, and parse failures are terminal.
//
// A non-nil error is fatal to the whole crawl, not just this URL: the
// proxy pool is exhausted while proxy rotation was mandated. The result
// is still valid and must be recorded before the caller aborts.
func (c *Controller) Fetch(ctx context.Context, task model.CrawlTask) (*model.PageResult, error) {
	result := model.NewPageResult(task.URL)

	var lastKind, lastMsg string
	attempts := c.opts.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.agg.RecordRetry()
			result.RetryCount++
			if err := c.sleepBackoff(ctx, attempt-1); err != nil {
				break
			}
			if attempt == attempts-1 {
				// Last chance for this URL. A fresh session sheds an
				// identity the server may have started blocking.
				if err := c.sessions.ForceRotate(); err != nil {
					c.logger.Warn("forced session rotation failed",
						slog.String("url", task.URL), slog.String("error", err.Error()))
				}
			}
			c.logger.Debug("retrying fetch",
				slog.String("url", task.URL),
				slog.Int("attempt", attempt),
				slog.String("reason", lastKind))
		}

		kind, msg, done, fatal := c.attempt(ctx, task.URL, result)
		if done {
			return result, fatal
		}
		lastKind, lastMsg = kind, msg

		if ctx.Err() != nil {
			break
		}
	}

	if lastKind == "" {
		lastKind, lastMsg = KindConnection, "crawl cancelled"
	}
	result.SetError(lastKind + ": " + lastMsg)
	c.agg.RecordResult(lastKind)
	return result, nil
}

// attempt performs one HTTP attempt. done=true means the result is final,
// successful or not; done=false returns the failure for the retry loop.
// fatal carries proxy pool exhaustion up to the caller.
func (c *Controller) attempt(ctx context.Context, rawURL string, result *model.PageResult) (kind, msg string, done bool, fatal error) {
	sess, err := c.sessions.Acquire()
	if err != nil {
		result.SetError(KindConnection + ": " + err.Error())
		c.agg.RecordResult(KindConnection)
		if errors.Is(err, identity.ErrNoAvailableProxy) {
			// Every proxy is health-disabled and rotation was mandated.
			// No later task can fare better, so the crawl must stop.
			return "", "", true, err
		}
		return "", "", true, nil
	}
	result.UserAgentUsed = sess.Identity.UserAgent
	if sess.Identity.Proxy != "" {
		result.ProxyUsed = log.RedactProxy(sess.Identity.Proxy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		result.SetError(KindConnection + ": " + err.Error())
		c.agg.RecordResult(KindConnection)
		return "", "", true, nil
	}

	c.agg.RecordRequest()
	start := time.Now()
	resp, err := sess.Client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		failKind := classifyErr(err)
		c.reportProxy(sess.Identity.Proxy, false)
		c.policy.Observe(elapsed, false)
		if retryableKind(failKind) {
			return failKind, err.Error(), false, nil
		}
		result.SetError(failKind + ": " + err.Error())
		c.agg.RecordResult(failKind)
		return "", "", true, nil
	}
	defer resp.Body.Close() //nolint:errcheck // response body close failure is harmless here

	result.SetStatusCode(resp.StatusCode)
	result.ResponseTime = elapsed.Seconds()
	result.ContentType = resp.Header.Get("Content-Type")
	c.agg.RecordResponseTime(elapsed)
	// The proxy did its job if any response came back; server-side status
	// codes say nothing about proxy health.
	c.reportProxy(sess.Identity.Proxy, true)
	c.policy.Observe(elapsed, resp.StatusCode < 400)

	if resp.StatusCode == http.StatusTooManyRequests {
		c.policy.Escalate(rateLimitEscalation)
		c.logger.Warn("rate limited, escalating delays", slog.String("url", rawURL))
	}

	if resp.StatusCode >= 400 {
		statusMsg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if retryableStatus(resp.StatusCode) {
			// Drain so the connection can be reused for the retry.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.opts.MaxBodySize))
			return KindHTTP, statusMsg, false, nil
		}
		result.SetError(KindHTTP + ": " + statusMsg)
		c.agg.RecordResult(KindHTTP)
		return "", "", true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodySize))
	if err != nil {
		failKind := classifyErr(err)
		if retryableKind(failKind) {
			return failKind, err.Error(), false, nil
		}
		result.SetError(failKind + ": " + err.Error())
		c.agg.RecordResult(failKind)
		return "", "", true, nil
	}
	result.ContentLength = int64(len(body))

	if c.extract != nil && isHTML(result.ContentType) {
		base, parseErr := url.Parse(rawURL)
		if parseErr != nil {
			result.SetError(KindParsing + ": " + parseErr.Error())
			c.agg.RecordResult(KindParsing)
			return "", "", true, nil
		}
		title, desc, links, extractErr := c.extract(base, body)
		if extractErr != nil {
			result.SetError(KindParsing + ": " + extractErr.Error())
			c.agg.RecordResult(KindParsing)
			return "", "", true, nil
		}
		result.SetTitle(title)
		result.MetaDescription = desc
		result.Links = links
	}

	c.agg.RecordResult("")
	return "", "", true, nil
}

// reportProxy feeds the attempt outcome to the proxy health monitor.
func (c *Controller) reportProxy(endpoint string, success bool) {
	if c.monitor == nil || endpoint == "" {
		return
	}
	if disabled := c.monitor.Report(endpoint, success); disabled {
		c.logger.Warn("proxy disabled by health monitor",
			slog.String("proxy", log.RedactProxy(endpoint)))
	}
}

// sleepBackoff waits BackoffBase * 2^attempt or until ctx is cancelled.
func (c *Controller) sleepBackoff(ctx context.Context, attempt int) error {
	if attempt > 30 {
		attempt = 30
	}
	wait := c.opts.BackoffBase << uint(attempt)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isHTML reports whether a Content-Type header denotes an HTML document.
func isHTML(contentType string) bool {
	if contentType == "" {
		// Servers that omit Content-Type usually serve HTML.
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(contentType), "text/html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
