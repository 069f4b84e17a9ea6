package model

import "time"

// PageResult records the outcome of exactly one dequeued CrawlTask.
// Both successful fetches and failures produce a PageResult, so the output
// is complete and deterministic from the visited set regardless of how
// individual URLs fared.
//
// The JSON field names url, title, links, status_code, error, and timestamp
// form the output contract consumed by downstream tooling; title,
// status_code, and error serialize as null when absent.
type PageResult struct {
	// URL is the URL this result describes.
	URL string `json:"url"`

	// Title is the page title from the <title> tag.
	// Nil for failures and non-HTML content.
	Title *string `json:"title"`

	// Links holds the outbound links in discovery order, deduplicated
	// within this page only. Cross-page deduplication is the frontier's job.
	Links []string `json:"links"`

	// StatusCode is the HTTP status code, or nil when no response was
	// received (timeout, connection failure, robots denial).
	StatusCode *int `json:"status_code"`

	// Error is the classified failure reason, or nil on success.
	Error *string `json:"error"`

	// Timestamp is the fetch start time as fractional epoch seconds.
	Timestamp float64 `json:"timestamp"`

	// MetaDescription is the content of <meta name="description">, if any.
	MetaDescription string `json:"meta_description,omitempty"`

	// ContentType is the response Content-Type header value.
	ContentType string `json:"content_type,omitempty"`

	// ContentLength is the number of body bytes read (post-limit).
	ContentLength int64 `json:"content_length,omitempty"`

	// ResponseTime is the wall-clock duration of the successful attempt
	// in seconds. Zero when no response was received.
	ResponseTime float64 `json:"response_time,omitempty"`

	// UserAgentUsed is the User-Agent header the final attempt presented.
	UserAgentUsed string `json:"user_agent_used,omitempty"`

	// ProxyUsed is the proxy endpoint of the final attempt, with any
	// credentials stripped. Empty when the request went direct.
	ProxyUsed string `json:"proxy_used,omitempty"`

	// RetryCount is the number of retry attempts performed after the
	// first attempt. Zero for first-attempt successes and terminal 4xx.
	RetryCount int `json:"retry_count,omitempty"`
}

// NewPageResult creates a PageResult for the given URL stamped with the
// current time. Callers fill in the outcome fields afterwards.
func NewPageResult(url string) *PageResult {
	return &PageResult{
		URL:       url,
		Links:     []string{},
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
}

// SetTitle sets the title, treating the empty string as absent.
func (p *PageResult) SetTitle(title string) {
	if title == "" {
		p.Title = nil
		return
	}
	p.Title = &title
}

// SetStatusCode records the HTTP status code of the final attempt.
func (p *PageResult) SetStatusCode(code int) {
	p.StatusCode = &code
}

// SetError records the classified failure reason.
func (p *PageResult) SetError(reason string) {
	p.Error = &reason
}

// Failed reports whether this result represents a failed fetch.
func (p *PageResult) Failed() bool {
	return p.Error != nil
}
