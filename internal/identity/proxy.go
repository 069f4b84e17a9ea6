package identity

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

// Proxy health thresholds.
const (
	// disableFailureRate is the failure rate above which a proxy is
	// disabled and excluded from selection.
	disableFailureRate = 0.5

	// disableMinSamples is the minimum number of attempts before the
	// failure rate is considered meaningful. Below it, a proxy is never
	// disabled: one fluke failure on a fresh proxy proves nothing.
	disableMinSamples = 5
)

// ProxyRecord tracks the health of a single proxy endpoint.
// All counters are owned by the ProxyMonitor and updated under its lock.
type ProxyRecord struct {
	// Endpoint is the proxy URL (http://, https://, or socks5://),
	// possibly carrying credentials in the userinfo component.
	Endpoint string

	// SuccessCount is the number of successful attempts through this proxy.
	SuccessCount int

	// FailureCount is the number of failed attempts through this proxy.
	FailureCount int

	// LastUsed is when this proxy last carried a request.
	LastUsed time.Time

	// Disabled marks the proxy as excluded from selection.
	Disabled bool
}

// FailureRate returns failures divided by total attempts, or 0 with no
// samples.
func (r *ProxyRecord) FailureRate() float64 {
	total := r.SuccessCount + r.FailureCount
	if total == 0 {
		return 0
	}
	return float64(r.FailureCount) / float64(total)
}

// ProxyMonitor owns the proxy pool and its health accounting.
// It is shared across fetch workers; every method is safe for concurrent
// use.
type ProxyMonitor struct {
	mu      sync.Mutex
	records map[string]*ProxyRecord

	// disabledTotal counts disable transitions for the stats aggregator.
	disabledTotal int
}

// NewProxyMonitor creates a monitor over the given proxy endpoints.
// Duplicate endpoints collapse into one record.
func NewProxyMonitor(endpoints []string) *ProxyMonitor {
	records := make(map[string]*ProxyRecord, len(endpoints))
	for _, ep := range endpoints {
		if ep == "" {
			continue
		}
		if _, ok := records[ep]; !ok {
			records[ep] = &ProxyRecord{Endpoint: ep}
		}
	}
	return &ProxyMonitor{records: records}
}

// Size returns the total number of tracked proxies, disabled included.
func (m *ProxyMonitor) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Select returns a uniformly chosen enabled proxy endpoint.
// It returns ErrNoAvailableProxy when the pool has proxies but all are
// disabled, and also when the pool is empty.
func (m *ProxyMonitor) Select() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	enabled := make([]string, 0, len(m.records))
	for ep, rec := range m.records {
		if !rec.Disabled {
			enabled = append(enabled, ep)
		}
	}
	if len(enabled) == 0 {
		return "", ErrNoAvailableProxy
	}

	chosen := enabled[rand.IntN(len(enabled))]
	m.records[chosen].LastUsed = time.Now()
	return chosen, nil
}

// Report records the outcome of one attempt through the given endpoint
// and disables the proxy if its failure rate crosses the threshold after
// the minimum sample count. It reports whether this call disabled the
// proxy. Endpoints the monitor does not track are ignored.
func (m *ProxyMonitor) Report(endpoint string, success bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[endpoint]
	if !ok {
		return false
	}

	if success {
		rec.SuccessCount++
	} else {
		rec.FailureCount++
	}

	total := rec.SuccessCount + rec.FailureCount
	if !rec.Disabled && total >= disableMinSamples && rec.FailureRate() > disableFailureRate {
		rec.Disabled = true
		m.disabledTotal++
		return true
	}
	return false
}

// ProbeFunc issues a lightweight request through the given proxy endpoint
// and returns an error if the proxy is not usable. The session package
// supplies the implementation; taking a function keeps this package free
// of HTTP client construction.
type ProbeFunc func(ctx context.Context, endpoint string) error

// Validate probes every proxy and disables the ones that fail.
// Intended as a pre-flight step before the crawl begins; it returns the
// number of proxies that passed.
func (m *ProxyMonitor) Validate(ctx context.Context, probe ProbeFunc) int {
	m.mu.Lock()
	endpoints := make([]string, 0, len(m.records))
	for ep, rec := range m.records {
		if !rec.Disabled {
			endpoints = append(endpoints, ep)
		}
	}
	m.mu.Unlock()

	passed := 0
	for _, ep := range endpoints {
		if ctx.Err() != nil {
			break
		}
		err := probe(ctx, ep)

		m.mu.Lock()
		rec := m.records[ep]
		if err != nil {
			if !rec.Disabled {
				rec.Disabled = true
				m.disabledTotal++
			}
		} else {
			passed++
		}
		m.mu.Unlock()
	}
	return passed
}

// Revalidate probes disabled proxies and re-enables the ones that pass,
// resetting their counters. Lets a pool recover from a transient outage
// without restarting the crawl.
func (m *ProxyMonitor) Revalidate(ctx context.Context, probe ProbeFunc) int {
	m.mu.Lock()
	disabled := make([]string, 0)
	for ep, rec := range m.records {
		if rec.Disabled {
			disabled = append(disabled, ep)
		}
	}
	m.mu.Unlock()

	recovered := 0
	for _, ep := range disabled {
		if ctx.Err() != nil {
			break
		}
		if probe(ctx, ep) != nil {
			continue
		}

		m.mu.Lock()
		rec := m.records[ep]
		rec.Disabled = false
		rec.SuccessCount = 0
		rec.FailureCount = 0
		m.mu.Unlock()
		recovered++
	}
	return recovered
}

// DisabledCount returns the number of disable transitions so far.
func (m *ProxyMonitor) DisabledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disabledTotal
}

// HealthReport is a point-in-time view of the proxy pool.
type HealthReport struct {
	// Enabled is true when proxy rotation is active for the crawl.
	Enabled bool `json:"proxy_rotation_enabled"`

	// TotalProxies is the pool size, disabled proxies included.
	TotalProxies int `json:"total_proxies"`

	// HealthyProxies is the number of currently enabled proxies.
	HealthyProxies int `json:"healthy_proxies"`

	// HealthPercentage is healthy/total as a percentage, 0 when empty.
	HealthPercentage float64 `json:"health_percentage"`

	// Records holds per-proxy counters, endpoints credential-redacted,
	// sorted by endpoint for stable output.
	Records []ProxyRecord `json:"records,omitempty"`
}

// Health returns a snapshot of the pool's health. The returned records
// are copies; mutating them does not affect the monitor.
func (m *ProxyMonitor) Health(redact func(string) string) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := HealthReport{
		Enabled:      true,
		TotalProxies: len(m.records),
	}

	for _, rec := range m.records {
		copied := *rec
		if redact != nil {
			copied.Endpoint = redact(copied.Endpoint)
		}
		report.Records = append(report.Records, copied)
		if !rec.Disabled {
			report.HealthyProxies++
		}
	}
	sort.Slice(report.Records, func(i, j int) bool {
		return report.Records[i].Endpoint < report.Records[j].Endpoint
	})

	if report.TotalProxies > 0 {
		report.HealthPercentage = float64(report.HealthyProxies) / float64(report.TotalProxies) * 100
	}
	return report
}
