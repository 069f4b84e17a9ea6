// Package identity assembles the request identity presented to target
// servers: the User-Agent string, the surrounding headers, and the proxy
// the request travels through.
//
// # Components
//
//   - Pool: selects a fresh Identity per request or session
//   - ProxyMonitor: tracks per-proxy health and disables degraded proxies
//   - header randomization: varies Accept, Accept-Language, DNT, and the
//     presence of optional headers while keeping values internally
//     consistent
//
// # Proxy health
//
// Every attempt through a proxy is reported back to the monitor. A proxy
// whose failure rate crosses the threshold after a minimum number of
// samples is disabled and excluded from selection; a one-off fluke on a
// fresh proxy never disables it. When rotation is enabled and every proxy
// is disabled, selection fails with ErrNoAvailableProxy rather than
// silently crawling direct, because the operator mandated proxies.
package identity
