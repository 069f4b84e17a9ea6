// Package delay computes the pacing between requests.
//
// Four strategies share one Policy type: fixed, random, exponential
// backoff on consecutive failures, and an adaptive strategy that reacts
// to observed server latency. The policy only decides how long to wait;
// actually waiting (and combining the wait with robots.txt crawl-delay)
// is the crawl engine's job.
package delay
