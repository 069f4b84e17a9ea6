// Package stats accumulates crawl statistics: request and retry counters,
// failure counts by category, session rotations, proxy disables, and the
// response-time distribution. A single Aggregator is shared by all fetch
// workers and snapshotted into a model.CrawlSummary at any point.
package stats
