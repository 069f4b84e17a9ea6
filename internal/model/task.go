package model

// CrawlTask is a single unit of work for the fetch pipeline: a URL paired
// with the depth at which it was discovered.
//
// Design decision: We keep tasks immutable (plain value, no setters)
// because:
//  1. Tasks cross goroutine boundaries between the frontier and workers
//  2. A task is consumed exactly once; there is nothing to update
//  3. Depth must reflect the discovery point, not later re-discoveries
type CrawlTask struct {
	// URL is the absolute, normalized URL to fetch.
	URL string

	// Depth is the distance from the seed URL. The seed itself is depth 0.
	Depth int
}
