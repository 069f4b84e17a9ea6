// Package crawler implements the crawl loop: the frontier that dedupes
// and bounds the URL space, HTML extraction of titles and links, and the
// engine that drives a bounded worker pool with politeness pacing,
// robots.txt compliance, and failure-based aborts.
//
// # Architecture
//
// The Engine coordinates the crawl. Workers pull tasks from the Frontier,
// a blocking FIFO with an embedded visited set, fetch them through the
// fetch.Controller, and feed discovered links back into the Frontier.
//
// Design decision: We implement our own crawl loop rather than using a
// third-party crawling framework because:
//  1. Anti-detection pacing needs tight control over request timing.
//  2. The frontier's dedupe-and-bound semantics are the core of the
//     program, not a detail to delegate.
//  3. Reduces external dependencies and potential security issues.
//
// # Components
//
//   - Engine: the worker pool, pacing, and lifecycle state machine
//   - Frontier: FIFO queue plus visited set with atomic check-and-mark
//   - Extract: HTML title, meta description, and link extraction
package crawler
