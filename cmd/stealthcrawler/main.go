// Package main provides the entry point for the stealthcrawler CLI.
//
// stealthcrawler is a recursive web crawler with an anti-detection engine.
// It crawls a site from a seed URL while rotating browser identities,
// pacing requests, and routing traffic through validated proxies.
//
// Usage:
//
//	stealthcrawler crawl <url>
//	stealthcrawler history
//
// See --help for all available options.
package main

// main is the entry point for stealthcrawler.
func main() {
	Execute()
}
