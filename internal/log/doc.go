// Package log provides a sanitizing slog handler for the crawler.
//
// Crawl logs routinely carry values that must not land in log files:
// proxy URLs with embedded credentials, session cookies from site
// configuration, and authorization headers. SecureHandler wraps any
// slog.Handler and redacts such attributes before they are written, so
// every logger in the process is safe by construction rather than by the
// discipline of each call site.
package log
