package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/stealthcrawler/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// verbose enables the per-page listing in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with the per-page listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl report in human-readable format.
func (w *SimpleWriter) Write(summary *model.CrawlSummary, results []*model.PageResult) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeOutcome(&sb, summary)
	w.writeLatencies(&sb, summary)
	if w.verbose {
		w.writePages(&sb, results)
	} else {
		w.writeFailedPages(&sb, results)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed URL:       %s\n", summary.SeedURL)
	fmt.Fprintf(sb, "Run ID:         %s\n", summary.RunID)
	fmt.Fprintf(sb, "Started:        %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", summary.Duration.Round(time.Millisecond))

	if summary.State == model.CrawlStateAborted {
		fmt.Fprintf(sb, "Status:         ABORTED - %s (partial results)\n", summary.AbortedReason)
	} else {
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")
}

// writeOutcome writes the crawl outcome counters.
func (w *SimpleWriter) writeOutcome(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("OUTCOME\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Pages crawled:     %d\n", summary.PagesCrawled)
	fmt.Fprintf(sb, "  HTTP requests:     %d\n", summary.TotalRequests)
	fmt.Fprintf(sb, "  Successes:         %d\n", summary.Successes)
	fmt.Fprintf(sb, "  Retries:           %d\n", summary.Retries)
	fmt.Fprintf(sb, "  Session rotations: %d\n", summary.SessionRotations)
	fmt.Fprintf(sb, "  Proxies disabled:  %d\n", summary.ProxiesDisabled)

	if len(summary.Failures) > 0 {
		sb.WriteString("\n  Failures by category:\n")
		for _, category := range sortedCategories(summary.Failures) {
			fmt.Fprintf(sb, "    %-18s %d\n", category+":", summary.Failures[category])
		}
	}
	sb.WriteString("\n")
}

// writeLatencies writes the response time distribution.
func (w *SimpleWriter) writeLatencies(sb *strings.Builder, summary *model.CrawlSummary) {
	lat := summary.ResponseTimes
	if lat.Samples == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RESPONSE TIMES (seconds)\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  min %s / avg %s / p50 %s / p95 %s / max %s\n",
		formatSeconds(lat.Min), formatSeconds(lat.Average),
		formatSeconds(lat.P50), formatSeconds(lat.P95), formatSeconds(lat.Max))
	sb.WriteString("\n")
}

// writeFailedPages lists pages that produced errors.
func (w *SimpleWriter) writeFailedPages(sb *strings.Builder, results []*model.PageResult) {
	failed := model.FailedPages(results)
	if len(failed) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILED PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range failed {
		fmt.Fprintf(sb, "  [x] %s\n      %s\n", r.URL, *r.Error)
	}
	sb.WriteString("\n")
}

// writePages lists every page result.
func (w *SimpleWriter) writePages(sb *strings.Builder, results []*model.PageResult) {
	if len(results) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range results {
		if r.Failed() {
			fmt.Fprintf(sb, "  [x] %s\n      %s\n", r.URL, *r.Error)
			continue
		}
		title := ""
		if r.Title != nil {
			title = " - " + *r.Title
		}
		fmt.Fprintf(sb, "  [+] %s%s (%d links)\n", r.URL, title, len(r.Links))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by stealthcrawler\n")
	sb.WriteString("https://github.com/nao1215/stealthcrawler\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
