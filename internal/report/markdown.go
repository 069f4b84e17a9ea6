package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/stealthcrawler/internal/model"
)

// MarkdownWriter outputs crawl reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full crawl report in Markdown format.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary, results []*model.PageResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeOutcome(md, summary)
	w.writeLatencies(md, summary)
	w.writeFailedPages(md, results)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed URL", "`" + summary.SeedURL + "`"},
			{"Run ID", "`" + summary.RunID + "`"},
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", summary.Duration.Round(time.Millisecond).String()},
			{"Status", statusText(summary)},
		},
	})
	md.PlainText("")
}

// writeOutcome writes the crawl outcome summary with a pie chart of
// successes versus failure categories.
func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Outcome Summary")
	md.PlainText("")

	rows := [][]string{
		{"Pages crawled", strconv.Itoa(summary.PagesCrawled)},
		{"HTTP requests", strconv.Itoa(summary.TotalRequests)},
		{"Successes", strconv.Itoa(summary.Successes)},
		{"Retries", strconv.Itoa(summary.Retries)},
		{"Session rotations", strconv.Itoa(summary.SessionRotations)},
		{"Proxies disabled", strconv.Itoa(summary.ProxiesDisabled)},
	}
	for _, category := range sortedCategories(summary.Failures) {
		rows = append(rows, []string{
			"Failures (" + category + ")",
			strconv.Itoa(summary.Failures[category]),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.PagesCrawled > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of the result distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.CrawlSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Result Distribution"),
		piechart.WithShowData(true),
	)

	if summary.Successes > 0 {
		chart.LabelAndIntValue("Success", uint64(summary.Successes))
	}
	for _, category := range sortedCategories(summary.Failures) {
		chart.LabelAndIntValue(category, uint64(summary.Failures[category]))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert reflecting how the crawl went.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.CrawlSummary) {
	failures := summary.PagesCrawled - summary.Successes
	switch {
	case summary.State == model.CrawlStateAborted:
		md.Cautionf("Crawl aborted: %s. Results are partial.", summary.AbortedReason)
	case summary.PagesCrawled > 0 && failures*2 > summary.PagesCrawled:
		md.Warningf(
			"More than half of all pages failed (%d of %d). The target may be blocking the crawler.",
			failures, summary.PagesCrawled,
		)
	case failures > 0:
		md.Notef("%d page(s) failed. See the failed pages table below.", failures)
	default:
		md.Tip("All pages fetched successfully.")
	}
	md.PlainText("")
}

// writeLatencies writes the response time distribution.
func (w *MarkdownWriter) writeLatencies(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Response Times")
	md.PlainText("")

	lat := summary.ResponseTimes
	if lat.Samples == 0 {
		md.PlainText("No responses were received.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Statistic", "Seconds"},
		Rows: [][]string{
			{"Samples", strconv.Itoa(lat.Samples)},
			{"Min", formatSeconds(lat.Min)},
			{"Max", formatSeconds(lat.Max)},
			{"Average", formatSeconds(lat.Average)},
			{"P50", formatSeconds(lat.P50)},
			{"P95", formatSeconds(lat.P95)},
		},
	})
	md.PlainText("")
}

// writeFailedPages writes a table of pages that produced errors.
func (w *MarkdownWriter) writeFailedPages(md *markdown.Markdown, results []*model.PageResult) {
	failed := model.FailedPages(results)
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")

	rows := make([][]string, len(failed))
	for i, r := range failed {
		status := "-"
		if r.StatusCode != nil {
			status = strconv.Itoa(*r.StatusCode)
		}
		rows[i] = []string{
			truncateString(r.URL, 60),
			status,
			truncateString(*r.Error, 50),
			strconv.Itoa(r.RetryCount),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Error", "Retries"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [stealthcrawler](https://github.com/nao1215/stealthcrawler)*")
}

// statusText returns a human-readable crawl status.
func statusText(summary *model.CrawlSummary) string {
	if summary.State == model.CrawlStateAborted {
		return fmt.Sprintf("Aborted (%s)", summary.AbortedReason)
	}
	return "Complete"
}

// sortedCategories returns failure category names in stable order.
func sortedCategories(failures map[string]int) []string {
	categories := make([]string, 0, len(failures))
	for category := range failures {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// formatSeconds renders a latency value with millisecond precision.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
