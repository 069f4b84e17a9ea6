package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/stealthcrawler/internal/model"
)

// JSONWriter outputs the page results as a JSON array.
// The array element shape (url, title, links, status_code, error,
// timestamp) is the machine-readable contract of the crawler, so this
// writer emits exactly the results without any wrapper.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = ""
		w.indentString = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the page results as a JSON array. The summary is not part
// of the array contract; use FullJSONWriter when it is wanted.
func (w *JSONWriter) Write(_ *model.CrawlSummary, results []*model.PageResult) (int, error) {
	if results == nil {
		results = []*model.PageResult{}
	}
	return w.writeJSON(results)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps the results with the crawl summary and version string.
//
// Design decision: We wrap rather than extending PageResult because the
// bare array is a contract other tools parse; contextual metadata lives
// in this optional envelope instead.
type JSONReport struct {
	// Version is the stealthcrawler version that generated this report.
	Version string `json:"version"`

	// Summary is the crawl-level statistics snapshot.
	Summary *model.CrawlSummary `json:"summary"`

	// Pages are the per-URL results.
	Pages []*model.PageResult `json:"pages"`
}

// FullJSONWriter outputs the summary and results with a metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the stealthcrawler version string.
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the wrapped report.
func (w *FullJSONWriter) Write(summary *model.CrawlSummary, results []*model.PageResult) (int, error) {
	if results == nil {
		results = []*model.PageResult{}
	}
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Summary: summary,
		Pages:   results,
	})
}
