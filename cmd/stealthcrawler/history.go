package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nao1215/stealthcrawler/internal/config"
	"github.com/nao1215/stealthcrawler/internal/database"
	"github.com/nao1215/stealthcrawler/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
// This command inspects past crawl runs stored in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Inspect past crawl runs",
		Long: `History lists crawl runs recorded in the database and replays their reports.

Without arguments it lists all recorded runs, newest first. With a run ID it
prints the full report for that run, in the same formats the crawl command
supports.

Examples:
  # List all recorded runs
  stealthcrawler history

  # List runs for a specific seed URL
  stealthcrawler history --seed https://example.com

  # Show the full report for a run
  stealthcrawler history 3f1c9a52-8d9e-4f0b-9c11-2a6f4be0d7aa

  # Show a past run as JSON page results
  stealthcrawler history --json 3f1c9a52-8d9e-4f0b-9c11-2a6f4be0d7aa

  # Show a past run as a full JSON report with metadata
  stealthcrawler history --full 3f1c9a52-8d9e-4f0b-9c11-2a6f4be0d7aa`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("seed", "s", "",
		"List only runs for this seed URL")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON page results (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("full", false,
		"Output the full JSON report with summary and metadata")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	seedFilter, err := cmd.Flags().GetString("seed")
	if err != nil {
		return err
	}

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	fullOut, err := cmd.Flags().GetBool("full")
	if err != nil {
		return err
	}

	formats := 0
	for _, set := range []bool{jsonOut, markdownOut, fullOut} {
		if set {
			formats++
		}
	}
	if formats > 1 {
		return errors.New("--json, --markdown, and --full are mutually exclusive")
	}

	// Use XDG data directory for database
	dbDir := config.XDGDataDir()

	// History never creates the database; an absent file means no runs yet.
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("no crawl history found (run a crawl first): %w", err)
	}
	defer db.Close()

	if len(args) == 1 {
		return showRun(cmd.Context(), cmd.OutOrStdout(), db, args[0], jsonOut, markdownOut, fullOut)
	}
	return listRuns(cmd.Context(), cmd.OutOrStdout(), db, seedFilter)
}

// listRuns prints the recorded runs, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, seedFilter string) error {
	runs, err := db.ListRuns(ctx, seedFilter)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded crawl runs.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSEED URL\tSTATE\tPAGES\tSTARTED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			run.RunID,
			run.SeedURL,
			run.State,
			run.PagesCrawled,
			run.StartedAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}

// showRun replays the stored report for one run.
func showRun(ctx context.Context, out io.Writer, db *database.CrawlDB, runID string, jsonOut, markdownOut, fullOut bool) error {
	summary, err := db.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if summary == nil {
		return fmt.Errorf("run not found: %s", runID)
	}

	results, err := db.GetRunResults(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run results: %w", err)
	}

	if fullOut {
		writer := report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
		_, err := writer.Write(summary, results)
		return err
	}
	if jsonOut {
		writer := report.NewJSONWriter(out, report.WithPrettyPrint())
		_, err := writer.Write(summary, results)
		return err
	}
	if markdownOut {
		writer := report.NewMarkdownWriter(out)
		_, err := writer.Write(summary, results)
		return err
	}

	writer := report.NewSimpleWriter(out, report.WithVerbose(true))
	_, err = writer.Write(summary, results)
	return err
}
