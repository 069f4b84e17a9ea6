package database

import (
	"context"
	"testing"
	"time"

	"github.com/nao1215/stealthcrawler/internal/model"
)

func openTestDB(t *testing.T) *CrawlDB {
	t.Helper()
	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db
}

func testSummary(runID string) *model.CrawlSummary {
	return &model.CrawlSummary{
		RunID:        runID,
		SeedURL:      "https://example.com/",
		State:        model.CrawlStateCompleted,
		StartedAt:    time.Now().UTC(),
		PagesCrawled: 2,
		Successes:    1,
		Failures:     map[string]int{"timeout": 1},
	}
}

func testResults() []*model.PageResult {
	ok := model.NewPageResult("https://example.com/")
	ok.SetTitle("Home")
	ok.SetStatusCode(200)

	failed := model.NewPageResult("https://example.com/slow")
	failed.SetError("timeout: context deadline exceeded")
	return []*model.PageResult{ok, failed}
}

func TestCrawlDBSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveRun(ctx, testSummary("run-1"), testResults()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil for a stored run")
	}
	if got.SeedURL != "https://example.com/" {
		t.Errorf("SeedURL = %q, want https://example.com/", got.SeedURL)
	}
	if got.Failures["timeout"] != 1 {
		t.Errorf("Failures[timeout] = %d, want 1", got.Failures["timeout"])
	}

	missing, err := db.GetRun(ctx, "no-such-run")
	if err != nil {
		t.Fatalf("GetRun(missing): %v", err)
	}
	if missing != nil {
		t.Error("GetRun returned a summary for an unknown run")
	}
}

func TestCrawlDBGetRunResults(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveRun(ctx, testSummary("run-2"), testResults()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	results, err := db.GetRunResults(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetRunResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].URL != "https://example.com/" {
		t.Errorf("results[0].URL = %q, want the seed first", results[0].URL)
	}
	if results[0].Title == nil || *results[0].Title != "Home" {
		t.Errorf("results[0].Title = %v, want Home", results[0].Title)
	}
	if results[1].Error == nil {
		t.Error("results[1].Error = nil, want the stored failure")
	}
}

func TestCrawlDBSaveRunTwice(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	summary := testSummary("run-3")
	if err := db.SaveRun(ctx, summary, testResults()); err != nil {
		t.Fatalf("first SaveRun: %v", err)
	}

	summary.State = model.CrawlStateAborted
	summary.AbortedReason = "cancelled"
	if err := db.SaveRun(ctx, summary, testResults()); err != nil {
		t.Fatalf("second SaveRun: %v", err)
	}

	got, err := db.GetRun(ctx, "run-3")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.State != model.CrawlStateAborted {
		t.Errorf("State = %s, want aborted after upsert", got.State)
	}

	results, err := db.GetRunResults(ctx, "run-3")
	if err != nil {
		t.Fatalf("GetRunResults: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d after upsert, want 2", len(results))
	}
}

func TestCrawlDBListRuns(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	first := testSummary("run-a")
	first.StartedAt = time.Now().UTC().Add(-time.Hour)
	if err := db.SaveRun(ctx, first, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	second := testSummary("run-b")
	second.SeedURL = "https://other.com/"
	if err := db.SaveRun(ctx, second, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	all, err := db.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListRuns = %d runs, want 2", len(all))
	}
	if all[0].RunID != "run-b" {
		t.Errorf("ListRuns[0] = %s, want the newest run first", all[0].RunID)
	}

	filtered, err := db.ListRuns(ctx, "https://other.com/")
	if err != nil {
		t.Fatalf("ListRuns(filtered): %v", err)
	}
	if len(filtered) != 1 || filtered[0].RunID != "run-b" {
		t.Errorf("filtered runs = %+v, want only run-b", filtered)
	}
}

func TestCrawlDBHasRecentRun(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveRun(ctx, testSummary("run-r"), nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	recent, err := db.HasRecentRun(ctx, "https://example.com/", time.Hour)
	if err != nil {
		t.Fatalf("HasRecentRun: %v", err)
	}
	if !recent {
		t.Error("HasRecentRun = false for a run saved just now")
	}

	other, err := db.HasRecentRun(ctx, "https://never-crawled.com/", time.Hour)
	if err != nil {
		t.Fatalf("HasRecentRun: %v", err)
	}
	if other {
		t.Error("HasRecentRun = true for a never-crawled seed")
	}
}

func TestCrawlDBOpenWithoutCreate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Open(dir, Options{CreateIfNotExists: false}); err == nil {
		t.Error("Open without CreateIfNotExists succeeded on an empty directory")
	}
}
