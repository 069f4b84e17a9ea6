package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/stealthcrawler/internal/model"
)

// CrawlDB provides SQLite-based storage for crawl runs and page results.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all runs rather
// than one file per seed. This simplifies history queries and
// backup/restore operations.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, "stealthcrawler.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; multiple connections buy nothing
	// for this write-heavy workload.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Runs store one row per crawl with the full summary as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed_url TEXT NOT NULL,
		state TEXT NOT NULL,
		aborted_reason TEXT,
		started_at DATETIME,
		pages_crawled INTEGER NOT NULL DEFAULT 0,
		summary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Pages store one row per PageResult of a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER,
		title TEXT,
		error TEXT,
		fetched_at REAL,
		result_json TEXT NOT NULL,
		UNIQUE(run_id, url),
		FOREIGN KEY(run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a completed crawl: the summary row plus one page row per
// result, in a single transaction so a run is never half-stored.
func (cdb *CrawlDB) SaveRun(ctx context.Context, summary *model.CrawlSummary, results []*model.PageResult) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, seed_url, state, aborted_reason, started_at, pages_crawled, summary_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		state = excluded.state,
		aborted_reason = excluded.aborted_reason,
		pages_crawled = excluded.pages_crawled,
		summary_json = excluded.summary_json
	`,
		summary.RunID,
		summary.SeedURL,
		string(summary.State),
		summary.AbortedReason,
		summary.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		summary.PagesCrawled,
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, result := range results {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to serialize page result: %w", err)
		}

		var statusCode any
		if result.StatusCode != nil {
			statusCode = *result.StatusCode
		}
		var title any
		if result.Title != nil {
			title = *result.Title
		}
		var resultErr any
		if result.Error != nil {
			resultErr = *result.Error
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO pages (run_id, url, status_code, title, error, fetched_at, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, url) DO UPDATE SET
			status_code = excluded.status_code,
			title = excluded.title,
			error = excluded.error,
			fetched_at = excluded.fetched_at,
			result_json = excluded.result_json
		`,
			summary.RunID,
			result.URL,
			statusCode,
			title,
			resultErr,
			result.Timestamp,
			string(resultJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert page result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run summary by its ID. Returns nil when not found.
func (cdb *CrawlDB) GetRun(ctx context.Context, runID string) (*model.CrawlSummary, error) {
	var summaryJSON string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT summary_json FROM runs WHERE id = ?`, runID).Scan(&summaryJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var summary model.CrawlSummary
	if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}

// GetRunResults retrieves all page results of a run in insertion order.
func (cdb *CrawlDB) GetRunResults(ctx context.Context, runID string) ([]*model.PageResult, error) {
	rows, err := cdb.db.QueryContext(ctx,
		`SELECT result_json FROM pages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page results: %w", err)
	}
	defer rows.Close()

	var results []*model.PageResult
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, fmt.Errorf("failed to scan page result: %w", err)
		}

		var result model.PageResult
		if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
			continue // Skip malformed rows
		}
		results = append(results, &result)
	}

	return results, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying crawl history without loading full summaries.
type RunMetadata struct {
	// RunID is the run's UUID.
	RunID string

	// SeedURL is the crawl's starting point.
	SeedURL string

	// State is the final lifecycle state.
	State model.CrawlState

	// StartedAt is when the crawl began.
	StartedAt time.Time

	// PagesCrawled is the number of stored page results.
	PagesCrawled int
}

// ListRuns retrieves run metadata, newest first. A non-empty seedURL
// filters to runs of that seed.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seedURL string) ([]RunMetadata, error) {
	query := `
	SELECT id, seed_url, state, started_at, pages_crawled
	FROM runs
	`
	args := make([]any, 0)
	if seedURL != "" {
		query += " WHERE seed_url = ?"
		args = append(args, seedURL)
	}
	query += " ORDER BY started_at DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var state string
		var startedAt string

		if err := rows.Scan(&meta.RunID, &meta.SeedURL, &state, &startedAt, &meta.PagesCrawled); err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}
		meta.State = model.CrawlState(state)
		meta.StartedAt = parseTimestamp(startedAt)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// HasRecentRun checks whether the seed was crawled within the duration.
// Operators use this to avoid hammering a site they just crawled.
func (cdb *CrawlDB) HasRecentRun(ctx context.Context, seedURL string, within time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM runs
	WHERE seed_url = ? AND started_at > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(within.Seconds()))

	var count int
	if err := cdb.db.QueryRowContext(ctx, query, seedURL, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent runs: %w", err)
	}
	return count > 0, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
