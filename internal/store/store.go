// Package store persists processed postings in a single local SQLite table
// keyed by the posting identifier.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    title TEXT,
    link TEXT,
    application_link TEXT,
    company TEXT,
    description TEXT,
    evaluation TEXT,
    evaluation_score REAL,
    decision TEXT,
    visited_at TEXT,
    notified INTEGER DEFAULT 0,
    source TEXT
);
`

// JobRecord is the durable outcome of processing one posting. Rows are only
// ever fully replaced, never partially updated.
type JobRecord struct {
	ID          string
	Title       string
	Link        string
	ApplyLink   string
	Company     string
	Description string
	// Evaluation holds the full serialized evaluation payload. Score and
	// Decision are duplicated into their own columns for ad-hoc querying.
	Evaluation string
	Score      float64
	Decision   string
	VisitedAt  time.Time
	Notified   bool
	Source     string
}

// Store wraps the SQLite handle. It is written by a single sequential
// process; no multi-writer contention is guarded against.
type Store struct {
	sqlDB  *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the jobs database at path and ensures the
// schema exists. Schema creation is idempotent. Any failure here is fatal to
// the run: no further work is safe without durable state.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure jobs table: %w", err)
	}

	logger.Debug("storage initialized", zap.String("path", cleanPath))

	return &Store{sqlDB: sqlDB, logger: logger}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Exists reports whether the identifier has been processed before. It fails
// open: on a storage fault it logs the error and returns false, so a
// transient fault degrades to re-processing instead of crashing the run.
func (s *Store) Exists(ctx context.Context, id string) bool {
	var one int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?`, id).Scan(&one)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("checking if posting was visited",
				zap.String("posting_id", id),
				zap.Error(err),
			)
		}
		return false
	}
	return true
}

// Upsert inserts or fully replaces the row for record.ID. A second attempt
// for the same identifier replaces the row; it never creates a duplicate.
// Faults propagate: losing the write silently would corrupt the seen set.
func (s *Store) Upsert(ctx context.Context, record *JobRecord) error {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return errors.New("record with identifier is required")
	}

	visitedAt := record.VisitedAt
	if visitedAt.IsZero() {
		visitedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT OR REPLACE INTO jobs (
		    id,
		    title,
		    link,
		    application_link,
		    company,
		    description,
		    evaluation,
		    evaluation_score,
		    decision,
		    visited_at,
		    notified,
		    source
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Title,
		record.Link,
		record.ApplyLink,
		record.Company,
		record.Description,
		record.Evaluation,
		record.Score,
		record.Decision,
		visitedAt.UTC().Format(time.RFC3339),
		boolToInt(record.Notified),
		record.Source,
	)
	if err != nil {
		return fmt.Errorf("save posting %s: %w", record.ID, err)
	}

	s.logger.Info("posting saved",
		zap.String("posting_id", record.ID),
		zap.String("title", record.Title),
		zap.Float64("score", record.Score),
		zap.String("decision", record.Decision),
	)

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
