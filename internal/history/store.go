package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sample is one recorded telemetry observation.
type Sample struct {
	ID             int64
	RecordedAt     time.Time
	Blocks         int
	Headers        int
	Progress       float64
	SizeOnDisk     uint64
	PruneHeight    int
	Connections    int
	ConnectionsIn  int
	ConnectionsOut int
}

// Store manages telemetry history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at TEXT NOT NULL,
	blocks INTEGER NOT NULL,
	headers INTEGER NOT NULL,
	progress REAL NOT NULL,
	size_on_disk INTEGER NOT NULL,
	prune_height INTEGER NOT NULL,
	connections INTEGER NOT NULL,
	connections_in INTEGER NOT NULL,
	connections_out INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_recorded_at ON samples(recorded_at);
`

const schemaVersion = 1

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialize history schema: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version > schemaVersion:
		return fmt.Errorf("history schema version %d is newer than supported %d", version, schemaVersion)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Record stores one sample.
func (s *Store) Record(ctx context.Context, sample Sample) error {
	ctx = ensureContext(ctx)
	recordedAt := sample.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT INTO samples (
	recorded_at, blocks, headers, progress, size_on_disk,
	prune_height, connections, connections_in, connections_out
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			recordedAt.UTC().Format(time.RFC3339),
			sample.Blocks,
			sample.Headers,
			sample.Progress,
			int64(sample.SizeOnDisk),
			sample.PruneHeight,
			sample.Connections,
			sample.ConnectionsIn,
			sample.ConnectionsOut,
		)
		if err != nil {
			return fmt.Errorf("record sample: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit samples, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Sample, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, recorded_at, blocks, headers, progress, size_on_disk,
	prune_height, connections, connections_in, connections_out
FROM samples
ORDER BY id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		var recordedAt string
		var sizeOnDisk int64
		if err := rows.Scan(
			&sample.ID,
			&recordedAt,
			&sample.Blocks,
			&sample.Headers,
			&sample.Progress,
			&sizeOnDisk,
			&sample.PruneHeight,
			&sample.Connections,
			&sample.ConnectionsIn,
			&sample.ConnectionsOut,
		); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse sample timestamp %q: %w", recordedAt, err)
		}
		sample.RecordedAt = parsed
		sample.SizeOnDisk = uint64(sizeOnDisk)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// Prune deletes samples recorded before the retention cutoff.
func (s *Store) Prune(ctx context.Context, retention time.Duration) error {
	ctx = ensureContext(ctx)
	if retention <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)
	return retryOnBusy(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM samples WHERE recorded_at < ?", cutoff); err != nil {
			return fmt.Errorf("prune samples: %w", err)
		}
		return nil
	})
}
