package mtimes

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// PrefetchIndexName is stored beside the documents it covers.
	PrefetchIndexName = "prefetch_mtimes.db"
	// BackupIndexName is stored in the backup output directory.
	BackupIndexName = "backup_mtimes.db"

	// workshopInfoFile is the game's own workshop listing, not a mod.
	workshopInfoFile = "WorkshopFileInfos.json"

	schemaVersion = 1

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

//go:embed schema.sql
var schemaSQL string

// ErrSchemaMismatch indicates the index was written by an incompatible version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Index maps document file names to the modification time they had when last
// processed.
type Index struct {
	db   *sql.DB
	path string
}

// Open connects to (creating if needed) the index database at path.
func Open(ctx context.Context, path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	idx := &Index{db: db, path: path}
	if err := idx.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Path returns the database file location.
func (i *Index) Path() string { return i.path }

// Close closes the underlying database connection.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

func (i *Index) initSchema(ctx context.Context) error {
	var tableExists int
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return i.createSchema(ctx)
	}

	var version int
	if err := i.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d (delete the file to rebuild it)",
			ErrSchemaMismatch, i.path, version, schemaVersion)
	}
	return nil
}

func (i *Index) createSchema(ctx context.Context) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Get returns the recorded modification time for name. A nil index has no
// entries.
func (i *Index) Get(ctx context.Context, name string) (time.Time, bool, error) {
	if i == nil {
		return time.Time{}, false, nil
	}
	var modified int64
	err := i.db.QueryRowContext(ctx,
		"SELECT modified_ns FROM processed_documents WHERE name = ?", name,
	).Scan(&modified)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read processed time for %s: %w", name, err)
	}
	return time.Unix(0, modified), true, nil
}

// Record stores the modification time of name.
func (i *Index) Record(ctx context.Context, name string, modified time.Time) error {
	return retryOnBusy(ctx, func() error {
		_, err := i.db.ExecContext(ctx,
			`INSERT INTO processed_documents (name, modified_ns, recorded_at) VALUES (?, ?, ?)
             ON CONFLICT(name) DO UPDATE SET modified_ns = excluded.modified_ns, recorded_at = excluded.recorded_at`,
			name, modified.UnixNano(), time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("record processed time for %s: %w", name, err)
		}
		return nil
	})
}

// RecordFile stores the current modification time of the document at path
// under its base name.
func (i *Index) RecordFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat document: %w", err)
	}
	return i.Record(ctx, filepath.Base(path), info.ModTime())
}

// DueDocuments lists the JSON documents in dir modified after their recorded
// time, sorted by name.
func (i *Index) DueDocuments(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var due []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || name == workshopInfoFile {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		recorded, ok, err := i.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok && !info.ModTime().After(recorded) {
			continue
		}
		due = append(due, filepath.Join(dir, name))
	}
	sort.Strings(due)
	return due, nil
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
