package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"platter/internal/config"
	"platter/internal/media"
)

// Store manages work item persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and ensures the schema
// exists. Safe to call on every startup.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDBPath())
}

// OpenPath opens the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Insert creates a work item for a media source. Returns ErrDuplicateKey
// when an item already exists for the source's media identity.
func (s *Store) Insert(ctx context.Context, source media.Source, outputPath string, titleIndex int, initial Status) (*Item, error) {
	if !initial.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, initial)
	}
	if err := source.Validate(); err != nil {
		return nil, fmt.Errorf("invalid source: %w", err)
	}

	sourceJSON, err := media.MarshalSource(source)
	if err != nil {
		return nil, err
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO work_items (
            media_key, media_name, source_json, output_path, title_index,
            status, created_at, status_changed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		source.Key(),
		source.DisplayName(),
		sourceJSON,
		outputPath,
		titleIndex,
		int(initial),
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, source.Key())
		}
		return nil, storeFault("insert item", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeFault("last insert id", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a work item by identifier, nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFault("get item", err)
	}
	return item, nil
}

// FindByKey returns the work item for a media identity, nil when absent.
func (s *Store) FindByKey(ctx context.Context, mediaKey string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM work_items WHERE media_key = ?`,
		mediaKey,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeFault("find by key", err)
	}
	return item, nil
}

// ItemsByStatus returns items in exactly the given status, oldest first.
// Insertion order is the claim order for workers.
func (s *Store) ItemsByStatus(ctx context.Context, status Status) ([]*Item, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM work_items WHERE status = ? ORDER BY id`,
		int(status),
	)
}

// ItemsBelowStatus returns items whose status is ordinally less than the
// threshold, oldest first. ItemsBelowStatus(StatusFinished) is the set of
// incomplete work.
func (s *Store) ItemsBelowStatus(ctx context.Context, threshold Status) ([]*Item, error) {
	if !threshold.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, threshold)
	}
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM work_items WHERE status < ? ORDER BY id`,
		int(threshold),
	)
}

// List returns all work items, oldest first.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM work_items ORDER BY id`)
}

// SetStatus overwrites an item's status and stamps the transition time. The
// caller is responsible for only requesting contract-valid transitions; the
// store rejects values outside the enumeration but does not second-guess
// ordering.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE work_items SET status = ?, status_changed_at = ? WHERE id = ?`,
		int(status),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return storeFault("set status", err)
	}
	return nil
}

// SetError moves an item to the Error status and records the failure
// message for operator inspection.
func (s *Store) SetError(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE work_items SET status = ?, error_message = ?, status_changed_at = ? WHERE id = ?`,
		int(StatusError),
		strings.TrimSpace(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return storeFault("set error", err)
	}
	return nil
}

// UpdateSource replaces an item's source descriptor. The rip stage uses
// this to swap the drive source for the freshly produced image file before
// the encode handoff.
func (s *Store) UpdateSource(ctx context.Context, id int64, source media.Source) error {
	if err := source.Validate(); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}
	sourceJSON, err := media.MarshalSource(source)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE work_items SET source_json = ? WHERE id = ?`,
		sourceJSON,
		id,
	); err != nil {
		return storeFault("update source", err)
	}
	return nil
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, storeFault("queue stats", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status int
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, storeFault("scan stats", err)
		}
		stats[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storeFault("iterate stats", err)
	}
	return stats, nil
}

// Len returns the number of items awaiting encode, the queue-depth
// indicator surfaced to callers.
func (s *Store) Len(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM work_items WHERE status = ?`,
		int(StatusPendingEncode),
	).Scan(&count)
	if err != nil {
		return 0, storeFault("queue length", err)
	}
	return count, nil
}

// ClearFinished removes finished items. Error items are kept indefinitely
// for inspection.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM work_items WHERE status = ?`, int(StatusFinished))
	if err != nil {
		return 0, storeFault("clear finished", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storeFault("rows affected", err)
	}
	return affected, nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeFault("query items", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storeFault("scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFault("iterate items", err)
	}
	return items, nil
}

const itemColumns = "id, media_key, media_name, source_json, output_path, title_index, status, error_message, created_at, status_changed_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		mediaKey     string
		mediaName    string
		sourceJSON   string
		outputPath   string
		titleIndex   int
		status       int
		errorMessage sql.NullString
		createdRaw   string
		changedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&mediaKey,
		&mediaName,
		&sourceJSON,
		&outputPath,
		&titleIndex,
		&status,
		&errorMessage,
		&createdRaw,
		&changedRaw,
	); err != nil {
		return nil, err
	}

	source, err := media.UnmarshalSource(sourceJSON)
	if err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		MediaKey:     mediaKey,
		MediaName:    mediaName,
		Source:       source,
		OutputPath:   outputPath,
		TitleIndex:   titleIndex,
		Status:       Status(status),
		ErrorMessage: errorMessage.String,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		item.CreatedAt = created
	}
	if changed, err := time.Parse(time.RFC3339Nano, changedRaw); err == nil {
		item.StatusChangedAt = changed
	}
	return item, nil
}

func storeFault(operation string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, operation, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
