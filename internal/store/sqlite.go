package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"todo/internal/models"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	feed    *feed
	watcher *fileWatcher
	logger  *zap.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for feed and watcher diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSQLiteStore creates a new SQLite store with the given database path.
// File-backed databases are watched so that writes made through other
// handles reach this store's feeds; ":memory:" databases are not.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	loc, err := parseLocation(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", loc.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps an in-memory
	// database alive as one database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		path:   dbPath,
		feed:   newFeed(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if loc.file != "" {
		w, err := newFileWatcher(loc.file, store.feed.publish, store.logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to watch database: %w", err)
		}
		store.watcher = w
	}

	return store, nil
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection and ends every live feed.
func (s *SQLiteStore) Close() error {
	s.feed.close()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.logger.Warn("failed to stop database watcher", zap.Error(err))
		}
	}
	return s.db.Close()
}

// Persist inserts a new item or fully replaces an existing one.
func (s *SQLiteStore) Persist(ctx context.Context, item *models.Item) error {
	now := time.Now()

	if item.IsNew() {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO items (title, completed, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, item.Title, item.Completed, now, now)
		if err != nil {
			return fmt.Errorf("failed to create item: %w: %w", ErrIOFailure, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w: %w", ErrIOFailure, err)
		}
		item.ID = id
	} else {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO items (id, title, completed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE
			SET title = excluded.title, completed = excluded.completed, updated_at = excluded.updated_at
		`, item.ID, item.Title, item.Completed, now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert item %d: %w: %w", item.ID, ErrIOFailure, err)
		}
	}

	s.feed.publish()
	return nil
}

// Remove deletes the item with the given ID, if present.
func (s *SQLiteStore) Remove(ctx context.Context, item models.Item) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, item.ID)
	if err != nil {
		return fmt.Errorf("failed to delete item %d: %w: %w", item.ID, ErrIOFailure, err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	s.feed.publish()
	return nil
}

// GetItem retrieves an item by ID.
func (s *SQLiteStore) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	item := &models.Item{}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, completed FROM items WHERE id = ?
	`, id).Scan(
		&item.ID,
		&item.Title,
		&item.Completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get item: %w: %w", ErrIOFailure, err)
	}

	return item, nil
}

// ListItems retrieves all items in storage order.
// An empty table yields an empty, non-nil slice.
func (s *SQLiteStore) ListItems(ctx context.Context) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, completed FROM items ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w: %w", ErrIOFailure, err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.Title, &item.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w: %w", ErrIOFailure, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list items: %w: %w", ErrIOFailure, err)
	}
	return items, nil
}
