package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3" // DB driver
)

const (
	KindRestaurants = "restaurants"
	KindReviews     = "reviews"

	// secondary index on reviews
	IndexRestaurantID = "restaurant_id"
)

// migration is one additive schema step. Every statement has to be safe to
// run against a store that already has it.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS restaurants (
				id   INTEGER PRIMARY KEY,
				data TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS reviews (
				id            INTEGER PRIMARY KEY,
				restaurant_id INTEGER NOT NULL,
				data          TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_restaurant_id ON reviews (restaurant_id)`,
		},
	},
}

// SchemaVersion is the version Open migrates a store to.
var SchemaVersion = migrations[len(migrations)-1].version

// Store is the local persistent store. It is opened explicitly and handed to
// the repositories that need it.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if needed) the SQLite store at path and migrates it to
// SchemaVersion. path may be ":memory:".
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open store: %w", err)
	}
	// one connection: every statement and transaction is serialized by the store
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not open store: %w", err)
	}

	s := &Store{DB: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Version returns the schema version recorded in the store.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v int
	if err := s.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Migrate applies every migration newer than the recorded schema version.
func (s *Store) Migrate(ctx context.Context) error {
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
			}
		}
		// PRAGMA does not take placeholders
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Schema describes how records of one kind are keyed and indexed.
type Schema[T any] struct {
	Kind    string
	Key     func(T) int64
	Indexes map[string]func(T) int64
}

// Collection stores records of one kind as JSON documents keyed by id, with
// optional integer secondary indexes kept in their own columns.
type Collection[T any] struct {
	db      *sql.DB
	schema  Schema[T]
	indexes []string
}

func NewCollection[T any](s *Store, schema Schema[T]) *Collection[T] {
	indexes := make([]string, 0, len(schema.Indexes))
	for name := range schema.Indexes {
		indexes = append(indexes, name)
	}
	sort.Strings(indexes)

	return &Collection[T]{db: s.DB, schema: schema, indexes: indexes}
}

// GetAll returns every record in primary key order.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	query := `SELECT data FROM ` + c.schema.Kind + ` ORDER BY id`
	return c.query(ctx, query)
}

// GetByID returns the record with the given id, or nil when absent.
func (c *Collection[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	query := `SELECT data FROM ` + c.schema.Kind + ` WHERE id = ?`

	var data string
	err := c.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find %s by id: %w", c.schema.Kind, err)
	}

	var rec T
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s %d: %w", c.schema.Kind, id, err)
	}
	return &rec, nil
}

// GetByIndex returns the records whose index column equals value.
func (c *Collection[T]) GetByIndex(ctx context.Context, index string, value int64) ([]T, error) {
	if _, ok := c.schema.Indexes[index]; !ok {
		return nil, fmt.Errorf("unknown index %q on %s", index, c.schema.Kind)
	}
	query := `SELECT data FROM ` + c.schema.Kind + ` WHERE ` + index + ` = ? ORDER BY id`
	return c.query(ctx, query, value)
}

// PutAll upserts records in one transaction. Existing records with the same
// id are overwritten.
func (c *Collection[T]) PutAll(ctx context.Context, records []T) error {
	if len(records) == 0 {
		return nil
	}

	columns := append([]string{"id"}, c.indexes...)
	columns = append(columns, "data")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	updates := make([]string, 0, len(columns)-1)
	for _, col := range columns[1:] {
		updates = append(updates, col+" = excluded."+col)
	}

	query := `
	INSERT INTO ` + c.schema.Kind + ` (` + strings.Join(columns, ", ") + `)
	VALUES (` + placeholders + `)
	ON CONFLICT (id) DO UPDATE SET ` + strings.Join(updates, ", ")

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s upsert: %w", c.schema.Kind, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s upsert: %w", c.schema.Kind, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", c.schema.Kind, err)
		}
		args := make([]interface{}, 0, len(columns))
		args = append(args, c.schema.Key(rec))
		for _, name := range c.indexes {
			args = append(args, c.schema.Indexes[name](rec))
		}
		args = append(args, string(data))

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", c.schema.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s upsert: %w", c.schema.Kind, err)
	}
	return nil
}

// Update loads the record with the given id, applies fn and writes it back in
// one transaction. It reports false when no such record exists.
func (c *Collection[T]) Update(ctx context.Context, id int64, fn func(*T)) (bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin %s update: %w", c.schema.Kind, err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM `+c.schema.Kind+` WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s %d: %w", c.schema.Kind, id, err)
	}

	var rec T
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return false, fmt.Errorf("failed to decode %s %d: %w", c.schema.Kind, id, err)
	}
	fn(&rec)

	updated, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s %d: %w", c.schema.Kind, id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+c.schema.Kind+` SET data = ? WHERE id = ?`, string(updated), id); err != nil {
		return false, fmt.Errorf("failed to update %s %d: %w", c.schema.Kind, id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit %s update: %w", c.schema.Kind, err)
	}
	return true, nil
}

func (c *Collection[T]) query(ctx context.Context, query string, args ...interface{}) ([]T, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.schema.Kind, err)
	}
	defer rows.Close()

	records := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var rec T
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", c.schema.Kind, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return records, nil
}
