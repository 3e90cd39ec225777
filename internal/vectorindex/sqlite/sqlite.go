// Package sqlite provides a VectorIndex persisted in a SQLite file.
// Vectors are stored as float32 blobs and searched with a flat scan.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/flat"
)

// Storage implements domain.VectorIndex using SQLite.
type Storage struct {
	db *sql.DB
}

var _ domain.VectorIndex = (*Storage)(nil)

// NewStorage opens or creates a SQLite database at path and initializes the schema.
// Parent directories are created if they do not exist.
func NewStorage(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Storage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id INTEGER NOT NULL,
		text TEXT NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *Storage) HasCollection(ctx context.Context, name string) (bool, error) {
	_, err := s.dimension(ctx, s.db, name)
	if errors.Is(err, domain.ErrCollectionAbsent) {
		return false, nil
	}
	return err == nil, err
}

func (s *Storage) CreateCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO collections (name, dimension) VALUES (?, ?)`, name, dimension)
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionExists)
	}
	return err
}

func (s *Storage) DescribeCollection(ctx context.Context, name string) (domain.CollectionInfo, error) {
	dim, err := s.dimension(ctx, s.db, name)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, name).Scan(&count); err != nil {
		return domain.CollectionInfo{}, err
	}
	return domain.CollectionInfo{Name: name, Dimension: dim, Count: count}, nil
}

// Upsert writes all records in one transaction.
func (s *Storage) Upsert(ctx context.Context, name string, records []domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dim, err := s.dimension(ctx, tx, name)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO records (collection, id, text, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("record %d: %w", r.ID, &flat.DimensionError{Got: len(r.Vector), Want: dim})
		}
		if _, err := stmt.ExecContext(ctx, name, r.ID, r.Text, flat.EncodeVector(r.Vector)); err != nil {
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Storage) Search(ctx context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]domain.Hit, error) {
	dim, err := s.dimension(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if err := flat.CheckDimensions(vectors, dim); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, vector FROM records WHERE collection = ? ORDER BY id`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []flat.Candidate
	for rows.Next() {
		var (
			c    flat.Candidate
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Text, &blob); err != nil {
			return nil, err
		}
		if c.Vector, err = flat.DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("record %d: %w", c.ID, err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([][]domain.Hit, len(vectors))
	for i, v := range vectors {
		out[i] = flat.Rank(v, candidates, limit, outputFields)
	}
	return out, nil
}

func (s *Storage) DropCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, name); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	return tx.Commit()
}

func (s *Storage) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) dimension(ctx context.Context, q querier, name string) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, name).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	return dim, err
}
