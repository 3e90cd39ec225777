// Package postgres provides a VectorIndex on Postgres with the pgvector extension.
// Each collection gets its own table with a vector(D) column; a registry
// table records the dimension of every collection.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/flat"
)

const registryTable = "semsearch_collections"

var validName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Storage implements domain.VectorIndex using pgxpool.
type Storage struct {
	db *pgxpool.Pool
}

var _ domain.VectorIndex = (*Storage)(nil)

// NewStorage connects to dsn and ensures the extension and registry exist.
func NewStorage(ctx context.Context, dsn string) (*Storage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Storage{db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureSchema(ctx context.Context) error {
	ddl := `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS ` + registryTable + ` (
  name       text PRIMARY KEY,
  dimension  integer NOT NULL,
  created_at timestamptz NOT NULL DEFAULT now()
);`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
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
	table, err := tableName(name)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO `+registryTable+` (name, dimension) VALUES ($1, $2)`, name, dimension)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionExists)
	}
	if err != nil {
		return err
	}
	ddl := fmt.Sprintf(`CREATE TABLE %s (
  id        bigint PRIMARY KEY,
  text      text NOT NULL,
  embedding vector(%d) NOT NULL
)`, table, dimension)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Storage) DescribeCollection(ctx context.Context, name string) (domain.CollectionInfo, error) {
	dim, err := s.dimension(ctx, s.db, name)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	table, err := tableName(name)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return domain.CollectionInfo{}, err
	}
	return domain.CollectionInfo{Name: name, Dimension: dim, Count: count}, nil
}

// Upsert writes all records in one transaction.
func (s *Storage) Upsert(ctx context.Context, name string, records []domain.Record) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	dim, err := s.dimension(ctx, tx, name)
	if err != nil {
		return err
	}
	stmt := `INSERT INTO ` + table + ` (id, text, embedding) VALUES ($1, $2, $3::vector)
ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, embedding = EXCLUDED.embedding`

	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("record %d: %w", r.ID, &flat.DimensionError{Got: len(r.Vector), Want: dim})
		}
		batch.Queue(stmt, r.ID, r.Text, vectorLiteral(r.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Storage) Search(ctx context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]domain.Hit, error) {
	dim, err := s.dimension(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if err := flat.CheckDimensions(vectors, dim); err != nil {
		return nil, err
	}
	table, err := tableName(name)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, text, embedding <=> $1::vector AS distance FROM ` + table + `
ORDER BY distance, id
LIMIT $2`

	out := make([][]domain.Hit, len(vectors))
	for i, v := range vectors {
		hits := []domain.Hit{}
		if limit > 0 {
			rows, err := s.db.Query(ctx, query, vectorLiteral(v), limit)
			if err != nil {
				return nil, err
			}
			for rows.Next() {
				var (
					id   int64
					text string
					dist float64
				)
				if err := rows.Scan(&id, &text, &dist); err != nil {
					rows.Close()
					return nil, err
				}
				hits = append(hits, domain.Hit{ID: id, Distance: clampDistance(dist), Entity: flat.Entity(text, outputFields)})
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = hits
	}
	return out, nil
}

func (s *Storage) DropCollection(ctx context.Context, name string) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM `+registryTable+` WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	if _, err := tx.Exec(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Storage) dimension(ctx context.Context, q querier, name string) (int, error) {
	var dim int
	err := q.QueryRow(ctx, `SELECT dimension FROM `+registryTable+` WHERE name = $1`, name).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	return dim, err
}

// tableName maps a collection name to its quoted table identifier.
func tableName(name string) (string, error) {
	if !validName.MatchString(name) {
		return "", fmt.Errorf("collection name %q: only letters, digits and underscores are allowed", name)
	}
	return pgx.Identifier{"semsearch_c_" + name}.Sanitize(), nil
}

// vectorLiteral renders v in pgvector's text form, e.g. [0.1,0.2].
func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func clampDistance(d float64) float64 {
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}
