// Package redis stores collections as Redis hashes indexed by the Redis
// query engine (FT.*), searched with KNN over a FLAT cosine vector field.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/flat"
)

const (
	fieldVector    = "vector"
	fieldDimension = "dimension"
	scoreField     = "__vector_score"
)

// Config holds connection parameters for a Redis index.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// Storage implements domain.VectorIndex via rueidis.
type Storage struct {
	client rueidis.Client
	prefix string
}

var _ domain.VectorIndex = (*Storage)(nil)

// NewStorage connects to Redis 8+ (or Redis Stack).
func NewStorage(cfg Config) (*Storage, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH parsing expects the RESP2 array layout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return newWithClient(client, cfg.KeyPrefix), nil
}

func newWithClient(c rueidis.Client, prefix string) *Storage {
	if prefix == "" {
		prefix = "semsearch"
	}
	return &Storage{client: c, prefix: prefix}
}

func (s *Storage) indexName(name string) string { return s.prefix + ":idx:" + name }
func (s *Storage) metaKey(name string) string   { return s.prefix + ":meta:" + name }
func (s *Storage) docPrefix(name string) string { return s.prefix + ":doc:" + name + ":" }

func (s *Storage) HasCollection(ctx context.Context, name string) (bool, error) {
	cmd := s.client.B().Arbitrary("FT.INFO").Args(s.indexName(name)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isMissingIndex(err) {
			return false, nil
		}
		return false, fmt.Errorf("ft.info: %w", err)
	}
	return true, nil
}

func (s *Storage) CreateCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	args := []string{
		s.indexName(name), "ON", "HASH",
		"PREFIX", "1", s.docPrefix(name),
		"SCHEMA",
		domain.FieldText, "TEXT",
		fieldVector, "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dimension),
		"DISTANCE_METRIC", "COSINE",
	}
	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionExists)
		}
		return fmt.Errorf("ft.create: %w", err)
	}
	meta := s.client.B().Hset().Key(s.metaKey(name)).FieldValue().FieldValue(fieldDimension, strconv.Itoa(dimension)).Build()
	if err := s.client.Do(ctx, meta).Error(); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	return nil
}

func (s *Storage) DescribeCollection(ctx context.Context, name string) (domain.CollectionInfo, error) {
	dim, err := s.dimension(ctx, name)
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(s.indexName(name), "*", "LIMIT", "0", "0").Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isMissingIndex(err) {
			return domain.CollectionInfo{}, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
		}
		return domain.CollectionInfo{}, fmt.Errorf("ft.search count: %w", err)
	}
	info := domain.CollectionInfo{Name: name, Dimension: dim}
	if len(raw) > 0 {
		total, err := raw[0].AsInt64()
		if err != nil {
			return domain.CollectionInfo{}, fmt.Errorf("parse count: %w", err)
		}
		info.Count = int(total)
	}
	return info, nil
}

// Upsert writes every record inside one MULTI/EXEC block.
func (s *Storage) Upsert(ctx context.Context, name string, records []domain.Record) error {
	dim, err := s.dimension(ctx, name)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	cmds := make(rueidis.Commands, 0, len(records)+2)
	cmds = append(cmds, s.client.B().Multi().Build())
	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("record %d: %w", r.ID, &flat.DimensionError{Got: len(r.Vector), Want: dim})
		}
		cmds = append(cmds, s.client.B().Hset().Key(s.docPrefix(name)+strconv.FormatInt(r.ID, 10)).FieldValue().
			FieldValue(domain.FieldText, r.Text).
			FieldValue(fieldVector, string(flat.EncodeVector(r.Vector))).
			Build())
	}
	cmds = append(cmds, s.client.B().Exec().Build())

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("upsert command %d: %w", i, err)
		}
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]domain.Hit, error) {
	dim, err := s.dimension(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := flat.CheckDimensions(vectors, dim); err != nil {
		return nil, err
	}
	out := make([][]domain.Hit, len(vectors))
	if limit <= 0 || len(vectors) == 0 {
		for i := range out {
			out[i] = []domain.Hit{}
		}
		return out, nil
	}

	returnFields := append([]string{scoreField}, outputFields...)
	cmds := make(rueidis.Commands, len(vectors))
	for i, v := range vectors {
		args := []string{
			s.indexName(name),
			fmt.Sprintf("*=>[KNN %d @%s $BLOB AS %s]", limit, fieldVector, scoreField),
			"RETURN", strconv.Itoa(len(returnFields)),
		}
		args = append(args, returnFields...)
		args = append(args,
			"SORTBY", scoreField,
			"LIMIT", "0", strconv.Itoa(limit),
			"PARAMS", "2", "BLOB", string(flat.EncodeVector(v)),
			"DIALECT", "2",
		)
		cmds[i] = s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	}

	prefix := s.docPrefix(name)
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		raw, err := res.ToArray()
		if err != nil {
			if isMissingIndex(err) {
				return nil, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
			}
			return nil, fmt.Errorf("ft.search: %w", err)
		}
		hits, err := parseKNN(raw, prefix, outputFields)
		if err != nil {
			return nil, err
		}
		out[i] = hits
	}
	return out, nil
}

func (s *Storage) DropCollection(ctx context.Context, name string) error {
	cmd := s.client.B().Arbitrary("FT.DROPINDEX").Args(s.indexName(name), "DD").Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if isMissingIndex(err) {
			return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
		}
		return fmt.Errorf("ft.dropindex: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.metaKey(name)).Build()).Error(); err != nil {
		return fmt.Errorf("drop metadata: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	s.client.Close()
	return nil
}

func (s *Storage) dimension(ctx context.Context, name string) (int, error) {
	cmd := s.client.B().Hget().Key(s.metaKey(name)).Field(fieldDimension).Build()
	v, err := s.client.Do(ctx, cmd).ToString()
	if rueidis.IsRedisNil(err) {
		return 0, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	if err != nil {
		return 0, fmt.Errorf("read metadata: %w", err)
	}
	dim, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("collection %q: corrupt dimension %q", name, v)
	}
	return dim, nil
}

// parseKNN reads the RESP2 layout [total, key1, fields1, key2, fields2, ...].
func parseKNN(raw []rueidis.RedisMessage, keyPrefix string, outputFields []string) ([]domain.Hit, error) {
	hits := []domain.Hit{}
	if len(raw) == 0 {
		return hits, nil
	}
	if _, err := raw[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(key, keyPrefix), 10, 64)
		if err != nil {
			continue
		}
		pairs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(pairs)
		dist, _ := strconv.ParseFloat(fields[scoreField], 64)
		hits = append(hits, domain.Hit{
			ID:       id,
			Distance: clampDistance(dist),
			Entity:   flat.Entity(fields[domain.FieldText], outputFields),
		})
	}
	return hits, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		k, err := fields[j].ToString()
		if err != nil {
			continue
		}
		v, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[k] = v
	}
	return m
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

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

func isMissingIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}
