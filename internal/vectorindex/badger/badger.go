// Package badger provides an embedded VectorIndex backed by BadgerDB.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/flat"
)

// Key layout:
//
//	m\x00<collection>            -> uint32 dimension
//	r\x00<collection>\x00<id>    -> uint32 text length | text | float32 vector
const (
	metaPrefix   = "m\x00"
	recordPrefix = "r\x00"
)

// Storage implements domain.VectorIndex on top of a Badger database.
type Storage struct {
	db *badger.DB
}

var _ domain.VectorIndex = (*Storage)(nil)

// zapAdapter routes badger's own logging through zap.
type zapAdapter struct {
	sugar *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(msg string, items ...any)   { a.sugar.Errorf(msg, items...) }
func (a *zapAdapter) Warningf(msg string, items ...any) { a.sugar.Warnf(msg, items...) }
func (a *zapAdapter) Infof(msg string, items ...any)    { a.sugar.Debugf(msg, items...) }
func (a *zapAdapter) Debugf(msg string, items ...any)   { a.sugar.Debugf(msg, items...) }

// Open opens a Badger database in dir, creating the directory if needed.
// An empty dir with inMemory set keeps everything in RAM.
func Open(dir string, inMemory bool, logger *zap.Logger) (*Storage, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		} else if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = &zapAdapter{sugar: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) HasCollection(_ context.Context, name string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := readDimension(txn, name)
		return err
	})
	if errors.Is(err, domain.ErrCollectionAbsent) {
		return false, nil
	}
	return err == nil, err
}

func (s *Storage) CreateCollection(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(name))
		if err == nil {
			return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionExists)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		val := make([]byte, 4)
		binary.LittleEndian.PutUint32(val, uint32(dimension))
		return txn.Set(metaKey(name), val)
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionExists)
	}
	return err
}

func (s *Storage) DescribeCollection(_ context.Context, name string) (domain.CollectionInfo, error) {
	info := domain.CollectionInfo{Name: name}
	err := s.db.View(func(txn *badger.Txn) error {
		dim, err := readDimension(txn, name)
		if err != nil {
			return err
		}
		info.Dimension = dim

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = recordsPrefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			info.Count++
		}
		return nil
	})
	if err != nil {
		return domain.CollectionInfo{}, err
	}
	return info, nil
}

// Upsert writes all records in a single transaction.
func (s *Storage) Upsert(_ context.Context, name string, records []domain.Record) error {
	return s.db.Update(func(txn *badger.Txn) error {
		dim, err := readDimension(txn, name)
		if err != nil {
			return err
		}
		for _, r := range records {
			if len(r.Vector) != dim {
				return fmt.Errorf("record %d: %w", r.ID, &flat.DimensionError{Got: len(r.Vector), Want: dim})
			}
			if err := txn.Set(recordKey(name, r.ID), encodeRecord(r)); err != nil {
				return fmt.Errorf("write record %d: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (s *Storage) Search(_ context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]domain.Hit, error) {
	var candidates []flat.Candidate
	err := s.db.View(func(txn *badger.Txn) error {
		dim, err := readDimension(txn, name)
		if err != nil {
			return err
		}
		if err := flat.CheckDimensions(vectors, dim); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordsPrefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := int64(binary.BigEndian.Uint64(item.Key()[len(opts.Prefix):]))
			err := item.Value(func(val []byte) error {
				c, err := decodeRecord(id, val)
				if err != nil {
					return err
				}
				candidates = append(candidates, c)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([][]domain.Hit, len(vectors))
	for i, v := range vectors {
		out[i] = flat.Rank(v, candidates, limit, outputFields)
	}
	return out, nil
}

func (s *Storage) DropCollection(_ context.Context, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := readDimension(txn, name); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = recordsPrefix(name)
		it := txn.NewIterator(opts)
		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Delete(metaKey(name))
	})
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func metaKey(name string) []byte {
	return []byte(metaPrefix + name)
}

func recordsPrefix(name string) []byte {
	return []byte(recordPrefix + name + "\x00")
}

// recordKey uses a big-endian id so iteration follows id order.
func recordKey(name string, id int64) []byte {
	prefix := recordsPrefix(name)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(id))
	return key
}

func readDimension(txn *badger.Txn, name string) (int, error) {
	item, err := txn.Get(metaKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	if err != nil {
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("collection %q: corrupt metadata", name)
		}
		dim = int(binary.LittleEndian.Uint32(val))
		return nil
	})
	return dim, err
}

func encodeRecord(r domain.Record) []byte {
	vec := flat.EncodeVector(r.Vector)
	out := make([]byte, 4+len(r.Text)+len(vec))
	binary.LittleEndian.PutUint32(out, uint32(len(r.Text)))
	copy(out[4:], r.Text)
	copy(out[4+len(r.Text):], vec)
	return out
}

func decodeRecord(id int64, val []byte) (flat.Candidate, error) {
	if len(val) < 4 {
		return flat.Candidate{}, fmt.Errorf("record %d: truncated", id)
	}
	n := int(binary.LittleEndian.Uint32(val))
	if len(val) < 4+n {
		return flat.Candidate{}, fmt.Errorf("record %d: truncated text", id)
	}
	vec, err := flat.DecodeVector(val[4+n:])
	if err != nil {
		return flat.Candidate{}, fmt.Errorf("record %d: %w", id, err)
	}
	return flat.Candidate{ID: id, Text: string(val[4 : 4+n]), Vector: vec}, nil
}
