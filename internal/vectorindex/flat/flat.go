// Package flat holds the brute-force scan shared by the embedded indexes:
// cosine distance, ranking and the float32 blob layout.
package flat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"semsearch/internal/domain"
)

// CosineDistance returns 1 - cos(a, b), in [0, 2]. Zero vectors are at distance 1
// from everything. Tiny negative values from rounding are clamped to 0.
func CosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

// Candidate is a stored record as seen by a scan.
type Candidate struct {
	ID     int64
	Vector []float32
	Text   string
}

// Rank scores every candidate against query and returns the limit nearest,
// ascending by distance with ties broken by id.
func Rank(query []float32, candidates []Candidate, limit int, outputFields []string) []domain.Hit {
	if limit <= 0 || len(candidates) == 0 {
		return []domain.Hit{}
	}
	type scored struct {
		idx  int
		dist float64
	}
	scores := make([]scored, len(candidates))
	for i, c := range candidates {
		scores[i] = scored{idx: i, dist: CosineDistance(query, c.Vector)}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].dist != scores[j].dist {
			return scores[i].dist < scores[j].dist
		}
		return candidates[scores[i].idx].ID < candidates[scores[j].idx].ID
	})
	if limit > len(scores) {
		limit = len(scores)
	}
	hits := make([]domain.Hit, limit)
	for i := 0; i < limit; i++ {
		c := candidates[scores[i].idx]
		hits[i] = domain.Hit{ID: c.ID, Distance: scores[i].dist, Entity: Entity(c.Text, outputFields)}
	}
	return hits
}

// Entity builds the requested output fields for a record.
func Entity(text string, outputFields []string) map[string]string {
	entity := make(map[string]string, len(outputFields))
	for _, f := range outputFields {
		if f == domain.FieldText {
			entity[domain.FieldText] = text
		}
	}
	return entity
}

// EncodeVector lays a vector out as little-endian float32s.
func EncodeVector(v []float32) []byte {
	const size = 4
	out := make([]byte, len(v)*size)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(f))
	}
	return out
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	const size = 4
	if len(b)%size != 0 {
		return nil, errors.New("vector blob length is not a multiple of 4")
	}
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out, nil
}

// CheckDimensions verifies every vector has dimension dim.
func CheckDimensions(vectors [][]float32, dim int) error {
	for _, v := range vectors {
		if len(v) != dim {
			return &DimensionError{Got: len(v), Want: dim}
		}
	}
	return nil
}

// DimensionError reports a vector of the wrong size. It matches domain.ErrDimensionMismatch.
type DimensionError struct {
	Got, Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: got %d, expected %d", e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return domain.ErrDimensionMismatch }
