// Package hashing implements an offline embedder using the feature hashing trick.
// Tokens are lowercased, stopwords dropped, lightly stemmed and hashed into a
// fixed number of signed buckets. The vector is L2-normalized.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"semsearch/internal/domain"
)

// DefaultDimension matches the width of the usual MiniLM sentence encoders.
const DefaultDimension = 384

// Embedder is deterministic and needs no corpus preparation.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

var _ domain.Embedder = (*Embedder)(nil)

func New(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}, nil
}

func (e *Embedder) Name() string { return "hashing" }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed never fails; text without usable tokens maps to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	acc := make([]float64, e.dimension)
	for _, tok := range e.Tokens(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1
		}
		acc[sum%uint64(e.dimension)] += sign
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Tokens returns the stemmed content words of text in order.
func (e *Embedder) Tokens(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		if utf8.RuneCountInString(t) < 2 {
			continue
		}
		out = append(out, stem(t))
	}
	return out
}

// stem strips a few English inflections so "databases" meets "database".
func stem(t string) string {
	n := utf8.RuneCountInString(t)
	switch {
	case n > 4 && strings.HasSuffix(t, "ies"):
		return strings.TrimSuffix(t, "ies") + "y"
	case n > 5 && strings.HasSuffix(t, "ing"):
		return strings.TrimSuffix(t, "ing")
	case n > 4 && strings.HasSuffix(t, "ed"):
		return strings.TrimSuffix(t, "ed")
	case n > 3 && strings.HasSuffix(t, "s") && !strings.HasSuffix(t, "ss"):
		return strings.TrimSuffix(t, "s")
	}
	return t
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
