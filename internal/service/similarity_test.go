package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 100},
		{0.127, 87.3},
		{0.5, 50},
		{1, 0},
		{1.7, 0},
		{2, 0},
		{-0.2, 100},
		{math.NaN(), 0},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, roundTenth(Similarity(tc.distance)), 1e-9, "distance %v", tc.distance)
	}
}

func TestSimilarityIsMonotonic(t *testing.T) {
	prev := Similarity(0)
	for d := 0.01; d <= 2; d += 0.01 {
		s := Similarity(d)
		assert.LessOrEqual(t, s, prev)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
		prev = s
	}
}
