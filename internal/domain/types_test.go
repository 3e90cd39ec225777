package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampTopK(t *testing.T) {
	tests := []struct {
		name    string
		k, size int
		want    int
	}{
		{"within range", 3, 8, 3},
		{"above corpus size", 20, 8, 8},
		{"zero", 0, 8, 1},
		{"negative", -4, 8, 1},
		{"empty corpus", 3, 0, 1},
		{"exact size", 8, 8, 8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClampTopK(tc.k, tc.size))
		})
	}
}

func TestSearchResultEmpty(t *testing.T) {
	assert.True(t, SearchResult{}.Empty())
	assert.False(t, SearchResult{Entries: []Entry{{Rank: 1}}}.Empty())
}
