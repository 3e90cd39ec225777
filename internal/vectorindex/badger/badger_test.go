package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/indextest"
)

func TestStorageContract(t *testing.T) {
	indextest.Run(t, func(t *testing.T) domain.VectorIndex {
		s, err := Open("", true, zaptest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, false, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateCollection(ctx, "docs", 2))
	require.NoError(t, s.Upsert(ctx, "docs", []domain.Record{
		{ID: 7, Vector: []float32{1, 0}, Text: "east"},
		{ID: 300, Vector: []float32{0, 1}, Text: "north"},
	}))
	require.NoError(t, s.Close())

	s, err = Open(dir, false, nil)
	require.NoError(t, err)
	defer s.Close()

	info, err := s.DescribeCollection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Count)

	res, err := s.Search(ctx, "docs", [][]float32{{0, 1}}, 2, []string{domain.FieldText})
	require.NoError(t, err)
	require.Len(t, res[0], 2)
	assert.Equal(t, int64(300), res[0][0].ID)
	assert.Equal(t, "north", res[0][0].Entity[domain.FieldText])
}

func TestPrefixedNamesDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	s, err := Open("", true, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateCollection(ctx, "docs", 2))
	require.NoError(t, s.CreateCollection(ctx, "docs2", 2))
	require.NoError(t, s.Upsert(ctx, "docs2", []domain.Record{{ID: 1, Vector: []float32{1, 1}, Text: "x"}}))

	info, err := s.DescribeCollection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 0, info.Count)
}

func TestRecordCodec(t *testing.T) {
	r := domain.Record{ID: 4, Vector: []float32{0.5, -1}, Text: "héllo"}
	c, err := decodeRecord(r.ID, encodeRecord(r))
	require.NoError(t, err)
	assert.Equal(t, r.Text, c.Text)
	assert.Equal(t, r.Vector, c.Vector)

	_, err = decodeRecord(1, []byte{9, 0, 0, 0, 'a'})
	assert.Error(t, err)
}
