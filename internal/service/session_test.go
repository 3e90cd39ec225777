package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/corpus"
	"semsearch/internal/domain"
)

func TestNewSessionIsIdle(t *testing.T) {
	s := NewSession(&stubSearcher{}, 8)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, DefaultTopK, s.TopK())
	assert.Equal(t, 8, s.TopKLimit())
	assert.True(t, s.Result().Empty())
}

func TestEditText(t *testing.T) {
	ctx := context.Background()

	t.Run("searches and activates", func(t *testing.T) {
		st := &stubSearcher{}
		s := NewSession(st, 8)
		ran, err := s.EditText(ctx, "  vector search  ")
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, Active, s.State())
		assert.Equal(t, "vector search", s.Query())
		assert.Equal(t, []string{"vector search"}, st.calls)
		assert.Len(t, s.Result().Entries, DefaultTopK)
	})

	t.Run("unchanged text is a no-op", func(t *testing.T) {
		st := &stubSearcher{}
		s := NewSession(st, 8)
		_, err := s.EditText(ctx, "cloud")
		require.NoError(t, err)
		ran, err := s.EditText(ctx, "cloud ")
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Len(t, st.calls, 1)
	})

	t.Run("empty text returns to idle without searching", func(t *testing.T) {
		st := &stubSearcher{}
		s := NewSession(st, 8)
		_, err := s.EditText(ctx, "cloud")
		require.NoError(t, err)
		ran, err := s.EditText(ctx, "   ")
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Equal(t, Idle, s.State())
		assert.Empty(t, s.Query())
		assert.True(t, s.Result().Empty())
		assert.Len(t, st.calls, 1)
	})

	t.Run("empty text while idle", func(t *testing.T) {
		st := &stubSearcher{}
		s := NewSession(st, 8)
		ran, err := s.EditText(ctx, "")
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Empty(t, st.calls)
	})
}

func TestSelectShortcutSearchesOnce(t *testing.T) {
	st := &stubSearcher{}
	s := NewSession(st, 8)
	db, ok := corpus.FindPreset(corpus.Presets, "databases")
	require.True(t, ok)

	ran, err := s.SelectShortcut(context.Background(), db)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []string{"database for vector similarity"}, st.calls)
	assert.Equal(t, Active, s.State())
	assert.Equal(t, "database for vector similarity", s.Query())
}

func TestSelectShortcutRepeatsSameQuery(t *testing.T) {
	st := &stubSearcher{}
	s := NewSession(st, 8)
	p := corpus.Presets[0]

	_, err := s.SelectShortcut(context.Background(), p)
	require.NoError(t, err)
	_, err = s.SelectShortcut(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, st.calls, 2)

	// typing the same text afterwards does not search again
	ran, err := s.EditText(context.Background(), p.Query)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Len(t, st.calls, 2)
}

func TestSetTopK(t *testing.T) {
	ctx := context.Background()

	t.Run("idle change does not search", func(t *testing.T) {
		st := &stubSearcher{}
		s := NewSession(st, 8)
		ran, err := s.SetTopK(ctx, 5)
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Equal(t, 5, s.TopK())
		assert.Empty(t, st.calls)
	})

	t.Run("active change re-searches", func(t *testing.T) {
		st := &stubSearcher{}
		s := NewSession(st, 8)
		_, err := s.EditText(ctx, "cloud")
		require.NoError(t, err)
		ran, err := s.SetTopK(ctx, 6)
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, []int{3, 6}, st.topKs)
		assert.Len(t, s.Result().Entries, 6)
	})

	t.Run("clamps to bounds", func(t *testing.T) {
		s := NewSession(&stubSearcher{}, 8)
		_, _ = s.SetTopK(ctx, 50)
		assert.Equal(t, MaxTopK, s.TopK())
		_, _ = s.SetTopK(ctx, 0)
		assert.Equal(t, 1, s.TopK())
	})

	t.Run("small corpus caps the limit", func(t *testing.T) {
		s := NewSession(&stubSearcher{}, 2)
		assert.Equal(t, 2, s.TopKLimit())
		assert.Equal(t, 2, s.TopK())
	})

	t.Run("unchanged value is a no-op", func(t *testing.T) {
		st := &stubSearcher{}
		s := NewSession(st, 8)
		_, err := s.EditText(ctx, "cloud")
		require.NoError(t, err)
		ran, err := s.SetTopK(ctx, DefaultTopK)
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Len(t, st.calls, 1)
	})
}

func TestFailedSearchKeepsState(t *testing.T) {
	ctx := context.Background()
	st := &stubSearcher{}
	s := NewSession(st, 8)
	_, err := s.EditText(ctx, "cloud")
	require.NoError(t, err)
	before := s.Result()

	st.err = domain.ErrServiceUnavailable

	_, err = s.EditText(ctx, "quantum")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, "cloud", s.Query())
	assert.Equal(t, Active, s.State())
	assert.Equal(t, before, s.Result())

	_, err = s.SetTopK(ctx, 7)
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
	assert.Equal(t, DefaultTopK, s.TopK())

	_, err = s.SelectShortcut(ctx, corpus.Presets[1])
	assert.Error(t, err)
	assert.Equal(t, "cloud", s.Query())
}

func TestSessionOverLoadedService(t *testing.T) {
	svc, emb, _ := loadedService(t)
	s := NewSession(svc, len(corpus.Default))
	db, _ := corpus.FindPreset(corpus.Presets, "databases")

	before := emb.embeds.Load()
	_, err := s.SelectShortcut(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, before+1, emb.embeds.Load())
	require.Len(t, s.Result().Entries, DefaultTopK)
	assert.Equal(t, int64(2), s.Result().Entries[0].ID)
}
