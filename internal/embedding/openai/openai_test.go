package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddings answers /embeddings with vectors whose first component is the input index.
func fakeEmbeddings(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(len(req.Input[i]))
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("SEMSEARCH_TEST_OPENAI_KEY", "")
	_, err := NewClient(context.Background(), Config{APIKeyEnv: "SEMSEARCH_TEST_OPENAI_KEY"})
	assert.Error(t, err)
}

func TestKnownModelSkipsProbe(t *testing.T) {
	t.Setenv("SEMSEARCH_TEST_OPENAI_KEY", "test-key")
	var calls atomic.Int32
	srv := fakeEmbeddings(t, 4, &calls)

	c, err := NewClient(context.Background(), Config{BaseURL: srv.URL, APIKeyEnv: "SEMSEARCH_TEST_OPENAI_KEY", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimension())
	assert.Zero(t, calls.Load())
}

func TestProbeUnknownModel(t *testing.T) {
	t.Setenv("SEMSEARCH_TEST_OPENAI_KEY", "test-key")
	var calls atomic.Int32
	srv := fakeEmbeddings(t, 6, &calls)

	c, err := NewClient(context.Background(), Config{BaseURL: srv.URL, APIKeyEnv: "SEMSEARCH_TEST_OPENAI_KEY", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, 6, c.Dimension())
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedBatchChunksAndKeepsOrder(t *testing.T) {
	t.Setenv("SEMSEARCH_TEST_OPENAI_KEY", "test-key")
	var calls atomic.Int32
	srv := fakeEmbeddings(t, 3, &calls)

	c, err := NewClient(context.Background(), Config{BaseURL: srv.URL, APIKeyEnv: "SEMSEARCH_TEST_OPENAI_KEY", Model: "custom", Dimensions: 3, BatchSize: 2})
	require.NoError(t, err)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestServerError(t *testing.T) {
	t.Setenv("SEMSEARCH_TEST_OPENAI_KEY", "test-key")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), Config{BaseURL: srv.URL, APIKeyEnv: "SEMSEARCH_TEST_OPENAI_KEY", Dimensions: 3, Model: "custom"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
