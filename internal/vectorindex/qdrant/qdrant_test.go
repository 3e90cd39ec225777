package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/indextest"
	"semsearch/internal/vectorindex/memory"
)

// fakeServer answers the subset of the Qdrant REST API the client uses,
// backed by the in-memory index.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStorage()
	r := chi.NewRouter()

	writeErr := func(w http.ResponseWriter, err error) {
		switch {
		case errors.Is(err, domain.ErrCollectionAbsent):
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
		case errors.Is(err, domain.ErrCollectionExists):
			http.Error(w, `{"status":{"error":"already exists"}}`, http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	r.Get("/collections/{name}", func(w http.ResponseWriter, req *http.Request) {
		info, err := store.DescribeCollection(req.Context(), chi.URLParam(req, "name"))
		if err != nil {
			writeErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{
			"points_count": info.Count,
			"config":       map[string]any{"params": map[string]any{"vectors": map[string]any{"size": info.Dimension, "distance": "Cosine"}}},
		}})
	})
	r.Put("/collections/{name}", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		if err := store.CreateCollection(req.Context(), chi.URLParam(req, "name"), body.Vectors.Size); err != nil {
			writeErr(w, err)
			return
		}
		_, _ = w.Write([]byte(`{"result":true}`))
	})
	r.Delete("/collections/{name}", func(w http.ResponseWriter, req *http.Request) {
		if err := store.DropCollection(req.Context(), chi.URLParam(req, "name")); err != nil {
			writeErr(w, err)
			return
		}
		_, _ = w.Write([]byte(`{"result":true}`))
	})
	r.Put("/collections/{name}/points", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "true", req.URL.Query().Get("wait"))
		var body struct {
			Points []struct {
				ID      int64             `json:"id"`
				Vector  []float32         `json:"vector"`
				Payload map[string]string `json:"payload"`
			} `json:"points"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		records := make([]domain.Record, len(body.Points))
		for i, p := range body.Points {
			records[i] = domain.Record{ID: p.ID, Vector: p.Vector, Text: p.Payload[domain.FieldText]}
		}
		if err := store.Upsert(req.Context(), chi.URLParam(req, "name"), records); err != nil {
			writeErr(w, err)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	})
	r.Post("/collections/{name}/points/search/batch", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Searches []struct {
				Vector      []float32 `json:"vector"`
				Limit       int       `json:"limit"`
				WithPayload bool      `json:"with_payload"`
			} `json:"searches"`
		}
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		result := make([][]map[string]any, len(body.Searches))
		for i, s := range body.Searches {
			hits, err := store.Search(req.Context(), chi.URLParam(req, "name"), [][]float32{s.Vector}, s.Limit, []string{domain.FieldText})
			if err != nil {
				writeErr(w, err)
				return
			}
			result[i] = []map[string]any{}
			for _, h := range hits[0] {
				p := map[string]any{"id": h.ID, "score": 1 - h.Distance}
				if s.WithPayload {
					p["payload"] = h.Entity
				}
				result[i] = append(result[i], p)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestStorageContract(t *testing.T) {
	indextest.Run(t, func(t *testing.T) domain.VectorIndex {
		return NewStorage(Config{URL: fakeServer(t).URL})
	})
}

func TestAPIKeyHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("api-key")
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL + "/", APIKey: "secret"})
	ok, err := s.HasCollection(context.Background(), "docs")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "secret", got)
}

func TestServerErrorIsNotAbsence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewStorage(Config{URL: srv.URL}).HasCollection(context.Background(), "docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestLegacyDuplicateCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"Wrong input: Collection docs already exists!"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewStorage(Config{URL: srv.URL}).CreateCollection(context.Background(), "docs", 4)
	assert.ErrorIs(t, err, domain.ErrCollectionExists)
}

func TestScoreToDistance(t *testing.T) {
	assert.InDelta(t, 0, scoreToDistance(1.0000001), 1e-9)
	assert.InDelta(t, 0.25, scoreToDistance(0.75), 1e-9)
	assert.InDelta(t, 2, scoreToDistance(-1.5), 1e-9)
}
