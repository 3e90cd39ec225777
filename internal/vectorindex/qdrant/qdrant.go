// Package qdrant talks to a Qdrant server over its REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"semsearch/internal/domain"
	"semsearch/internal/vectorindex/flat"
)

// Storage is a minimal REST client to Qdrant. Collections use cosine distance.
type Storage struct {
	url    string
	apiKey string
	client *http.Client
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

var _ domain.VectorIndex = (*Storage)(nil)

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// statusError is a non-2xx reply from the server.
type statusError struct {
	method, path string
	code         int
	body         string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.method, e.path, e.code, e.body)
}

func (s *Storage) HasCollection(ctx context.Context, name string) (bool, error) {
	_, err := s.DescribeCollection(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrCollectionAbsent) {
		return false, nil
	}
	return false, err
}

func (s *Storage) CreateCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err := s.do(ctx, http.MethodPut, "/collections/"+name, body, nil)
	if isStatus(err, http.StatusConflict) || alreadyExists(err) {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionExists)
	}
	return err
}

func (s *Storage) DescribeCollection(ctx context.Context, name string) (domain.CollectionInfo, error) {
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections/"+name, nil, &resp); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return domain.CollectionInfo{}, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
		}
		return domain.CollectionInfo{}, err
	}
	return domain.CollectionInfo{
		Name:      name,
		Dimension: resp.Result.Config.Params.Vectors.Size,
		Count:     resp.Result.PointsCount,
	}, nil
}

func (s *Storage) Upsert(ctx context.Context, name string, records []domain.Record) error {
	info, err := s.DescribeCollection(ctx, name)
	if err != nil {
		return err
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		if len(r.Vector) != info.Dimension {
			return fmt.Errorf("record %d: %w", r.ID, &flat.DimensionError{Got: len(r.Vector), Want: info.Dimension})
		}
		points[i] = map[string]any{
			"id":      r.ID,
			"vector":  r.Vector,
			"payload": map[string]any{domain.FieldText: r.Text},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", body, nil)
}

func (s *Storage) Search(ctx context.Context, name string, vectors [][]float32, limit int, outputFields []string) ([][]domain.Hit, error) {
	withPayload := len(outputFields) > 0
	searches := make([]map[string]any, len(vectors))
	for i, v := range vectors {
		searches[i] = map[string]any{
			"vector":       v,
			"limit":        limit,
			"with_payload": withPayload,
		}
	}
	var resp struct {
		Result [][]struct {
			ID      int64          `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, "/collections/"+name+"/points/search/batch", map[string]any{"searches": searches}, &resp)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
		}
		return nil, err
	}
	out := make([][]domain.Hit, len(vectors))
	for i := range out {
		out[i] = []domain.Hit{}
		if i >= len(resp.Result) {
			continue
		}
		for _, p := range resp.Result[i] {
			text, _ := p.Payload[domain.FieldText].(string)
			out[i] = append(out[i], domain.Hit{
				ID:       p.ID,
				Distance: scoreToDistance(p.Score),
				Entity:   flat.Entity(text, outputFields),
			})
		}
	}
	return out, nil
}

func (s *Storage) DropCollection(ctx context.Context, name string) error {
	err := s.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
	if isStatus(err, http.StatusNotFound) {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionAbsent)
	}
	return err
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// scoreToDistance turns a cosine similarity score into 1 - score, clamped to [0, 2].
func scoreToDistance(score float64) float64 {
	d := 1 - score
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

func (s *Storage) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{method: method, path: path, code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func isStatus(err error, code int) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == code
}

// alreadyExists matches the 400 older servers send for a duplicate create.
func alreadyExists(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusBadRequest && strings.Contains(se.body, "already exists")
}
