package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"semsearch/internal/corpus"
	"semsearch/internal/domain"
	"semsearch/internal/service"
)

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type queryRequest struct {
	Text string `json:"text"`
}

type topKRequest struct {
	TopK int `json:"top_k"`
}

type document struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type sessionView struct {
	ID        string              `json:"id"`
	State     string              `json:"state"`
	Query     string              `json:"query"`
	TopK      int                 `json:"top_k"`
	TopKLimit int                 `json:"top_k_limit"`
	Searched  bool                `json:"searched"`
	Result    domain.SearchResult `json:"result"`
	Warning   string              `json:"warning,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs := make([]document, len(s.deps.Documents))
	for i, d := range s.deps.Documents {
		docs[i] = document{ID: int64(i), Text: d}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"collection": s.deps.Collection,
		"documents":  docs,
	})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.deps.Presets)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q := strings.TrimSpace(req.Query)
	if q == "" {
		s.respondErr(w, domain.ErrEmptyQuery)
		return
	}
	if req.TopK == 0 {
		req.TopK = s.deps.DefaultTopK
	}
	topK := domain.ClampTopK(req.TopK, min(s.deps.MaxTopK, len(s.deps.Documents)))
	s.logger.Debug("search request", zap.String("query", q), zap.Int("top_k", topK))

	res, err := s.deps.Searcher.Search(r.Context(), q, topK)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.deps.NewSession()
	id := s.sessions.add(sess)
	s.logger.Debug("session created", zap.String("session", id))
	s.respondJSON(w, http.StatusCreated, view(id, sess, false, nil))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id string, sess *service.Session) (bool, error) {
		return false, nil
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(chi.URLParam(r, "id")) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.withSession(w, r, func(_ string, sess *service.Session) (bool, error) {
		return sess.EditText(r.Context(), req.Text)
	})
}

func (s *Server) handleSetTopK(w http.ResponseWriter, r *http.Request) {
	var req topKRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.withSession(w, r, func(_ string, sess *service.Session) (bool, error) {
		return sess.SetTopK(r.Context(), req.TopK)
	})
}

func (s *Server) handleShortcut(w http.ResponseWriter, r *http.Request) {
	preset, ok := corpus.FindPreset(s.deps.Presets, chi.URLParam(r, "name"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown shortcut")
		return
	}
	s.withSession(w, r, func(_ string, sess *service.Session) (bool, error) {
		return sess.SelectShortcut(r.Context(), preset)
	})
}

// withSession applies fn to the session named in the URL. A failed search is
// reported with the session's unchanged state and the error's status code.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(id string, sess *service.Session) (bool, error)) {
	id := chi.URLParam(r, "id")
	var (
		v   sessionView
		err error
	)
	found := s.sessions.with(id, func(sess *service.Session) {
		var ran bool
		ran, err = fn(id, sess)
		v = view(id, sess, ran, err)
	})
	if !found {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Warn("session search failed", zap.String("session", id), zap.Error(err))
		s.respondJSON(w, statusFor(err), v)
		return
	}
	s.respondJSON(w, http.StatusOK, v)
}

func view(id string, sess *service.Session, ran bool, err error) sessionView {
	v := sessionView{
		ID:        id,
		State:     sess.State().String(),
		Query:     sess.Query(),
		TopK:      sess.TopK(),
		TopKLimit: sess.TopKLimit(),
		Searched:  ran,
		Result:    sess.Result(),
	}
	switch {
	case err != nil:
		v.Warning = err.Error()
	case ran && sess.Result().Empty():
		v.Warning = "No results found."
	}
	return v
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCollectionAbsent):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDimensionMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, code, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
