package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"semsearch/internal/corpus"
	"semsearch/internal/domain"
)

// State is the query state of a Session.
type State int

const (
	// Idle means there is no active query.
	Idle State = iota
	// Active means a query is set and its results are displayed.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

const (
	DefaultTopK = 3
	MaxTopK     = 8
)

// Session holds one user's query state and re-runs the search when it
// changes. Each transition runs to completion, search included, before
// returning. A Session is not safe for concurrent use.
type Session struct {
	searcher   domain.Searcher
	corpusSize int
	maxTopK    int
	logger     *zap.Logger

	state  State
	query  string
	topK   int
	result domain.SearchResult
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithTopK sets the initial number of results.
func WithTopK(k int) SessionOption {
	return func(s *Session) { s.topK = k }
}

// WithMaxTopK sets the upper bound of the results control.
func WithMaxTopK(k int) SessionOption {
	return func(s *Session) {
		if k > 0 {
			s.maxTopK = k
		}
	}
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession starts an idle session over a corpus of corpusSize documents.
func NewSession(searcher domain.Searcher, corpusSize int, opts ...SessionOption) *Session {
	s := &Session{
		searcher:   searcher,
		corpusSize: corpusSize,
		maxTopK:    MaxTopK,
		topK:       DefaultTopK,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.topK = domain.ClampTopK(s.topK, s.TopKLimit())
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Query returns the current query text, empty when idle.
func (s *Session) Query() string { return s.query }

// TopK returns the number of results requested per search.
func (s *Session) TopK() int { return s.topK }

// Result returns the results of the last successful search.
func (s *Session) Result() domain.SearchResult { return s.result }

// TopKLimit is the largest topK the session accepts.
func (s *Session) TopKLimit() int {
	if s.corpusSize < s.maxTopK {
		return max(1, s.corpusSize)
	}
	return s.maxTopK
}

// EditText applies direct text input. Unchanged text is a no-op; text that
// is empty after trimming returns the session to Idle without searching.
// It reports whether a search ran.
func (s *Session) EditText(ctx context.Context, text string) (bool, error) {
	q := strings.TrimSpace(text)
	if q == s.query {
		return false, nil
	}
	if q == "" {
		s.state = Idle
		s.query = ""
		s.result = domain.SearchResult{}
		return false, nil
	}
	return s.activate(ctx, q)
}

// SelectShortcut sets the preset query and always searches, even when the
// preset equals the current query.
func (s *Session) SelectShortcut(ctx context.Context, preset corpus.Preset) (bool, error) {
	q := strings.TrimSpace(preset.Query)
	if q == "" {
		return false, domain.ErrEmptyQuery
	}
	return s.activate(ctx, q)
}

// SetTopK changes the number of results, clamped to [1, TopKLimit]. An active
// session re-runs its query when the value changes.
func (s *Session) SetTopK(ctx context.Context, k int) (bool, error) {
	k = domain.ClampTopK(k, s.TopKLimit())
	if k == s.topK {
		return false, nil
	}
	prev := s.topK
	s.topK = k
	if s.state != Active {
		return false, nil
	}
	ok, err := s.activate(ctx, s.query)
	if err != nil {
		s.topK = prev
	}
	return ok, err
}

// activate searches q and enters Active(q). On failure the session keeps
// its previous state so the user can retry.
func (s *Session) activate(ctx context.Context, q string) (bool, error) {
	res, err := s.searcher.Search(ctx, q, s.topK)
	if err != nil {
		s.logger.Warn("search failed; keeping previous state",
			zap.String("query", q),
			zap.String("previous_query", s.query),
			zap.Error(err),
		)
		return false, err
	}
	s.state = Active
	s.query = q
	s.result = res
	return true, nil
}
