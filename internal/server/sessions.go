package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"semsearch/internal/metrics"
	"semsearch/internal/service"
)

// sessionEntry serializes access to one Session.
type sessionEntry struct {
	mu       sync.Mutex
	session  *service.Session
	lastUsed time.Time
}

type sessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*sessionEntry
	now     func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{ttl: ttl, entries: make(map[string]*sessionEntry), now: time.Now}
}

func (st *sessionStore) add(s *service.Session) string {
	id := uuid.NewString()
	st.mu.Lock()
	st.entries[id] = &sessionEntry{session: s, lastUsed: st.now()}
	st.mu.Unlock()
	metrics.SessionsActive.Inc()
	return id
}

// with runs fn holding the session's lock. It reports false for unknown ids.
func (st *sessionStore) with(id string, fn func(s *service.Session)) bool {
	st.mu.Lock()
	e, ok := st.entries[id]
	if ok {
		e.lastUsed = st.now()
	}
	st.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
	return true
}

func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.entries[id]; !ok {
		return false
	}
	delete(st.entries, id)
	metrics.SessionsActive.Dec()
	return true
}

// expire drops sessions idle for longer than the TTL and returns how many.
func (st *sessionStore) expire() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, e := range st.entries {
		if e.lastUsed.Before(cutoff) {
			delete(st.entries, id)
			n++
		}
	}
	metrics.SessionsActive.Sub(float64(n))
	return n
}

func (st *sessionStore) janitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st.expire()
		}
	}
}
