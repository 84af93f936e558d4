// Package session holds the concurrent directory of running matches.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"truco/internal/match"
)

// Registry is a thread-safe map from match code to running match instance.
// Constructed once at process start and injected where needed.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*match.Match
	log     zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		matches: make(map[string]*match.Match),
		log:     log.With().Str("component", "session").Logger(),
	}
}

// TryAdd registers a match under its code. Returns false, without
// replacing, when the code already holds a match.
func (r *Registry) TryAdd(code string, m *match.Match) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.matches[code]; exists {
		r.log.Warn().Str("match", code).Msg("match code already registered")
		return false
	}
	r.matches[code] = m
	return true
}

// TryGet returns the match registered under code.
func (r *Registry) TryGet(code string) (*match.Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[code]
	return m, ok
}

// TryRemove drops the match registered under code.
func (r *Registry) TryRemove(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[code]; !ok {
		return false
	}
	delete(r.matches, code)
	return true
}

// AbortAndRemove aborts the match in favor of the team opposing the leaving
// participant, then removes the entry. Removal happens even when the abort
// notification path fails.
func (r *Registry) AbortAndRemove(ctx context.Context, code string, leavingID int64) bool {
	m, ok := r.TryGet(code)
	if !ok {
		return false
	}
	if err := m.Abort(ctx, leavingID); err != nil {
		r.log.Warn().Err(err).Str("match", code).Int64("player", leavingID).
			Msg("abort failed, removing match anyway")
	}
	return r.TryRemove(code)
}

// Len returns the number of live matches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}
