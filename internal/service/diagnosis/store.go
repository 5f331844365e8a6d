// Package diagnosis runs diagnostic coaching sessions: it stores their
// conversation contexts, chooses the next question and orchestrates the
// classifiers and the reply generator for every user message.
package diagnosis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	model "github.com/capcoach/capcoach/backend/internal/model/diagnosis"
)

// StoreOptions bounds the store. Zero values disable the limit.
type StoreOptions struct {
	TTL         time.Duration
	MaxSessions int
	Now         func() time.Time
}

// SessionSnapshot is a detached copy of a session.
type SessionSnapshot struct {
	Context    *model.ConversationContext `json:"context"`
	CreatedAt  time.Time                  `json:"createdAt"`
	LastActive time.Time                  `json:"lastActive"`
	Closed     bool                       `json:"closed"`
}

// Store keeps conversation contexts in memory. Each session has its own lock;
// the map lock only guards create, lookup, delete and eviction.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionEntry
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

type sessionEntry struct {
	mu         sync.Mutex
	context    *model.ConversationContext
	summary    *model.DiagnosisSummary
	createdAt  time.Time
	lastActive atomic.Int64
}

// NewStore creates an empty store.
func NewStore(opts StoreOptions) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions:    make(map[string]*sessionEntry),
		ttl:         opts.TTL,
		maxSessions: opts.MaxSessions,
		now:         now,
	}
}

// Create registers an empty context under id.
func (s *Store) Create(id string) error {
	if id == "" {
		return fmt.Errorf("create session: empty id")
	}

	now := s.now()
	entry := &sessionEntry{
		context:   model.NewConversationContext(id),
		createdAt: now.UTC(),
	}
	entry.lastActive.Store(now.UnixNano())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return ErrDuplicateSession
	}
	s.sessions[id] = entry

	if s.maxSessions > 0 && len(s.sessions) > s.maxSessions {
		s.evictOldestLocked(len(s.sessions)-s.maxSessions, id)
	}
	return nil
}

// Get returns a deep copy of the context.
func (s *Store) Get(id string) (*model.ConversationContext, error) {
	var out *model.ConversationContext
	err := s.withEntry(id, func(e *sessionEntry) error {
		out = e.context.Clone()
		return nil
	})
	return out, err
}

// Snapshot returns a deep copy of the context plus session metadata.
func (s *Store) Snapshot(id string) (SessionSnapshot, error) {
	var out SessionSnapshot
	err := s.withEntry(id, func(e *sessionEntry) error {
		out = SessionSnapshot{
			Context:    e.context.Clone(),
			CreatedAt:  e.createdAt,
			LastActive: time.Unix(0, e.lastActive.Load()).UTC(),
			Closed:     e.summary != nil,
		}
		return nil
	})
	return out, err
}

// AddTurn appends one turn and reports whether it entered the history.
func (s *Store) AddTurn(id string, turn model.ConversationTurn) (bool, error) {
	var stored bool
	err := s.Update(id, func(c *model.ConversationContext) error {
		stored = c.AddTurn(turn)
		return nil
	})
	return stored, err
}

// Update runs fn on the live context under the session lock. Closed sessions
// reject updates. fn must not block.
func (s *Store) Update(id string, fn func(*model.ConversationContext) error) error {
	return s.withEntry(id, func(e *sessionEntry) error {
		if e.summary != nil {
			return ErrSessionClosed
		}
		return fn(e.context)
	})
}

// Clear drops the history and summaries and reopens a closed session.
func (s *Store) Clear(id string) error {
	return s.withEntry(id, func(e *sessionEntry) error {
		e.context.Clear()
		e.summary = nil
		return nil
	})
}

// Close builds the summary once. Later calls return the stored one.
func (s *Store) Close(id string, build func(*model.ConversationContext) model.DiagnosisSummary) (model.DiagnosisSummary, error) {
	var out model.DiagnosisSummary
	err := s.withEntry(id, func(e *sessionEntry) error {
		if e.summary == nil {
			summary := build(e.context)
			e.summary = &summary
		}
		out = e.summary.Clone()
		return nil
	})
	return out, err
}

// Summary returns the closing summary, if the session is closed.
func (s *Store) Summary(id string) (model.DiagnosisSummary, bool, error) {
	var (
		out    model.DiagnosisSummary
		closed bool
	)
	err := s.withEntry(id, func(e *sessionEntry) error {
		if e.summary != nil {
			out = e.summary.Clone()
			closed = true
		}
		return nil
	})
	return out, closed, err
}

// Delete removes the session.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Evict removes idle sessions past the TTL, then the least recently used ones
// above MaxSessions. It returns how many sessions were removed.
func (s *Store) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	if s.ttl > 0 {
		cutoff := s.now().Add(-s.ttl).UnixNano()
		for id, entry := range s.sessions {
			if entry.lastActive.Load() < cutoff {
				delete(s.sessions, id)
				removed++
			}
		}
	}
	if s.maxSessions > 0 && len(s.sessions) > s.maxSessions {
		removed += s.evictOldestLocked(len(s.sessions)-s.maxSessions, "")
	}
	return removed
}

// RunJanitor calls Evict every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || (s.ttl <= 0 && s.maxSessions <= 0) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				log.Info().Str("component", "session_store").Int("evicted", n).Int("active", s.Len()).Msg("evicted idle sessions")
			}
		}
	}
}

// evictOldestLocked must be called with s.mu held.
func (s *Store) evictOldestLocked(count int, keep string) int {
	type candidate struct {
		id         string
		lastActive int64
	}
	candidates := make([]candidate, 0, len(s.sessions))
	for id, entry := range s.sessions {
		if id == keep {
			continue
		}
		candidates = append(candidates, candidate{id: id, lastActive: entry.lastActive.Load()})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].lastActive == candidates[j].lastActive {
			return candidates[i].id < candidates[j].id
		}
		return candidates[i].lastActive < candidates[j].lastActive
	})

	removed := 0
	for _, c := range candidates {
		if removed == count {
			break
		}
		delete(s.sessions, c.id)
		removed++
	}
	return removed
}

func (s *Store) lookup(id string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	return entry, ok
}

func (s *Store) withEntry(id string, fn func(*sessionEntry) error) error {
	entry, ok := s.lookup(id)
	if !ok {
		return ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	// The session may have been deleted or evicted while we waited.
	if !s.isCurrent(id, entry) {
		return ErrSessionNotFound
	}
	entry.lastActive.Store(s.now().UnixNano())
	return fn(entry)
}

func (s *Store) isCurrent(id string, entry *sessionEntry) bool {
	current, ok := s.lookup(id)
	return ok && current == entry
}
