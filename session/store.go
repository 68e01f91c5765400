package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists sessions with point lookup by ID and a secondary
// lookup by user. Implementations must make writes immediately visible
// to concurrent readers; Touch and MarkInactive must be atomic so an
// invalidation can never be overwritten by a concurrent slide.
type Store interface {
	// Save inserts or replaces the session record.
	Save(ctx context.Context, s *Session) error
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Touch updates LastActivity and ExpiresAt only while the session is
	// still active; returns ErrNotFound or ErrInactive otherwise.
	Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time) error
	// MarkInactive transitions the session to Inactive. Idempotent: a
	// second call, or a call for a missing session, is a no-op.
	MarkInactive(ctx context.Context, id string, at time.Time) error
	// ActiveByUser lists the user's active sessions.
	ActiveByUser(ctx context.Context, userID string) ([]*Session, error)
}

// MemoryStore is a mutex-guarded in-memory store for single-process
// deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Session
	byUser map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Session),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	cp := *s

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[cp.ID] = &cp
	ids, ok := m.byUser[cp.UserID]
	if !ok {
		ids = make(map[string]struct{})
		m.byUser[cp.UserID] = ids
	}
	ids[cp.ID] = struct{}{}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, lastActivity, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !s.Active {
		return ErrInactive
	}
	s.LastActivity = lastActivity
	s.ExpiresAt = expiresAt
	return nil
}

func (m *MemoryStore) MarkInactive(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok || !s.Active {
		return nil
	}
	s.Active = false
	s.InvalidatedAt = at
	return nil
}

func (m *MemoryStore) ActiveByUser(_ context.Context, userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byUser[userID]
	out := make([]*Session, 0, len(ids))
	for id := range ids {
		s, ok := m.byID[id]
		if !ok || !s.Active {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
