package mfa

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

// Enrollment is the persisted TOTP state for one user. An unverified
// enrollment is "pending": it expires on its own if the first
// verification never completes, so no orphaned secret outlives setup.
// BackupCodes holds hex-encoded SHA-256 hashes; plaintext codes are
// shown once at setup and never persisted.
type Enrollment struct {
	UserID       string    `json:"user_id"`
	Secret       string    `json:"secret"`
	BackupCodes  []string  `json:"backup_codes"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastUsedStep int64     `json:"last_used_step"`
}

// Store persists enrollments. Pending and enrolled records are kept
// separately so an in-flight setup never disturbs a working secret.
// ConsumeBackupCode must remove the matched code atomically with the
// success it reports.
type Store interface {
	SavePending(ctx context.Context, e *Enrollment, ttl time.Duration) error
	Pending(ctx context.Context, userID string) (*Enrollment, error)
	DeletePending(ctx context.Context, userID string) error

	SaveEnrolled(ctx context.Context, e *Enrollment) error
	Enrolled(ctx context.Context, userID string) (*Enrollment, error)
	DeleteEnrolled(ctx context.Context, userID string) error

	ConsumeBackupCode(ctx context.Context, userID, hashHex string) (bool, error)
}

// MemoryStore is a mutex-guarded in-memory store for single-process
// deployments. Pending TTLs are enforced lazily at read time.
type MemoryStore struct {
	mu       sync.Mutex
	pending  map[string]*Enrollment
	enrolled map[string]*Enrollment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending:  make(map[string]*Enrollment),
		enrolled: make(map[string]*Enrollment),
	}
}

func (m *MemoryStore) SavePending(_ context.Context, e *Enrollment, ttl time.Duration) error {
	cp := *e
	cp.BackupCodes = append([]string(nil), e.BackupCodes...)
	cp.ExpiresAt = time.Now().Add(ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[cp.UserID] = &cp
	return nil
}

func (m *MemoryStore) Pending(_ context.Context, userID string) (*Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.pending[userID]
	if !ok {
		return nil, errNotFound
	}
	if time.Now().After(e.ExpiresAt) {
		delete(m.pending, userID)
		return nil, errNotFound
	}
	cp := *e
	cp.BackupCodes = append([]string(nil), e.BackupCodes...)
	return &cp, nil
}

func (m *MemoryStore) DeletePending(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, userID)
	return nil
}

func (m *MemoryStore) SaveEnrolled(_ context.Context, e *Enrollment) error {
	cp := *e
	cp.BackupCodes = append([]string(nil), e.BackupCodes...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrolled[cp.UserID] = &cp
	return nil
}

func (m *MemoryStore) Enrolled(_ context.Context, userID string) (*Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.enrolled[userID]
	if !ok {
		return nil, errNotFound
	}
	cp := *e
	cp.BackupCodes = append([]string(nil), e.BackupCodes...)
	return &cp, nil
}

func (m *MemoryStore) DeleteEnrolled(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.enrolled, userID)
	return nil
}

func (m *MemoryStore) ConsumeBackupCode(_ context.Context, userID, hashHex string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.enrolled[userID]
	if !ok {
		return false, nil
	}
	for i, stored := range e.BackupCodes {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(hashHex)) == 1 {
			e.BackupCodes = append(e.BackupCodes[:i], e.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
