package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Config holds session lifecycle settings.
type Config struct {
	// Timeout is the sliding inactivity window.
	Timeout time.Duration
	// MaxLifetime is the absolute cap: ExpiresAt never exceeds
	// CreatedAt + MaxLifetime regardless of activity.
	MaxLifetime time.Duration
	// MaxPerUser caps concurrent active sessions per user; the oldest
	// is evicted on overflow.
	MaxPerUser int
}

// Manager drives the session state machine: Active sessions slide
// forward on each validated access and terminate on timeout, logout,
// or admin revocation. Expiry is evaluated lazily at validate time
// rather than by a background reaper.
type Manager struct {
	cfg   Config
	store Store

	now func() time.Time
}

func NewManager(cfg Config, store Store) (*Manager, error) {
	if cfg.Timeout <= 0 || cfg.MaxLifetime <= 0 {
		return nil, errors.New("session timeout and max lifetime must be positive")
	}
	if cfg.Timeout > cfg.MaxLifetime {
		return nil, errors.New("session timeout exceeds max lifetime")
	}
	if cfg.MaxPerUser <= 0 {
		return nil, errors.New("session per-user cap must be positive")
	}
	if store == nil {
		return nil, errors.New("session store required")
	}
	return &Manager{cfg: cfg, store: store, now: time.Now}, nil
}

// Create starts a new session, evicting the user's oldest active
// sessions when the concurrency cap would be exceeded. The IDs of the
// evicted sessions are returned so the caller can record them. Session
// IDs are ULIDs, so creation order is their lexical order.
func (m *Manager) Create(ctx context.Context, userID string, meta Metadata) (*Session, []string, error) {
	if userID == "" {
		return nil, nil, errors.New("session requires a user id")
	}
	now := m.now()

	evicted, err := m.evictOverflow(ctx, userID, now)
	if err != nil {
		return nil, nil, err
	}

	s := &Session{
		ID:           ulid.Make().String(),
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    m.slideTarget(now, now),
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
		Active:       true,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, nil, err
	}
	cp := *s
	return &cp, evicted, nil
}

func (m *Manager) evictOverflow(ctx context.Context, userID string, now time.Time) ([]string, error) {
	active, err := m.store.ActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	live := active[:0]
	for _, s := range active {
		if m.expired(s, now) {
			_ = m.store.MarkInactive(ctx, s.ID, now)
			continue
		}
		live = append(live, s)
	}

	// ActiveByUser returns oldest first. Sessions that lapsed on their
	// own are not evictions and are not reported.
	overflow := len(live) - (m.cfg.MaxPerUser - 1)
	var evicted []string
	for i := 0; i < overflow; i++ {
		if err := m.store.MarkInactive(ctx, live[i].ID, now); err != nil {
			return nil, err
		}
		evicted = append(evicted, live[i].ID)
	}
	return evicted, nil
}

func (m *Manager) expired(s *Session, now time.Time) bool {
	return !now.Before(s.ExpiresAt) || !now.Before(s.CreatedAt.Add(m.cfg.MaxLifetime))
}

func (m *Manager) slideTarget(createdAt, now time.Time) time.Time {
	target := now.Add(m.cfg.Timeout)
	cap := createdAt.Add(m.cfg.MaxLifetime)
	if target.After(cap) {
		return cap
	}
	return target
}

// Validate checks the session and, on success, records the activity
// and slides the expiry forward, never beyond the absolute cap. An
// expired session is marked inactive on the spot.
func (m *Manager) Validate(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, ErrInactive
	}

	now := m.now()
	if m.expired(s, now) {
		_ = m.store.MarkInactive(ctx, id, now)
		return nil, ErrExpired
	}

	s.LastActivity = now
	s.ExpiresAt = m.slideTarget(s.CreatedAt, now)
	if err := m.store.Touch(ctx, id, s.LastActivity, s.ExpiresAt); err != nil {
		return nil, err
	}
	return s, nil
}

// Invalidate transitions the session to Inactive. Idempotent, tolerant
// of retries from at-least-once callers.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	return m.store.MarkInactive(ctx, id, m.now())
}

// InvalidateAllForUser ends every active session for the user. Partial
// failure is surfaced, never swallowed: the returned error names each
// session that could not be transitioned so the caller can retry.
func (m *Manager) InvalidateAllForUser(ctx context.Context, userID string) error {
	active, err := m.store.ActiveByUser(ctx, userID)
	if err != nil {
		return err
	}

	now := m.now()
	var errs []error
	for _, s := range active {
		if err := m.store.MarkInactive(ctx, s.ID, now); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}
