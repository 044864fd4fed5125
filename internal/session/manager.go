package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/handoff/core/logger"
)

// Manager wraps a Store with id generation and timestamps.
type Manager struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager on store.
func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	m := &Manager{
		store:  store,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Get returns the session stored under id.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return m.store.Get(ctx, id)
}

// LoadOrCreate returns the session stored under id, or a new active one
// when it does not exist. An empty id gets a fresh one. The new session is
// not persisted until Save. userID defaults to the session id.
func (m *Manager) LoadOrCreate(ctx context.Context, id, userID string) (*Session, bool, error) {
	if id != "" {
		s, err := m.store.Get(ctx, id)
		switch {
		case err == nil:
			if s.UserID == "" && userID != "" {
				s.UserID = userID
			}
			return s, false, nil
		case !errors.Is(err, ErrNotFound):
			return nil, false, err
		}
	} else {
		id = uuid.NewString()
	}

	if userID == "" {
		userID = id
	}

	m.logger.InfoContext(ctx, "session created",
		logger.Component("session"), logger.SessionID(id))
	return New(id, userID, m.now()), true, nil
}

// Save stamps UpdatedAt and persists s.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}

	now := m.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	return m.store.Save(ctx, s)
}

// Delete removes the session stored under id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "session deleted",
		logger.Component("session"), logger.SessionID(id))
	return nil
}
