// Package auth provides a session-backed AuthService on top of a ProfileStore.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rankview/core"
	"rankview/engine"
)

// SessionService keeps at most one signed-in user and mirrors its profile from
// the store. CurrentUser reads the cached copy and never touches the store.
type SessionService struct {
	store  engine.ProfileStore
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	user *core.User
}

type Option func(*SessionService)

func WithLogger(l *slog.Logger) Option {
	return func(s *SessionService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSessionService(store engine.ProfileStore, opts ...Option) *SessionService {
	if store == nil {
		panic("auth: NewSessionService requires a profile store")
	}
	s := &SessionService{store: store, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login loads the user's profile and makes it the current session.
func (s *SessionService) Login(ctx context.Context, user core.UserID) error {
	id, err := core.NormalizeUserID(user)
	if err != nil {
		return core.NewAuthError("login", core.AuthCodeValidation, err)
	}
	u, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return core.NewAuthError("login", core.AuthCodeUnavailable, err)
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	s.logger.Info("session started", "user", id)
	return nil
}

func (s *SessionService) CurrentUser() (*core.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	cp := s.user.Clone()
	return &cp, true
}

// UpdateProfile validates and persists the edit for the current user, then
// refreshes the cached session.
func (s *SessionService) UpdateProfile(ctx context.Context, fullName string, bio *string) error {
	current, ok := s.CurrentUser()
	if !ok {
		return core.NewAuthError("update_profile", core.AuthCodeNoSession, core.ErrNoSession)
	}
	upd := core.ProfileUpdate{FullName: fullName, Bio: bio}.Normalize()
	if err := upd.Validate(); err != nil {
		return core.NewAuthError("update_profile", core.AuthCodeValidation, err)
	}
	next := upd.Apply(*current)
	next.UpdatedAt = s.now().UTC()
	if err := s.store.SaveProfile(ctx, next); err != nil {
		return core.NewAuthError("update_profile", core.AuthCodeUnavailable, fmt.Errorf("save profile: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a concurrent logout wins over the update
	if s.user != nil && s.user.ID == next.ID {
		s.user = &next
	}
	return nil
}

// Logout drops the session. Logging out without a session is not an error.
func (s *SessionService) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return core.NewAuthError("logout", core.AuthCodeUnavailable, err)
	}
	s.mu.Lock()
	prev := s.user
	s.user = nil
	s.mu.Unlock()
	if prev != nil {
		s.logger.Info("session ended", "user", prev.ID)
	}
	return nil
}

var (
	_ engine.AuthService    = (*SessionService)(nil)
	_ engine.SessionStarter = (*SessionService)(nil)
)
