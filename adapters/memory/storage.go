package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rankview/core"
)

// Store is a concurrent in-memory ProfileStore implementation.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu   sync.Mutex
	user core.User
}

// New returns a store seeded with users.
func New(users ...core.User) *Store {
	s := &Store{}
	for _, u := range users {
		_ = s.SaveProfile(context.Background(), u)
	}
	return s
}

func (s *Store) GetProfile(_ context.Context, user core.UserID) (core.User, error) {
	id, err := core.NormalizeUserID(user)
	if err != nil {
		return core.User{}, err
	}
	v, ok := s.users.Load(id)
	if !ok {
		return core.User{}, fmt.Errorf("profile %s: %w", user, core.ErrNotFound)
	}
	rec := v.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.user.Clone(), nil
}

func (s *Store) SaveProfile(_ context.Context, u core.User) error {
	id, err := core.NormalizeUserID(u.ID)
	if err != nil {
		return err
	}
	u.ID = id
	now := time.Now().UTC()
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	fresh := &userRecord{user: u.Clone()}
	if fresh.user.CreatedAt.IsZero() {
		fresh.user.CreatedAt = now
	}
	actual, loaded := s.users.LoadOrStore(id, fresh)
	if !loaded {
		return nil
	}
	rec := actual.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	created := rec.user.CreatedAt
	rec.user = u.Clone()
	if rec.user.CreatedAt.IsZero() {
		rec.user.CreatedAt = created
	}
	return nil
}

// Len reports the number of stored profiles.
func (s *Store) Len() int {
	n := 0
	s.users.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

var _ interface {
	GetProfile(context.Context, core.UserID) (core.User, error)
	SaveProfile(context.Context, core.User) error
} = (*Store)(nil)
