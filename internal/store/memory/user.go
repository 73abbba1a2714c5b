package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rikhii20/DoKaka/internal/model"
	"github.com/rikhii20/DoKaka/internal/store"
)

func (s *Store) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(u.Username) == "" {
		return model.User{}, errWithCode("username_required")
	}
	if u.PasswordHash == "" {
		return model.User{}, errWithCode("password_hash_required")
	}

	if _, ok := s.byUsername[u.Username]; ok {
		return model.User{}, store.ErrConflict
	}

	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	s.byUsername[u.Username] = u.ID
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}
