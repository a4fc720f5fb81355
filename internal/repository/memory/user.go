package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/authgate/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

// UserRepository keeps users in process memory. Data is lost on restart.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]model.User
	byEmail map[string]uuid.UUID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[uuid.UUID]model.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) Create(_ context.Context, user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return model.ErrAlreadyExists
	}
	if _, ok := r.byID[user.ID]; ok {
		return model.ErrAlreadyExists
	}

	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return user, nil
}
