package repository

import (
	"context"
	"sync"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewMemoryUserRepository() repository.UserRepository {
	return &memoryUserRepository{
		users: make(map[string]*entity.User),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *entity.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	c := *user
	return &c, nil
}
