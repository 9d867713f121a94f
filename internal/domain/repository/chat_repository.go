package repository

import (
	"context"

	"classifieds/internal/domain/entity"
)

// SessionUpdate lists the only session fields a client may change.
type SessionUpdate struct {
	IsActive *bool
}

type ChatRepository interface {
	// FindOrCreate inserts session unless a document with its id already
	// exists, in which case the stored session is returned. created reports
	// which of the two happened.
	FindOrCreate(ctx context.Context, session *entity.ChatSession) (stored *entity.ChatSession, created bool, err error)
	GetByID(ctx context.Context, id string) (*entity.ChatSession, error)
	// ListActiveByUserID returns active sessions without their message logs.
	ListActiveByUserID(ctx context.Context, userID string) ([]*entity.ChatSession, error)
	// Mutate applies fn to the current stored state and persists the result
	// atomically. When fn returns an error nothing is written.
	Mutate(ctx context.Context, id string, fn func(session *entity.ChatSession) error) (*entity.ChatSession, error)
	Update(ctx context.Context, id string, update SessionUpdate) error
}
