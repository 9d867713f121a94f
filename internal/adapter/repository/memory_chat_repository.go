package repository

import (
	"context"
	"sync"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

// memoryChatRepository keeps sessions in process. Each session has its own
// lock so unrelated sessions never contend.
type memoryChatRepository struct {
	mu       sync.RWMutex
	sessions map[string]*entity.ChatSession
	locks    map[string]*sync.Mutex
}

func NewMemoryChatRepository() repository.ChatRepository {
	return &memoryChatRepository{
		sessions: make(map[string]*entity.ChatSession),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (r *memoryChatRepository) FindOrCreate(ctx context.Context, session *entity.ChatSession) (*entity.ChatSession, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, errors.StorageUnavailable("Failed to create chat", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[session.ID]; ok {
		if !existing.SameConversation(session) {
			return nil, false, errors.Conflict("Chat id belongs to another conversation")
		}
		return cloneSession(existing), false, nil
	}
	r.sessions[session.ID] = cloneSession(session)
	r.locks[session.ID] = &sync.Mutex{}
	return cloneSession(session), true, nil
}

func (r *memoryChatRepository) GetByID(ctx context.Context, id string) (*entity.ChatSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}
	return cloneSession(session), nil
}

func (r *memoryChatRepository) ListActiveByUserID(ctx context.Context, userID string) ([]*entity.ChatSession, error) {
	r.mu.RLock()
	var sessions []*entity.ChatSession
	for _, session := range r.sessions {
		if session.IsActive && session.HasParticipant(userID) {
			sessions = append(sessions, cloneSession(session).Summary())
		}
	}
	r.mu.RUnlock()

	SortByLastMessage(sessions)
	return sessions, nil
}

func (r *memoryChatRepository) Mutate(ctx context.Context, id string, fn func(session *entity.ChatSession) error) (*entity.ChatSession, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("Chat", nil)
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	working := cloneSession(r.sessions[id])
	r.mu.RUnlock()

	if err := fn(working); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.StorageUnavailable("Failed to update chat", err)
	}

	r.mu.Lock()
	r.sessions[id] = cloneSession(working)
	r.mu.Unlock()

	return working, nil
}

func (r *memoryChatRepository) Update(ctx context.Context, id string, update repository.SessionUpdate) error {
	_, err := r.Mutate(ctx, id, func(session *entity.ChatSession) error {
		if update.IsActive != nil {
			session.IsActive = *update.IsActive
		}
		session.UpdatedAt = time.Now()
		return nil
	})
	return err
}

func cloneSession(s *entity.ChatSession) *entity.ChatSession {
	c := *s
	c.Participants = append([]string(nil), s.Participants...)
	if s.Context != nil {
		ctx := *s.Context
		c.Context = &ctx
	}
	if s.LastMessage != nil {
		last := *s.LastMessage
		c.LastMessage = &last
	}
	if s.Messages != nil {
		c.Messages = make([]entity.Message, len(s.Messages))
		for i, m := range s.Messages {
			c.Messages[i] = cloneMessage(m)
		}
	}
	return &c
}

func cloneMessage(m entity.Message) entity.Message {
	if m.Media != nil {
		media := *m.Media
		m.Media = &media
	}
	if m.ReadAt != nil {
		readAt := *m.ReadAt
		m.ReadAt = &readAt
	}
	return m
}
