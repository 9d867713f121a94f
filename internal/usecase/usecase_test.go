package usecase

import (
	"context"
	stderrors "errors"
	"sync"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

type publishedMessage struct {
	sessionID string
	message   entity.Message
}

type recordingPublisher struct {
	mu            sync.Mutex
	messages      []publishedMessage
	notifications []*entity.Notification
	notifyErr     error
}

func (p *recordingPublisher) PublishMessageCreated(sessionID string, message *entity.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{sessionID: sessionID, message: *message})
}

func (p *recordingPublisher) PublishNotification(notification *entity.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notifyErr != nil {
		return p.notifyErr
	}
	p.notifications = append(p.notifications, notification)
	return nil
}

func (p *recordingPublisher) messageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *recordingPublisher) notificationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notifications)
}

// failingChatRepository runs the mutation but never persists it.
type failingChatRepository struct {
	repository.ChatRepository
	fail bool
}

func (r *failingChatRepository) Mutate(ctx context.Context, id string, fn func(*entity.ChatSession) error) (*entity.ChatSession, error) {
	if !r.fail {
		return r.ChatRepository.Mutate(ctx, id, fn)
	}
	session, err := r.ChatRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(session); err != nil {
		return nil, err
	}
	return nil, errors.StorageUnavailable("Failed to update chat", stderrors.New("firestore: unavailable"))
}

type staticAccounts map[string]bool

func (a staticAccounts) IsAccountUsable(ctx context.Context, userID string) (bool, error) {
	return a[userID], nil
}
