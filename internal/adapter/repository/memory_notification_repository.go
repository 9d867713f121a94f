package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

type memoryNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*entity.Notification
}

func NewMemoryNotificationRepository() repository.NotificationRepository {
	return &memoryNotificationRepository{
		notifications: make(map[string]*entity.Notification),
	}
}

func (r *memoryNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if err := ctx.Err(); err != nil {
		return errors.StorageUnavailable("Failed to create notification", err)
	}
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[notification.ID] = cloneNotification(notification)
	return nil
}

func (r *memoryNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifications[id]
	if !ok || n.IsDeleted {
		return nil, errors.NotFound("Notification", nil)
	}
	return cloneNotification(n), nil
}

func (r *memoryNotificationRepository) matching(recipientID string, unreadOnly bool) []*entity.Notification {
	var out []*entity.Notification
	for _, n := range r.notifications {
		if n.RecipientID != recipientID || n.IsDeleted {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (r *memoryNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, filter repository.NotificationFilter) ([]*entity.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.matching(recipientID, filter.UnreadOnly)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := filter.Offset
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	page := make([]*entity.Notification, 0, end-start)
	for _, n := range all[start:end] {
		page = append(page, cloneNotification(n))
	}
	return page, total, nil
}

func (r *memoryNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.matching(recipientID, true))), nil
}

func (r *memoryNotificationRepository) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return errors.NotFound("Notification", nil)
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = &readAt
	}
	return nil
}

func (r *memoryNotificationRepository) MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unread := r.matching(recipientID, true)
	for _, n := range unread {
		n.IsRead = true
		at := readAt
		n.ReadAt = &at
	}
	return len(unread), nil
}

func (r *memoryNotificationRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return errors.NotFound("Notification", nil)
	}
	n.IsDeleted = true
	return nil
}

func cloneNotification(n *entity.Notification) *entity.Notification {
	c := *n
	if n.ReadAt != nil {
		readAt := *n.ReadAt
		c.ReadAt = &readAt
	}
	if n.Data != nil {
		c.Data = make(map[string]interface{}, len(n.Data))
		for k, v := range n.Data {
			c.Data[k] = v
		}
	}
	return &c
}
