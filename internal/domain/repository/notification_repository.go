package repository

import (
	"context"
	"time"

	"classifieds/internal/domain/entity"
)

type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)
	// ListByRecipient excludes deleted notifications and orders newest first.
	ListByRecipient(ctx context.Context, recipientID string, filter NotificationFilter) ([]*entity.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, id string, readAt time.Time) error
	MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int, error)
	SoftDelete(ctx context.Context, id string) error
}
