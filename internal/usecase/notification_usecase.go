package usecase

import (
	"context"
	"time"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/internal/infrastructure/metrics"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
	"classifieds/pkg/utils"
)

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	publisher        Publisher
	metrics          *metrics.Collectors
	now              func() time.Time
}

// NewNotificationUseCase accepts a nil publisher, in which case nothing is delivered live.
func NewNotificationUseCase(notificationRepo repository.NotificationRepository, publisher Publisher, collectors *metrics.Collectors) *NotificationUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		publisher:        publisher,
		metrics:          collectors,
		now:              time.Now,
	}
}

type CreateNotificationInput struct {
	RecipientID string                  `json:"recipient_id" validate:"required"`
	SenderID    string                  `json:"sender_id"`
	Type        entity.NotificationType `json:"type" validate:"required"`
	Title       string                  `json:"title" validate:"required,max=200"`
	Message     string                  `json:"message" validate:"max=2000"`
	Data        map[string]interface{}  `json:"data"`
	Link        string                  `json:"link"`
}

// Create persists the notification, then tries to deliver it live. Delivery
// failures are logged and never returned.
func (uc *NotificationUseCase) Create(ctx context.Context, input CreateNotificationInput) (*entity.Notification, error) {
	if input.RecipientID == "" {
		return nil, errors.InvalidArgument("Recipient is required", nil)
	}
	if !input.Type.Valid() {
		return nil, errors.InvalidArgument("Unknown notification type", nil)
	}
	if input.Title == "" {
		return nil, errors.InvalidArgument("Title is required", nil)
	}

	notification := &entity.Notification{
		RecipientID: input.RecipientID,
		SenderID:    input.SenderID,
		Type:        input.Type,
		Title:       input.Title,
		Message:     input.Message,
		Data:        input.Data,
		Link:        input.Link,
		CreatedAt:   uc.now(),
	}

	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		logger.Error("CreateNotification Error: persisting for %s: %v", input.RecipientID, err)
		return nil, err
	}
	uc.metrics.NotificationCreated(string(notification.Type))

	if err := uc.publisher.PublishNotification(notification); err != nil {
		logger.LogDeliveryFailure(notification.RecipientID, "notification.created", err)
	}

	return notification, nil
}

// List returns the recipient's notifications newest first, without deleted ones.
func (uc *NotificationUseCase) List(ctx context.Context, userID string, unreadOnly bool, page utils.PaginationParams) ([]*entity.Notification, int64, error) {
	notifications, total, err := uc.notificationRepo.ListByRecipient(ctx, userID, repository.NotificationFilter{
		UnreadOnly: unreadOnly,
		Limit:      page.PageSize,
		Offset:     page.Offset,
	})
	if err != nil {
		logger.Error("ListNotifications Error: %v", err)
		return nil, 0, err
	}
	return notifications, total, nil
}

func (uc *NotificationUseCase) CountUnread(ctx context.Context, userID string) (int64, error) {
	return uc.notificationRepo.CountUnread(ctx, userID)
}

// MarkRead flips IsRead for the recipient only. Reading twice is a no-op.
func (uc *NotificationUseCase) MarkRead(ctx context.Context, id, userID string) (*entity.Notification, error) {
	notification, err := uc.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if notification.IsRead {
		return notification, nil
	}

	readAt := uc.now()
	if err := uc.notificationRepo.MarkRead(ctx, id, readAt); err != nil {
		logger.Error("MarkNotificationRead Error: %v", err)
		return nil, err
	}
	notification.IsRead = true
	notification.ReadAt = &readAt
	return notification, nil
}

func (uc *NotificationUseCase) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := uc.notificationRepo.MarkAllRead(ctx, userID, uc.now())
	if err != nil {
		logger.Error("MarkAllNotificationsRead Error: %v", err)
		return 0, err
	}
	return n, nil
}

// Delete hides the notification from the recipient's feed.
func (uc *NotificationUseCase) Delete(ctx context.Context, id, userID string) error {
	if _, err := uc.owned(ctx, id, userID); err != nil {
		return err
	}
	if err := uc.notificationRepo.SoftDelete(ctx, id); err != nil {
		logger.Error("DeleteNotification Error: %v", err)
		return err
	}
	return nil
}

func (uc *NotificationUseCase) owned(ctx context.Context, id, userID string) (*entity.Notification, error) {
	notification, err := uc.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification.RecipientID != userID {
		return nil, errors.Forbidden("Notification belongs to another user", nil)
	}
	return notification, nil
}
