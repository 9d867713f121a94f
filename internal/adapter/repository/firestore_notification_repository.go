package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

const notificationsCollection = "notifications"

type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) repository.NotificationRepository {
	return &firestoreNotificationRepository{
		client: client,
	}
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	_, err := r.client.Collection(notificationsCollection).Doc(notification.ID).Set(ctx, notification)
	if err != nil {
		return storageError(err, "Notification", "Failed to create notification")
	}

	return nil
}

func (r *firestoreNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	doc, err := r.client.Collection(notificationsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, storageError(err, "Notification", "Failed to get notification")
	}

	var notification entity.Notification
	if err := doc.DataTo(&notification); err != nil {
		return nil, errors.Internal("Failed to parse notification data", err)
	}
	if notification.IsDeleted {
		return nil, errors.NotFound("Notification", nil)
	}

	return &notification, nil
}

func (r *firestoreNotificationRepository) recipientQuery(recipientID string, unreadOnly bool) firestore.Query {
	query := r.client.Collection(notificationsCollection).
		Where("recipientId", "==", recipientID).
		Where("isDeleted", "==", false)
	if unreadOnly {
		query = query.Where("isRead", "==", false)
	}
	return query
}

func (r *firestoreNotificationRepository) count(ctx context.Context, query firestore.Query) (int64, error) {
	results, err := query.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, storageError(err, "Notification", "Failed to count notifications")
	}

	value, ok := results["all"].(*firestorepb.Value)
	if !ok {
		return 0, errors.Internal("Unexpected count result", nil)
	}
	return value.GetIntegerValue(), nil
}

func (r *firestoreNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, filter repository.NotificationFilter) ([]*entity.Notification, int64, error) {
	query := r.recipientQuery(recipientID, filter.UnreadOnly)

	total, err := r.count(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	query = query.OrderBy("createdAt", firestore.Desc)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var notifications []*entity.Notification
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while iterating notifications for user %s: %v", recipientID, err)
			return nil, 0, storageError(err, "Notification", "Failed to iterate notifications")
		}

		var notification entity.Notification
		if err := doc.DataTo(&notification); err != nil {
			log.Printf("Error parsing notification data for user %s: %v", recipientID, err)
			continue
		}
		notifications = append(notifications, &notification)
	}

	return notifications, total, nil
}

func (r *firestoreNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	return r.count(ctx, r.recipientQuery(recipientID, true))
}

func (r *firestoreNotificationRepository) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	_, err := r.client.Collection(notificationsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "isRead", Value: true},
		{Path: "readAt", Value: readAt},
	})
	if err != nil {
		return storageError(err, "Notification", "Failed to mark notification as read")
	}
	return nil
}

func (r *firestoreNotificationRepository) MarkAllRead(ctx context.Context, recipientID string, readAt time.Time) (int, error) {
	docs, err := r.recipientQuery(recipientID, true).Documents(ctx).GetAll()
	if err != nil {
		return 0, storageError(err, "Notification", "Failed to fetch unread notifications")
	}
	if len(docs) == 0 {
		return 0, nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := bw.Update(doc.Ref, []firestore.Update{
			{Path: "isRead", Value: true},
			{Path: "readAt", Value: readAt},
		})
		if err != nil {
			bw.End()
			return 0, storageError(err, "Notification", "Failed to queue notification update")
		}
		jobs = append(jobs, job)
	}
	bw.End()

	updated := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			log.Printf("MarkAllRead: failed to update notification for user %s: %v", recipientID, err)
			continue
		}
		updated++
	}

	return updated, nil
}

func (r *firestoreNotificationRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := r.client.Collection(notificationsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "isDeleted", Value: true},
	})
	if err != nil {
		return storageError(err, "Notification", "Failed to delete notification")
	}
	return nil
}
