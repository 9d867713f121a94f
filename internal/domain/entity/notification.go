package entity

import "time"

type NotificationType string

const (
	NotificationNewMessage     NotificationType = "new_message"
	NotificationPostApproved   NotificationType = "post_approved"
	NotificationPostRejected   NotificationType = "post_rejected"
	NotificationPostExpired    NotificationType = "post_expired"
	NotificationPaymentSuccess NotificationType = "payment_success"
	NotificationPaymentFailed  NotificationType = "payment_failed"
	NotificationSystem         NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationNewMessage, NotificationPostApproved, NotificationPostRejected,
		NotificationPostExpired, NotificationPaymentSuccess, NotificationPaymentFailed,
		NotificationSystem:
		return true
	}
	return false
}

// Notification is a durable alert for one recipient. After creation only the
// recipient may change IsRead or IsDeleted.
type Notification struct {
	ID          string                 `json:"id" firestore:"id"`
	RecipientID string                 `json:"recipient_id" firestore:"recipientId"`
	SenderID    string                 `json:"sender_id,omitempty" firestore:"senderId,omitempty"`
	Type        NotificationType       `json:"type" firestore:"type"`
	Title       string                 `json:"title" firestore:"title"`
	Message     string                 `json:"message" firestore:"message"`
	Data        map[string]interface{} `json:"data,omitempty" firestore:"data,omitempty"`
	Link        string                 `json:"link,omitempty" firestore:"link,omitempty"`
	IsRead      bool                   `json:"is_read" firestore:"isRead"`
	ReadAt      *time.Time             `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	IsDeleted   bool                   `json:"is_deleted" firestore:"isDeleted"`
	CreatedAt   time.Time              `json:"created_at" firestore:"createdAt"`
}
