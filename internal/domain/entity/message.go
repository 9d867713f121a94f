package entity

import "time"

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile:
		return true
	}
	return false
}

// MediaRef points at an attachment held by the media store.
type MediaRef struct {
	URL      string `json:"url" firestore:"url"`
	PublicID string `json:"public_id" firestore:"publicId"`
}

// Message lives only inside its ChatSession.
type Message struct {
	ID        string      `json:"id" firestore:"id"`
	SenderID  string      `json:"sender_id" firestore:"senderId"`
	Content   string      `json:"content" firestore:"content"`
	Kind      MessageKind `json:"kind" firestore:"kind"`
	Media     *MediaRef   `json:"media,omitempty" firestore:"media,omitempty"`
	IsRead    bool        `json:"is_read" firestore:"isRead"`
	ReadAt    *time.Time  `json:"read_at,omitempty" firestore:"readAt,omitempty"`
	IsDeleted bool        `json:"is_deleted" firestore:"isDeleted"`
	CreatedAt time.Time   `json:"created_at" firestore:"createdAt"`
}
