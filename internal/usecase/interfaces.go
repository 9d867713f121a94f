package usecase

import "classifieds/internal/domain/entity"

// Publisher pushes live events to connected clients. Implementations only
// enqueue and must never block the caller.
type Publisher interface {
	PublishMessageCreated(sessionID string, message *entity.Message)
	// PublishNotification returns a DeliveryFailed error when a connected
	// recipient could not take the event. An offline recipient is not an error.
	PublishNotification(notification *entity.Notification) error
}

type nopPublisher struct{}

func (nopPublisher) PublishMessageCreated(string, *entity.Message)  {}
func (nopPublisher) PublishNotification(*entity.Notification) error { return nil }
