package usecase

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/internal/domain/service"
	"classifieds/internal/infrastructure/metrics"
	"classifieds/internal/infrastructure/ratelimit"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

const (
	DefaultMessageMaxLength = 1000
	previewLength           = 100
	sessionLockStripes      = 64
)

type ChatOptions struct {
	// Accounts, when set, rejects sessions with unusable accounts.
	Accounts service.AccountChecker
	// RateLimiter, when set, throttles start_session and send_message.
	RateLimiter *ratelimit.RateLimiter
	// Media, when set, enables attachment uploads.
	Media            service.MediaStore
	Metrics          *metrics.Collectors
	MessageMaxLength int
}

type ChatUseCase struct {
	chatRepo      repository.ChatRepository
	notifications *NotificationUseCase
	publisher     Publisher
	accounts      service.AccountChecker
	rateLimiter   *ratelimit.RateLimiter
	media         service.MediaStore
	metrics       *metrics.Collectors
	maxLength     int
	now           func() time.Time

	// sessionLocks keep append and live publish in one order per session.
	sessionLocks [sessionLockStripes]sync.Mutex
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	notifications *NotificationUseCase,
	publisher Publisher,
	opts ChatOptions,
) *ChatUseCase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if opts.MessageMaxLength <= 0 {
		opts.MessageMaxLength = DefaultMessageMaxLength
	}

	return &ChatUseCase{
		chatRepo:      chatRepo,
		notifications: notifications,
		publisher:     publisher,
		accounts:      opts.Accounts,
		rateLimiter:   opts.RateLimiter,
		media:         opts.Media,
		metrics:       opts.Metrics,
		maxLength:     opts.MessageMaxLength,
		now:           time.Now,
	}
}

type StartSessionInput struct {
	OtherUserID string             `json:"other_user_id" validate:"required"`
	Context     *entity.ListingRef `json:"context"`
}

type SendMessageInput struct {
	SessionID string             `json:"-"`
	Content   string             `json:"content"`
	Kind      entity.MessageKind `json:"kind"`
	Media     *entity.MediaRef   `json:"media"`
}

func (uc *ChatUseCase) allow(userID, action string) error {
	if uc.rateLimiter == nil {
		return nil
	}
	allowed, wait := uc.rateLimiter.Allow(userID, action)
	if !allowed {
		logger.Warn("%s Rate Limited: user %s must wait %v", action, userID, wait)
		return errors.TooManyRequests(fmt.Sprintf("Rate limit exceeded, retry in %s", wait.Round(time.Second)))
	}
	return nil
}

// StartOrGetSession returns the session for (userID, other, listing),
// creating it on first contact. created is false when it already existed.
func (uc *ChatUseCase) StartOrGetSession(ctx context.Context, userID string, input StartSessionInput) (*entity.ChatSession, bool, error) {
	other := strings.TrimSpace(input.OtherUserID)
	if other == "" {
		return nil, false, errors.InvalidArgument("Other participant is required", nil)
	}
	if other == userID {
		logger.Warn("StartSession Error: user %s attempted to chat with themselves", userID)
		return nil, false, errors.InvalidArgument("You cannot start a chat with yourself", nil)
	}
	if err := uc.allow(userID, ratelimit.ActionStartSession); err != nil {
		return nil, false, err
	}

	if uc.accounts != nil {
		usable, err := uc.accounts.IsAccountUsable(ctx, other)
		if err != nil {
			logger.Error("StartSession Error: checking account %s: %v", other, err)
			return nil, false, err
		}
		if !usable {
			return nil, false, errors.NotFound("User", nil)
		}
	}

	listing := input.Context
	if listing != nil && listing.ListingID == "" {
		listing = nil
	}

	session, created, err := uc.chatRepo.FindOrCreate(ctx, entity.NewChatSession(userID, other, listing, uc.now()))
	if err != nil {
		logger.Error("StartSession Error: %v", err)
		return nil, false, err
	}
	if created {
		logger.Info("Chat session %s created for %s", session.ID, session.ParticipantKey)
	}
	return session.Summary(), created, nil
}

func (uc *ChatUseCase) ListSessions(ctx context.Context, userID string) ([]*entity.ChatSession, error) {
	sessions, err := uc.chatRepo.ListActiveByUserID(ctx, userID)
	if err != nil {
		logger.Error("ListSessions Error: %v", err)
		return nil, err
	}
	return sessions, nil
}

// GetSession reads the session summary without marking anything read.
func (uc *ChatUseCase) GetSession(ctx context.Context, sessionID, userID string) (*entity.ChatSession, error) {
	session, err := uc.chatRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant of this chat", nil)
	}
	return session.Summary(), nil
}

// GetMessageLog returns the full log and marks the other participant's
// messages read by userID.
func (uc *ChatUseCase) GetMessageLog(ctx context.Context, sessionID, userID string) ([]entity.Message, error) {
	session, err := uc.chatRepo.Mutate(ctx, sessionID, func(s *entity.ChatSession) error {
		if !s.HasParticipant(userID) {
			return errors.Forbidden("You are not a participant of this chat", nil)
		}
		s.MarkReadBy(userID, uc.now())
		return nil
	})
	if err != nil {
		if !errors.Is(err, errors.CodeForbidden) && !errors.Is(err, errors.CodeNotFound) {
			logger.Error("GetMessageLog Error: %v", err)
		}
		return nil, err
	}
	if session.Messages == nil {
		return []entity.Message{}, nil
	}
	return session.Messages, nil
}

func (uc *ChatUseCase) validateMessage(input *SendMessageInput) error {
	if input.Kind == "" {
		input.Kind = entity.MessageKindText
	}
	if !input.Kind.Valid() {
		return errors.InvalidArgument("Unknown message kind", nil)
	}
	if strings.TrimSpace(input.Content) == "" {
		return errors.InvalidArgument("Message content is required", nil)
	}
	if utf8.RuneCountInString(input.Content) > uc.maxLength {
		return errors.InvalidArgument(fmt.Sprintf("Message content exceeds %d characters", uc.maxLength), nil)
	}

	switch input.Kind {
	case entity.MessageKindText:
		if input.Media != nil {
			return errors.InvalidArgument("Text messages cannot carry media", nil)
		}
	default:
		if input.Media == nil || input.Media.URL == "" {
			return errors.InvalidArgument("Media is required for "+string(input.Kind)+" messages", nil)
		}
	}
	return nil
}

func (uc *ChatUseCase) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &uc.sessionLocks[h.Sum32()%sessionLockStripes]
}

// SendMessage appends to the session, publishes message.created to the
// session room, and files a new_message notification for the other
// participant. Nothing is published when the append fails.
func (uc *ChatUseCase) SendMessage(ctx context.Context, userID string, input SendMessageInput) (*entity.Message, error) {
	if err := uc.allow(userID, ratelimit.ActionSendMessage); err != nil {
		return nil, err
	}
	if err := uc.validateMessage(&input); err != nil {
		return nil, err
	}

	message := entity.Message{
		ID:        uuid.New().String(),
		SenderID:  userID,
		Content:   input.Content,
		Kind:      input.Kind,
		Media:     input.Media,
		CreatedAt: uc.now(),
	}

	lock := uc.sessionLock(input.SessionID)
	lock.Lock()
	session, err := uc.chatRepo.Mutate(ctx, input.SessionID, func(s *entity.ChatSession) error {
		if !s.HasParticipant(userID) {
			return errors.Forbidden("You are not a participant of this chat", nil)
		}
		if !s.IsActive {
			return errors.InvalidArgument("Chat is archived", nil)
		}
		s.Append(message)
		return nil
	})
	if err != nil {
		lock.Unlock()
		logger.Error("SendMessage Error: session %s, sender %s: %v", input.SessionID, userID, err)
		return nil, err
	}
	uc.publisher.PublishMessageCreated(session.ID, &message)
	lock.Unlock()

	uc.metrics.MessageSent(string(message.Kind))
	uc.notifyRecipient(ctx, session, &message)

	return &message, nil
}

func (uc *ChatUseCase) notifyRecipient(ctx context.Context, session *entity.ChatSession, message *entity.Message) {
	if uc.notifications == nil {
		return
	}

	preview := message.Content
	if utf8.RuneCountInString(preview) > previewLength {
		preview = string([]rune(preview)[:previewLength]) + "..."
	}

	recipient := session.OtherParticipant(message.SenderID)
	_, err := uc.notifications.Create(ctx, CreateNotificationInput{
		RecipientID: recipient,
		SenderID:    message.SenderID,
		Type:        entity.NotificationNewMessage,
		Title:       "New message",
		Message:     preview,
		Data: map[string]interface{}{
			"session_id": session.ID,
			"message_id": message.ID,
		},
		Link: "/chats/" + session.ID,
	})
	if err != nil {
		logger.Error("SendMessage Error: notification for %s: %v", recipient, err)
	}
}

// UpdateSession applies the allow-listed patch. Only participants may archive or restore.
func (uc *ChatUseCase) UpdateSession(ctx context.Context, sessionID, userID string, update repository.SessionUpdate) (*entity.ChatSession, error) {
	if update.IsActive == nil {
		return nil, errors.InvalidArgument("No updatable fields supplied", nil)
	}
	if _, err := uc.GetSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	if err := uc.chatRepo.Update(ctx, sessionID, update); err != nil {
		logger.Error("UpdateSession Error: %v", err)
		return nil, err
	}
	return uc.GetSession(ctx, sessionID, userID)
}

// AttachmentsEnabled reports whether a media store is configured.
func (uc *ChatUseCase) AttachmentsEnabled() bool {
	return uc.media != nil
}

// UploadAttachment stores file for a later image or file message in sessionID.
func (uc *ChatUseCase) UploadAttachment(ctx context.Context, sessionID, userID string, file io.Reader, contentType string) (*entity.MediaRef, error) {
	if uc.media == nil {
		return nil, errors.NotFound("Attachment storage", nil)
	}
	if _, err := uc.GetSession(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	ref, err := uc.media.Upload(ctx, file, contentType, "chats/"+sessionID)
	if err != nil {
		logger.Error("UploadAttachment Error: %v", err)
		return nil, errors.StorageUnavailable("Failed to store attachment", err)
	}
	return ref, nil
}
