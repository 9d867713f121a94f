package repository

import (
	"context"
	"log"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

const chatsCollection = "chats"

// summaryFields is every session field except the embedded message log.
var summaryFields = []string{
	"id", "participants", "participantKey", "context", "contextKey",
	"lastMessage", "unreadCounts", "isActive", "createdAt", "updatedAt",
}

type firestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) repository.ChatRepository {
	return &firestoreChatRepository{
		client: client,
	}
}

func (r *firestoreChatRepository) FindOrCreate(ctx context.Context, session *entity.ChatSession) (*entity.ChatSession, bool, error) {
	docRef := r.client.Collection(chatsCollection).Doc(session.ID)

	// Create fails with AlreadyExists when a concurrent caller won the race.
	_, err := docRef.Create(ctx, session)
	if err == nil {
		return session, true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		log.Printf("Firestore error while creating chat %s: %v", session.ID, err)
		return nil, false, storageError(err, "Chat", "Failed to create chat")
	}

	existing, err := r.GetByID(ctx, session.ID)
	if err != nil {
		return nil, false, err
	}
	if !existing.SameConversation(session) {
		log.Printf("Chat %s stored for %s/%s, requested for %s/%s", session.ID,
			existing.ParticipantKey, existing.ContextKey, session.ParticipantKey, session.ContextKey)
		return nil, false, errors.Conflict("Chat id belongs to another conversation")
	}
	return existing, false, nil
}

func (r *firestoreChatRepository) GetByID(ctx context.Context, id string) (*entity.ChatSession, error) {
	doc, err := r.client.Collection(chatsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, storageError(err, "Chat", "Failed to get chat")
	}

	var session entity.ChatSession
	if err := doc.DataTo(&session); err != nil {
		return nil, errors.Internal("Failed to parse chat data", err)
	}

	return &session, nil
}

func (r *firestoreChatRepository) ListActiveByUserID(ctx context.Context, userID string) ([]*entity.ChatSession, error) {
	query := r.client.Collection(chatsCollection).
		Where("participants", "array-contains", userID).
		Where("isActive", "==", true).
		Select(summaryFields...)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var sessions []*entity.ChatSession
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			log.Printf("Firestore error while fetching chats for user %s: %v", userID, err)
			return nil, storageError(err, "Chat", "Failed to fetch chats")
		}

		var session entity.ChatSession
		if err := doc.DataTo(&session); err != nil {
			log.Printf("Error parsing chat data for user %s: %v", userID, err)
			continue // Skip bad data instead of failing
		}
		sessions = append(sessions, &session)
	}

	SortByLastMessage(sessions)
	return sessions, nil
}

func (r *firestoreChatRepository) Mutate(ctx context.Context, id string, fn func(session *entity.ChatSession) error) (*entity.ChatSession, error) {
	docRef := r.client.Collection(chatsCollection).Doc(id)

	var result entity.ChatSession
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			return err
		}

		var session entity.ChatSession
		if err := doc.DataTo(&session); err != nil {
			return errors.Internal("Failed to parse chat data", err)
		}

		if err := fn(&session); err != nil {
			return err
		}

		result = session
		return tx.Set(docRef, &session)
	})
	if err != nil {
		return nil, storageError(err, "Chat", "Failed to update chat")
	}

	return &result, nil
}

func (r *firestoreChatRepository) Update(ctx context.Context, id string, update repository.SessionUpdate) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: time.Now()}}
	if update.IsActive != nil {
		updates = append(updates, firestore.Update{Path: "isActive", Value: *update.IsActive})
	}

	_, err := r.client.Collection(chatsCollection).Doc(id).Update(ctx, updates)
	if err != nil {
		return storageError(err, "Chat", "Failed to update chat")
	}
	return nil
}

// SortByLastMessage orders sessions by most recent message; sessions without
// messages go last, newest created first among themselves.
func SortByLastMessage(sessions []*entity.ChatSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i].LastMessage, sessions[j].LastMessage
		switch {
		case a != nil && b != nil:
			return a.SentAt.After(b.SentAt)
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
	})
}
