package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/pkg/errors"
)

const usersCollection = "users"

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) Create(ctx context.Context, user *entity.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.client.Collection(usersCollection).Doc(user.ID).Set(ctx, user)
	if err != nil {
		return storageError(err, "User", "Failed to create user")
	}
	return nil
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, storageError(err, "User", "Failed to get user")
	}

	var user entity.User
	if err := doc.DataTo(&user); err != nil {
		return nil, errors.Internal("Failed to parse user data", err)
	}
	if user.ID == "" {
		user.ID = doc.Ref.ID
	}

	return &user, nil
}
