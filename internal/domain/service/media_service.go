package service

import (
	"context"
	"io"

	"classifieds/internal/domain/entity"
)

// MediaStore persists attachment bytes and returns where they can be fetched.
// Content is not inspected.
type MediaStore interface {
	Upload(ctx context.Context, file io.Reader, contentType, folder string) (*entity.MediaRef, error)
}
