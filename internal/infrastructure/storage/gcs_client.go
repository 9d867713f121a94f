package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"classifieds/internal/domain/entity"
)

// CloudStorageClient stores chat attachments in a bucket and hands back
// public URLs. The object name doubles as the media public id.
type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName string, opts ...option.ClientOption) (*CloudStorageClient, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// ObjectName builds a unique name under folder with an extension derived from contentType.
func ObjectName(folder, contentType string, now time.Time) string {
	folder = strings.Trim(folder, "/")
	return fmt.Sprintf("%s/%s-%s%s", folder, uuid.New().String(), now.Format("20060102150405"), extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

func (c *CloudStorageClient) publicURL(objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.bucketName, objectName)
}

func (c *CloudStorageClient) Upload(ctx context.Context, file io.Reader, contentType, folder string) (*entity.MediaRef, error) {
	objectName := ObjectName(folder, contentType, time.Now())

	obj := c.client.Bucket(c.bucketName).Object(objectName)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"

	if _, err := io.Copy(wc, file); err != nil {
		wc.Close()
		return nil, fmt.Errorf("failed to copy file to GCS: %v", err)
	}
	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %v", err)
	}

	return &entity.MediaRef{URL: c.publicURL(objectName), PublicID: objectName}, nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
