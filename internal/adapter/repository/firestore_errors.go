package repository

import (
	stderrors "errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"classifieds/pkg/errors"
)

// storageError maps a Firestore failure onto the application taxonomy.
// AppErrors raised inside transactions pass through unchanged.
func storageError(err error, resource, message string) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound(resource, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return errors.StorageUnavailable(message, err)
	default:
		return errors.Internal(message, err)
	}
}
