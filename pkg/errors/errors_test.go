package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedAppError(t *testing.T) {
	err := fmt.Errorf("append: %w", Forbidden("not a participant", nil))

	assert.True(t, Is(err, CodeForbidden))
	assert.False(t, Is(err, CodeNotFound))
	assert.False(t, Is(stderrors.New("plain"), CodeForbidden))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeStorageUnavailable, CodeOf(StorageUnavailable("down", nil)))
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("boom")))
}

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
	}{
		{InvalidArgument("bad", nil), http.StatusBadRequest},
		{Unauthorized("no", nil), http.StatusUnauthorized},
		{AuthTimeout("slow"), http.StatusUnauthorized},
		{Forbidden("no", nil), http.StatusForbidden},
		{NotFound("Chat", nil), http.StatusNotFound},
		{TooManyRequests("slow down"), http.StatusTooManyRequests},
		{StorageUnavailable("down", nil), http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.Status, tc.err.Code)
	}
	assert.Equal(t, "Chat not found", NotFound("Chat", nil).Message)
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("rpc error")
	err := StorageUnavailable("Failed to save chat", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "rpc error")
}
