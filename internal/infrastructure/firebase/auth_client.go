package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/service"
	"classifieds/pkg/errors"
)

// FirebaseAuthClient validates Firebase ID tokens. The role comes from the
// "role" custom claim.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) ValidateCredential(ctx context.Context, token string) (*service.Identity, error) {
	result, err := f.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		if auth.IsIDTokenRevoked(err) || auth.IsIDTokenExpired(err) || auth.IsIDTokenInvalid(err) || auth.IsUserDisabled(err) {
			return nil, errors.Unauthorized("Invalid or expired token", err)
		}
		return nil, errors.StorageUnavailable("Token verification unavailable", err)
	}

	return &service.Identity{UserID: result.UID, Role: roleFromClaims(result.Claims)}, nil
}

func roleFromClaims(claims map[string]interface{}) string {
	if role, ok := claims["role"].(string); ok && role != "" {
		return role
	}
	return entity.RoleUser
}
