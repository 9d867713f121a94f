package usecase

import (
	"context"
	"strings"

	"classifieds/internal/domain/repository"
	"classifieds/internal/domain/service"
	"classifieds/pkg/errors"
	"classifieds/pkg/logger"
)

// AuthUseCase turns a bearer credential into an Identity for both the HTTP
// surface and the websocket gateway.
type AuthUseCase struct {
	validator service.CredentialValidator
	userRepo  repository.UserRepository
}

func NewAuthUseCase(validator service.CredentialValidator, userRepo repository.UserRepository) *AuthUseCase {
	return &AuthUseCase{
		validator: validator,
		userRepo:  userRepo,
	}
}

// Authenticate validates token and rejects identities whose account is
// missing or not active.
func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*service.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, errors.Unauthorized("Missing credential", nil)
	}

	identity, err := uc.validator.ValidateCredential(ctx, token)
	if err != nil {
		if errors.Is(err, errors.CodeUnauthorized) {
			return nil, err
		}
		return nil, errors.Unauthorized("Invalid or expired credential", err)
	}

	usable, err := uc.IsAccountUsable(ctx, identity.UserID)
	if err != nil {
		logger.Error("Authenticate Error: account lookup for %s failed: %v", identity.UserID, err)
		return nil, err
	}
	if !usable {
		return nil, errors.Unauthorized("Account is not active", nil)
	}

	return identity, nil
}

// IsAccountUsable reports false for unknown, suspended and disabled accounts.
func (uc *AuthUseCase) IsAccountUsable(ctx context.Context, userID string) (bool, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Usable(), nil
}
