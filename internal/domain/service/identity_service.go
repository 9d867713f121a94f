package service

import "context"

// Identity is what a validated bearer credential resolves to.
type Identity struct {
	UserID string
	Role   string
}

// CredentialValidator is implemented by the auth collaborator (Firebase in
// production, HS256 JWTs for local runs).
type CredentialValidator interface {
	ValidateCredential(ctx context.Context, token string) (*Identity, error)
}

// AccountChecker rejects identities whose account is suspended, disabled or gone.
type AccountChecker interface {
	IsAccountUsable(ctx context.Context, userID string) (bool, error)
}
