package jwtauth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/service"
	"classifieds/pkg/errors"
)

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authority issues and validates HS256 tokens. It stands in for Firebase in
// local runs and tests.
type Authority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthority(secret string, ttl time.Duration) *Authority {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authority{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID. An empty role means entity.RoleUser.
func (a *Authority) Issue(userID, role string) (string, error) {
	if role == "" {
		role = entity.RoleUser
	}
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authority) ValidateCredential(ctx context.Context, token string) (*service.Identity, error) {
	parser := jwt.Parser{}
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errors.Unauthorized("Invalid or expired token", err)
	}
	if claims.Subject == "" {
		return nil, errors.Unauthorized("Token has no subject", nil)
	}

	role := claims.Role
	if role == "" {
		role = entity.RoleUser
	}
	return &service.Identity{UserID: claims.Subject, Role: role}, nil
}
