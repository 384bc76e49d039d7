// Package auth resolves bearer tokens to caller identities. The token only
// proves the uid; the role always comes from the user store.
package auth

import (
	"context"
	"errors"
	"fmt"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	fbauth "firebase.google.com/go/v4/auth"
)

// IDTokenVerifier is the part of the Firebase Auth client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

type FirebaseVerifier struct {
	client IDTokenVerifier
	users  domain.UserRepository
}

func NewFirebaseVerifier(client IDTokenVerifier, users domain.UserRepository) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, users: users}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	t, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	email, _ := t.Claims["email"].(string)
	return resolveIdentity(ctx, v.users, t.UID, email)
}

type JWTVerifier struct {
	tokens *TokenManager
	users  domain.UserRepository
}

func NewJWTVerifier(tokens *TokenManager, users domain.UserRepository) *JWTVerifier {
	return &JWTVerifier{tokens: tokens, users: users}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	claims, err := v.tokens.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return resolveIdentity(ctx, v.users, claims.Subject, claims.Email)
}

func resolveIdentity(ctx context.Context, users domain.UserRepository, uid, email string) (*models.Identity, error) {
	id := &models.Identity{UID: uid, Email: email, Role: models.RoleCustomer}

	user, err := users.GetUser(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return id, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user role: %w", err)
	}
	if user.Role != "" {
		id.Role = user.Role
	}
	if id.Email == "" {
		id.Email = user.Email
	}
	return id, nil
}
