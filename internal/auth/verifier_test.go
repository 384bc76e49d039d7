package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"renthaus/internal/domain"
	"renthaus/internal/models"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) GetUser(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUsers) UpsertUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUsers) ListVendors(ctx context.Context, status string) ([]*models.User, error) {
	args := m.Called(ctx, status)
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *mockUsers) SetVendorApproval(ctx context.Context, uid, status string, verified bool) error {
	return m.Called(ctx, uid, status, verified).Error(0)
}

type fakeFirebase struct {
	token *fbauth.Token
	err   error
}

func (f fakeFirebase) VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error) {
	return f.token, f.err
}

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenManager("0123456789abcdef0123", "renthaus", time.Hour)

	t.Run("RoleFromStore", func(t *testing.T) {
		users := new(mockUsers)
		users.On("GetUser", ctx, "vendor-1").Return(&models.User{UID: "vendor-1", Role: models.RoleVendor, Email: "v@example.com"}, nil)

		token, err := tokens.Generate("vendor-1", "")
		require.NoError(t, err)

		id, err := NewJWTVerifier(tokens, users).Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleVendor, id.Role)
		assert.Equal(t, "v@example.com", id.Email)
	})

	t.Run("UnknownUserIsCustomer", func(t *testing.T) {
		users := new(mockUsers)
		users.On("GetUser", ctx, "new-user").Return(nil, domain.NotFound("user", "new-user"))

		token, err := tokens.Generate("new-user", "n@example.com")
		require.NoError(t, err)

		id, err := NewJWTVerifier(tokens, users).Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, models.RoleCustomer, id.Role)
		assert.Equal(t, "n@example.com", id.Email)
	})

	t.Run("StoreErrorPropagates", func(t *testing.T) {
		users := new(mockUsers)
		users.On("GetUser", ctx, "u").Return(nil, errors.New("db down"))

		token, err := tokens.Generate("u", "")
		require.NoError(t, err)

		_, err = NewJWTVerifier(tokens, users).Verify(ctx, token)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("BadToken", func(t *testing.T) {
		_, err := NewJWTVerifier(tokens, new(mockUsers)).Verify(ctx, "bogus")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		_, err = NewJWTVerifier(tokens, new(mockUsers)).Verify(ctx, "")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestFirebaseVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid", func(t *testing.T) {
		users := new(mockUsers)
		users.On("GetUser", ctx, "fb-1").Return(&models.User{UID: "fb-1", Role: models.RoleAdmin}, nil)

		v := NewFirebaseVerifier(fakeFirebase{token: &fbauth.Token{UID: "fb-1", Claims: map[string]interface{}{"email": "a@example.com"}}}, users)
		id, err := v.Verify(ctx, "id-token")
		require.NoError(t, err)
		assert.Equal(t, "fb-1", id.UID)
		assert.Equal(t, "a@example.com", id.Email)
		assert.True(t, id.IsAdmin())
	})

	t.Run("Rejected", func(t *testing.T) {
		v := NewFirebaseVerifier(fakeFirebase{err: errors.New("ID token has expired")}, new(mockUsers))
		_, err := v.Verify(ctx, "id-token")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}
