package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synagogue/internal/model"
)

func TestJWTService_AccessToken(t *testing.T) {
	svc := NewJWTService("secret")
	userID := uuid.New()

	token, err := svc.GenerateAccessToken(userID, model.RoleGabai)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAccessToken())

	session, err := claims.Session()
	require.NoError(t, err)
	assert.Equal(t, userID, session.UserID)
	assert.Equal(t, model.RoleGabai, session.Role)
	assert.NotEmpty(t, session.TokenID)

	// An access token is not accepted where a refresh token is expected.
	_, err = svc.ValidateRefreshToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RefreshToken(t *testing.T) {
	svc := NewJWTService("secret")

	tokenID, token, err := svc.GenerateRefreshToken(uuid.New(), model.RoleUser)
	require.NoError(t, err)

	claims, err := svc.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, tokenID, claims.ID)
	assert.False(t, claims.IsAccessToken())
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	token, err := NewJWTService("other").GenerateAccessToken(uuid.New(), model.RoleAdmin)
	require.NoError(t, err)

	_, err = NewJWTService("secret").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTService("secret").ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_Authenticated(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.Authenticated())
	assert.False(t, (&Session{}).Authenticated())

	id := uuid.New()
	s := &Session{UserID: id, Role: model.RoleUser}
	assert.True(t, s.Authenticated())
	assert.True(t, s.Is(id))
	assert.False(t, s.Is(uuid.New()))
}
