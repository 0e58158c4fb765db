package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "synagogue/internal/errors"
	"synagogue/internal/model"
)

func newUserService(f *fixture) UserService {
	return NewUserService(f.users, nil, zap.NewNop())
}

func strPtr(s string) *string {
	return &s
}

func TestUserService_ChangeRole(t *testing.T) {
	f := newFixture(t)
	users := newUserService(f)
	ctx := context.Background()

	admin, adminSession := f.user(t, model.RoleAdmin)
	manager, managerSession := f.user(t, model.RoleManager)
	target, targetSession := f.user(t, model.RoleUser)

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name:    "user cannot promote themselves",
			run:     func() error { _, err := users.ChangeRole(ctx, targetSession, target.ID, model.RoleGabai); return err },
			wantErr: apperrors.Forbidden(apperrors.ReasonInsufficientRole, ""),
		},
		{
			name:    "manager cannot grant admin",
			run:     func() error { _, err := users.ChangeRole(ctx, managerSession, target.ID, model.RoleAdmin); return err },
			wantErr: apperrors.Forbidden(apperrors.ReasonInsufficientRole, ""),
		},
		{
			name:    "manager cannot touch admin",
			run:     func() error { _, err := users.ChangeRole(ctx, managerSession, admin.ID, model.RoleUser); return err },
			wantErr: apperrors.Forbidden(apperrors.ReasonTargetProtected, ""),
		},
		{
			name:    "unknown role",
			run:     func() error { _, err := users.ChangeRole(ctx, adminSession, target.ID, "cantor"); return err },
			wantErr: apperrors.ErrInvalidRole,
		},
		{
			name:    "last admin cannot step down",
			run:     func() error { _, err := users.ChangeRole(ctx, adminSession, admin.ID, model.RoleManager); return err },
			wantErr: ErrLastAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.wantErr)
		})
	}

	updated, err := users.ChangeRole(ctx, managerSession, target.ID, model.RoleGabai)
	require.NoError(t, err)
	assert.Equal(t, model.RoleGabai, updated.Role)

	stored, err := f.users.FindByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleGabai, stored.Role)

	_, err = users.ChangeRole(ctx, adminSession, manager.ID, model.RoleAdmin)
	require.NoError(t, err)
}

func TestUserService_UpdateUser(t *testing.T) {
	f := newFixture(t)
	users := newUserService(f)
	ctx := context.Background()

	target, targetSession := f.user(t, model.RoleUser)
	_, gabai := f.user(t, model.RoleGabai)
	other, _ := f.user(t, model.RoleUser)

	updated, err := users.UpdateUser(ctx, targetSession, target.ID, UpdateUserInput{FirstName: strPtr("Avraham"), Password: strPtr("new-secret")})
	require.NoError(t, err)
	assert.Equal(t, "Avraham", updated.FirstName)
	stored, err := f.users.FindByID(ctx, target.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new-secret")))

	_, err = users.UpdateUser(ctx, targetSession, target.ID, UpdateUserInput{Phone: strPtr("0529999999")})
	assert.ErrorIs(t, err, apperrors.Forbidden(apperrors.ReasonInsufficientRole, ""))

	_, err = users.UpdateUser(ctx, gabai, target.ID, UpdateUserInput{Password: strPtr("hijack")})
	assert.ErrorIs(t, err, apperrors.Forbidden(apperrors.ReasonNotOwner, ""))

	_, err = users.UpdateUser(ctx, gabai, target.ID, UpdateUserInput{Phone: strPtr(other.Phone)})
	assert.ErrorIs(t, err, apperrors.ErrPhoneTaken)

	updated, err = users.UpdateUser(ctx, gabai, target.ID, UpdateUserInput{Phone: strPtr("0529999999")})
	require.NoError(t, err)
	assert.Equal(t, "0529999999", updated.Phone)
}

func TestUserService_DeleteUser(t *testing.T) {
	f := newFixture(t)
	users := newUserService(f)
	ctx := context.Background()

	admin, adminSession := f.user(t, model.RoleAdmin)
	_, manager := f.user(t, model.RoleManager)
	target, _ := f.user(t, model.RoleUser)
	a := f.aliyah(t, target, "10", day(1, 1))

	assert.ErrorIs(t, users.DeleteUser(ctx, manager, target.ID), apperrors.Forbidden(apperrors.ReasonInsufficientRole, ""))
	assert.ErrorIs(t, users.DeleteUser(ctx, adminSession, admin.ID), ErrLastAdmin)

	require.NoError(t, users.DeleteUser(ctx, adminSession, target.ID))
	_, _, err := f.ledger.Load(ctx, a.ID)
	assert.ErrorIs(t, err, apperrors.ErrAliyahNotFound)

	_, err = users.GetUser(ctx, adminSession, target.ID)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserService_GetAndList(t *testing.T) {
	f := newFixture(t)
	users := newUserService(f)
	ctx := context.Background()

	target, targetSession := f.user(t, model.RoleUser)
	_, stranger := f.user(t, model.RoleUser)
	_, gabai := f.user(t, model.RoleGabai)

	me, err := users.GetUser(ctx, targetSession, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.Phone, me.Phone)

	_, err = users.GetUser(ctx, stranger, target.ID)
	assert.ErrorIs(t, err, apperrors.Forbidden(apperrors.ReasonNotOwner, ""))

	_, err = users.ListUsers(ctx, stranger)
	assert.ErrorIs(t, err, apperrors.Forbidden(apperrors.ReasonInsufficientRole, ""))

	all, err := users.ListUsers(ctx, gabai)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
