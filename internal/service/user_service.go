package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"synagogue/internal/access"
	"synagogue/internal/auth"
	"synagogue/internal/cache"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/model"
	"synagogue/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// ErrLastAdmin is returned when a change would leave the system without an admin.
var ErrLastAdmin = apperrors.Conflict("LAST_ADMIN", "the last admin cannot be demoted or deleted")

// UpdateUserInput lists the profile fields to replace; nil means unchanged.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Password  *string
}

// UserService exposes user administration.
type UserService interface {
	GetUser(ctx context.Context, actor *auth.Session, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, actor *auth.Session) ([]model.User, error)
	UpdateUser(ctx context.Context, actor *auth.Session, id uuid.UUID, in UpdateUserInput) (*model.User, error)
	ChangeRole(ctx context.Context, actor *auth.Session, id uuid.UUID, role model.Role) (*model.User, error)
	DeleteUser(ctx context.Context, actor *auth.Session, id uuid.UUID) error
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
	log   *zap.Logger
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, log *zap.Logger) UserService {
	return &userService{repo: repo, cache: cache, log: log}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

// load reads a user from storage, bypassing the cache.
func (s *userService) load(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrUserNotFound, "find user")
	}
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, actor *auth.Session, id uuid.UUID) (*model.User, error) {
	if err := authenticated(s.log, actor); err != nil {
		return nil, err
	}

	var user *model.User
	var cached model.User
	if s.cache.GetJSON(ctx, s.cacheKey(id), &cached) {
		user = &cached
	} else {
		loaded, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		user = loaded
		_ = s.cache.SetJSON(ctx, s.cacheKey(id), user, userCacheTTL)
	}

	if err := checkAccess(s.log, actor, access.CanManageUser(actor, access.UserTargetOf(user), access.UserView)); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, actor *auth.Session) ([]model.User, error) {
	if err := checkAccess(s.log, actor, access.RequireElevated(actor)); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// UpdateUser replaces profile fields. Users may change their own names and
// password; staff with authority over the target may change names and phone.
func (s *userService) UpdateUser(ctx context.Context, actor *auth.Session, id uuid.UUID, in UpdateUserInput) (*model.User, error) {
	if err := authenticated(s.log, actor); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(s.log, actor, access.CanManageUser(actor, access.UserTargetOf(user), access.UserUpdate)); err != nil {
		return nil, err
	}

	isSelf := actor.Is(user.ID)
	if in.Password != nil && !isSelf {
		return nil, checkAccess(s.log, actor, apperrors.Forbidden(apperrors.ReasonNotOwner, "only the user can change their password"))
	}
	if in.Phone != nil && !actor.Role.Elevated() {
		return nil, checkAccess(s.log, actor, apperrors.Forbidden(apperrors.ReasonInsufficientRole, "changing a phone number requires a staff role"))
	}

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil && *in.Phone != user.Phone {
		existing, err := s.repo.FindByPhone(ctx, *in.Phone)
		if err == nil && existing != nil {
			return nil, apperrors.ErrPhoneTaken
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("check phone: %w", err)
		}
		user.Phone = *in.Phone
	}
	if in.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))

	s.log.Info("user updated", zap.String("user_id", user.ID.String()), zap.String("actor_id", actor.UserID.String()))
	return user, nil
}

// ChangeRole assigns a new role. The actor must outrank the target and may not
// grant more than their own role.
func (s *userService) ChangeRole(ctx context.Context, actor *auth.Session, id uuid.UUID, role model.Role) (*model.User, error) {
	if err := authenticated(s.log, actor); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(s.log, actor, access.CanAssignRole(actor, access.UserTargetOf(user), role)); err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	if user.Role == model.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateRole(ctx, user.ID, role); err != nil {
		return nil, notFoundAs(err, apperrors.ErrUserNotFound, "update role")
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))

	s.log.Info("user role changed",
		zap.String("user_id", user.ID.String()),
		zap.String("from", string(user.Role)),
		zap.String("to", string(role)),
		zap.String("actor_id", actor.UserID.String()),
	)
	user.Role = role
	return user, nil
}

// DeleteUser removes a user with all their aliyot. Admin only.
func (s *userService) DeleteUser(ctx context.Context, actor *auth.Session, id uuid.UUID) error {
	if err := authenticated(s.log, actor); err != nil {
		return err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := checkAccess(s.log, actor, access.CanManageUser(actor, access.UserTargetOf(user), access.UserDelete)); err != nil {
		return err
	}
	if user.Role == model.RoleAdmin {
		if err := s.ensureAnotherAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		return notFoundAs(err, apperrors.ErrUserNotFound, "delete user")
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))

	s.log.Info("user deleted", zap.String("user_id", user.ID.String()), zap.String("actor_id", actor.UserID.String()))
	return nil
}

func (s *userService) ensureAnotherAdmin(ctx context.Context) error {
	admins, err := s.repo.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}
