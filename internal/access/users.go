package access

import (
	"fmt"

	"github.com/google/uuid"

	"synagogue/internal/auth"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/model"
)

// UserOperation is an action on a user account.
type UserOperation string

const (
	UserView       UserOperation = "view"
	UserUpdate     UserOperation = "update"
	UserChangeRole UserOperation = "change_role"
	UserDelete     UserOperation = "delete"
)

// UserTarget identifies the account being acted on.
type UserTarget struct {
	ID   uuid.UUID
	Role model.Role
}

// UserTargetOf builds a UserTarget from a user.
func UserTargetOf(u *model.User) UserTarget {
	return UserTarget{ID: u.ID, Role: u.Role}
}

// CanManageUser returns nil when actor may perform op on target's account.
// Admin accounts are locked against every other actor, other admins included.
func CanManageUser(actor *auth.Session, target UserTarget, op UserOperation) error {
	if !actor.Authenticated() {
		return apperrors.Unauthenticated("authentication required")
	}

	isSelf := actor.UserID == target.ID

	if op != UserView && target.Role == model.RoleAdmin && !isSelf {
		return apperrors.Forbidden(apperrors.ReasonTargetProtected, "admin accounts cannot be changed by other users")
	}

	switch op {
	case UserView:
		if isSelf || actor.Role.Elevated() {
			return nil
		}
		return apperrors.Forbidden(apperrors.ReasonNotOwner, "cannot view another user")
	case UserUpdate:
		if isSelf {
			return nil
		}
		if actor.Role.Elevated() && actor.Role.AtLeast(target.Role) {
			return nil
		}
		if actor.Role.Elevated() {
			return apperrors.Forbidden(apperrors.ReasonInsufficientRole, "cannot update a user with higher authority")
		}
		return apperrors.Forbidden(apperrors.ReasonNotOwner, "cannot update another user")
	case UserChangeRole:
		if isSelf && actor.Role == model.RoleAdmin {
			return nil
		}
		if actor.Role.Elevated() && actor.Role.Above(target.Role) {
			return nil
		}
		return apperrors.Forbidden(apperrors.ReasonInsufficientRole, "cannot change the role of this user")
	case UserDelete:
		if actor.Role == model.RoleAdmin {
			return nil
		}
		return apperrors.Forbidden(apperrors.ReasonInsufficientRole, "only an admin can delete users")
	default:
		return apperrors.Forbidden(apperrors.ReasonInsufficientRole, fmt.Sprintf("unknown operation %s", op))
	}
}

// CanAssignRole checks a role change end to end: the actor must be allowed to
// change target's role and may not grant more authority than they hold.
func CanAssignRole(actor *auth.Session, target UserTarget, newRole model.Role) error {
	if !newRole.Valid() {
		return apperrors.ErrInvalidRole
	}
	if err := CanManageUser(actor, target, UserChangeRole); err != nil {
		return err
	}
	if !actor.Role.AtLeast(newRole) {
		return apperrors.Forbidden(apperrors.ReasonInsufficientRole, fmt.Sprintf("cannot grant role %s", newRole))
	}
	return nil
}
