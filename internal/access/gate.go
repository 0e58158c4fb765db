// Package access decides who may read or change aliyot and user accounts.
// Every function here is a pure predicate: it never touches storage and never
// mutates anything. Callers run it before any state change.
package access

import (
	"fmt"

	"github.com/google/uuid"

	"synagogue/internal/auth"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/model"
)

// Operation is an action on an aliyah.
type Operation string

const (
	OpView       Operation = "view"
	OpCreate     Operation = "create"
	OpPay        Operation = "pay"
	OpPartialPay Operation = "partial_pay"
	OpEdit       Operation = "edit"
	OpDelete     Operation = "delete"
)

// Target identifies the owner of the aliyah being acted on.
type Target struct {
	OwnerID   uuid.UUID
	OwnerRole model.Role
}

// TargetOf builds a Target from the owning user.
func TargetOf(owner *model.User) Target {
	return Target{OwnerID: owner.ID, OwnerRole: owner.Role}
}

// ownerOps are the operations a user may always perform on their own aliyot.
var ownerOps = map[Operation]bool{
	OpView:       true,
	OpCreate:     true,
	OpPay:        true,
	OpPartialPay: true,
	OpDelete:     true,
}

// CanMutate returns nil when actor may perform op on an aliyah owned by
// target, or an authentication/authorization error with a reason code.
func CanMutate(actor *auth.Session, target Target, op Operation) error {
	if !actor.Authenticated() {
		return apperrors.Unauthenticated("authentication required")
	}

	isOwner := actor.UserID == target.OwnerID

	// An admin's financial records can only be deleted by that admin.
	if op == OpDelete && target.OwnerRole == model.RoleAdmin && !isOwner {
		return apperrors.Forbidden(apperrors.ReasonTargetProtected, "aliyot of an admin can only be deleted by that admin")
	}

	if isOwner && ownerOps[op] {
		return nil
	}

	if actor.Role.Elevated() {
		if actor.Role.AtLeast(target.OwnerRole) {
			return nil
		}
		return apperrors.Forbidden(apperrors.ReasonInsufficientRole,
			fmt.Sprintf("role %s cannot %s aliyot of a %s", actor.Role, op, target.OwnerRole))
	}

	if isOwner {
		return apperrors.Forbidden(apperrors.ReasonInsufficientRole, fmt.Sprintf("role %s cannot %s aliyot", actor.Role, op))
	}
	return apperrors.Forbidden(apperrors.ReasonNotOwner, "aliyah belongs to another user")
}

// RequireElevated allows only staff roles (gabai and above).
func RequireElevated(actor *auth.Session) error {
	return RequireRole(actor, model.RoleGabai)
}

// RequireRole allows actors whose role is at least min.
func RequireRole(actor *auth.Session, min model.Role) error {
	if !actor.Authenticated() {
		return apperrors.Unauthenticated("authentication required")
	}
	if !actor.Role.AtLeast(min) {
		return apperrors.Forbidden(apperrors.ReasonInsufficientRole, fmt.Sprintf("requires role %s or higher", min))
	}
	return nil
}
