package auth

import (
	"github.com/google/uuid"

	"synagogue/internal/model"
)

// Session is the authenticated principal of one request. It is passed
// explicitly into every service call.
type Session struct {
	UserID  uuid.UUID
	Role    model.Role
	TokenID string
}

// Authenticated reports whether s identifies a user.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != uuid.Nil
}

// Is reports whether the session belongs to userID.
func (s *Session) Is(userID uuid.UUID) bool {
	return s.Authenticated() && s.UserID == userID
}
