package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	apperrors "synagogue/internal/errors"
	"synagogue/internal/model"
)

const (
	contextKeyToken   = "token"
	contextKeySession = "session"
)

// JWTMiddleware verifies the bearer token on every request of a group.
func JWTMiddleware(jwtService *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  jwtService.Secret(),
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ContextKey:  contextKeyToken,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized("missing or invalid token")
		},
	})
}

// UserLookup loads the current state of a user account.
type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// SessionMiddleware turns verified claims into a Session and rejects refresh
// tokens and access tokens revoked at logout. The session carries the user's
// stored role, not the one signed into the token, so a role change or an
// account deletion takes effect on the next request.
func SessionMiddleware(store TokenStoreInterface, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get(contextKeyToken).(*jwt.Token)
			if !ok {
				return unauthorized("missing token")
			}
			claims, ok := token.Claims.(*Claims)
			if !ok || !claims.IsAccessToken() {
				return unauthorized("invalid token")
			}
			if revoked, _ := store.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID); revoked {
				return unauthorized("token has been revoked")
			}
			session, err := claims.Session()
			if err != nil {
				return unauthorized("invalid token")
			}
			user, err := users.FindByID(c.Request().Context(), session.UserID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return unauthorized("account no longer exists")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, apperrors.ErrorResponse{
					Error: "internal server error",
					Code:  "INTERNAL_ERROR",
				})
			}
			session.Role = user.Role
			c.Set(contextKeySession, session)
			return next(c)
		}
	}
}

// SessionFrom returns the request's session, or nil outside the secured group.
func SessionFrom(c echo.Context) *Session {
	session, _ := c.Get(contextKeySession).(*Session)
	return session
}

// WithSession stores a session on the context; used by tests and internal callers.
func WithSession(c echo.Context, session *Session) {
	c.Set(contextKeySession, session)
}

func unauthorized(message string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Error:  message,
		Code:   "UNAUTHENTICATED",
		Reason: apperrors.ReasonNotAuthenticated,
	})
}
