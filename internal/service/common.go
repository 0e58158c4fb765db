package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"synagogue/internal/auth"
	apperrors "synagogue/internal/errors"
	"synagogue/internal/metrics"
)

// notFoundAs replaces gorm's not-found error with a domain sentinel and wraps
// anything else.
func notFoundAs(err error, sentinel *apperrors.AppError, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}

// checkAccess records and logs a denial from the gate, passing allows through.
func checkAccess(log *zap.Logger, actor *auth.Session, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		metrics.AuthzDenialsTotal.WithLabelValues(string(appErr.Reason)).Inc()
	}
	fields := []zap.Field{zap.Error(err)}
	if actor != nil {
		fields = append(fields, zap.String("actor_id", actor.UserID.String()), zap.String("actor_role", string(actor.Role)))
	}
	log.Warn("access denied", fields...)
	return err
}

// authenticated fails for calls without a signed-in actor.
func authenticated(log *zap.Logger, actor *auth.Session) error {
	if actor.Authenticated() {
		return nil
	}
	return checkAccess(log, actor, apperrors.Unauthenticated("authentication required"))
}

// validateMoney accepts finite amounts with at most two decimal places.
// positive requires the amount to be strictly greater than zero.
func validateMoney(amount decimal.Decimal, positive bool) error {
	if amount.IsNegative() || (positive && amount.IsZero()) {
		return apperrors.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return apperrors.Validation("INVALID_AMOUNT", "amount supports at most two decimal places")
	}
	return nil
}
