package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantReason Reason
	}{
		{name: "validation", err: ErrOverpayment, wantStatus: http.StatusBadRequest, wantCode: "AMOUNT_EXCEEDS_REMAINING"},
		{name: "not found", err: ErrAliyahNotFound, wantStatus: http.StatusNotFound, wantCode: "ALIYAH_NOT_FOUND"},
		{name: "unauthenticated", err: Unauthenticated("missing token"), wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHENTICATED", wantReason: ReasonNotAuthenticated},
		{name: "forbidden", err: Forbidden(ReasonTargetProtected, "admin records are protected"), wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN", wantReason: ReasonTargetProtected},
		{name: "conflict", err: ErrConflict, wantStatus: http.StatusConflict, wantCode: "CONCURRENT_MODIFICATION"},
		{name: "unavailable", err: Unavailable("CALENDAR_UNAVAILABLE", "calendar down"), wantStatus: http.StatusServiceUnavailable, wantCode: "CALENDAR_UNAVAILABLE"},
		{name: "wrapped", err: fmt.Errorf("pay: %w", ErrInvalidAmount), wantStatus: http.StatusBadRequest, wantCode: "INVALID_AMOUNT"},
		{name: "unknown", err: fmt.Errorf("dial tcp: connection refused"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
			assert.Equal(t, tt.wantReason, httpErr.ToErrorResponse().Reason)
		})
	}
}

func TestMapErrorToHTTP_DoesNotLeakInternalMessage(t *testing.T) {
	httpErr := MapErrorToHTTP(fmt.Errorf("Error 1045: Access denied for user 'root'"))
	assert.Equal(t, "internal server error", httpErr.Message)
}

func TestAppErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("delete: %w", Forbidden(ReasonTargetProtected, "protected"))

	assert.ErrorIs(t, wrapped, Forbidden(ReasonTargetProtected, ""))
	assert.NotErrorIs(t, wrapped, Forbidden(ReasonNotOwner, ""))
	assert.ErrorIs(t, fmt.Errorf("x: %w", ErrAliyahNotFound), ErrAliyahNotFound)
	assert.NotErrorIs(t, ErrAliyahNotFound, ErrUserNotFound)
}
