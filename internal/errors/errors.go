package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindConflict       Kind = "conflict"
	KindUnavailable    Kind = "unavailable"
	KindInternal       Kind = "internal"
)

// Reason explains an authorization or authentication denial.
type Reason string

const (
	ReasonNotAuthenticated Reason = "NOT_AUTHENTICATED"
	ReasonInsufficientRole Reason = "INSUFFICIENT_ROLE"
	ReasonNotOwner         Reason = "NOT_OWNER"
	ReasonTargetProtected  Reason = "TARGET_PROTECTED"
)

// AppError is a domain error carrying enough structure to pick an HTTP status.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Reason  Reason
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches AppErrors by kind and code so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code && (t.Reason == "" || e.Reason == t.Reason)
}

// Validation builds a 400 error.
func Validation(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message}
}

// NotFound builds a 404 error.
func NotFound(code, message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: code, Message: message}
}

// Unauthenticated builds a 401 error.
func Unauthenticated(message string) *AppError {
	return &AppError{Kind: KindAuthentication, Code: "UNAUTHENTICATED", Message: message, Reason: ReasonNotAuthenticated}
}

// Forbidden builds a 403 error with a reason code.
func Forbidden(reason Reason, message string) *AppError {
	return &AppError{Kind: KindAuthorization, Code: "FORBIDDEN", Message: message, Reason: reason}
}

// Conflict builds a 409 error.
func Conflict(code, message string) *AppError {
	return &AppError{Kind: KindConflict, Code: code, Message: message}
}

// Unavailable builds a 503 error for a failing upstream dependency.
func Unavailable(code, message string) *AppError {
	return &AppError{Kind: KindUnavailable, Code: code, Message: message}
}

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = NotFound("USER_NOT_FOUND", "user not found")
	// ErrAliyahNotFound is returned when an aliyah is not found.
	ErrAliyahNotFound = NotFound("ALIYAH_NOT_FOUND", "aliyah not found")
	// ErrSynagogueNotFound is returned when a synagogue is not found.
	ErrSynagogueNotFound = NotFound("SYNAGOGUE_NOT_FOUND", "synagogue not found")
	// ErrInvalidAmount is returned when an amount is not a finite non-negative number.
	ErrInvalidAmount = Validation("INVALID_AMOUNT", "invalid amount")
	// ErrOverpayment is returned when a payment exceeds the remaining balance.
	ErrOverpayment = Validation("AMOUNT_EXCEEDS_REMAINING", "amount exceeds remaining balance")
	// ErrAlreadyPaid is returned when paying an aliyah that is already settled.
	ErrAlreadyPaid = Validation("ALIYAH_ALREADY_PAID", "aliyah is already paid")
	// ErrAmountBelowPaid is returned when an edit would drop the amount under what was paid.
	ErrAmountBelowPaid = Validation("AMOUNT_BELOW_PAID", "amount cannot be lower than the amount already paid")
	// ErrInvalidRole is returned for an unknown role name.
	ErrInvalidRole = Validation("INVALID_ROLE", "invalid role")
	// ErrConflict is returned when a concurrent update won the race.
	ErrConflict = Conflict("CONCURRENT_MODIFICATION", "aliyah was modified concurrently, retry")
	// ErrPhoneTaken is returned when registering a phone that already exists.
	ErrPhoneTaken = Conflict("USER_ALREADY_EXISTS", "user with this phone already exists")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason Reason `json:"reason,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Reason     Reason
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Reason: e.Reason,
	}
}

// IsInternal reports whether err maps to a 500.
func IsInternal(err error) bool {
	var appErr *AppError
	return !stderrors.As(err, &appErr) || appErr.Kind == KindInternal
}

// MapErrorToHTTP maps domain errors to HTTP errors. Unknown errors never leak
// their message.
func MapErrorToHTTP(err error) *HTTPError {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case KindValidation:
		status = http.StatusBadRequest
	case KindNotFound:
		status = http.StatusNotFound
	case KindAuthentication:
		status = http.StatusUnauthorized
	case KindAuthorization:
		status = http.StatusForbidden
	case KindConflict:
		status = http.StatusConflict
	case KindUnavailable:
		status = http.StatusServiceUnavailable
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}

	httpErr := NewHTTPError(status, appErr.Message, appErr.Code)
	httpErr.Reason = appErr.Reason
	return httpErr
}
