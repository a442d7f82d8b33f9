// Package apperr defines the error kinds shared by every domain package and
// their mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error kinds. Domain errors wrap exactly one of these.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrPaymentRequired = errors.New("payment required")
	ErrStorage         = errors.New("storage failure")
)

// Error carries a caller-facing message alongside its kind and an optional cause.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// New returns an error of the given kind with a display message.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying failure.
func Wrap(kind error, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Invalid is shorthand for a validation error.
func Invalid(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

// Forbidden is shorthand for an authorization failure.
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

// HTTPStatus maps an error onto its response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP converts a service error into an echo.HTTPError. Only the message of
// a typed Error is shown to the caller; anything else becomes a generic 500.
func ToHTTP(err error) *echo.HTTPError {
	status := HTTPStatus(err)
	var appErr *Error
	if errors.As(err, &appErr) {
		return echo.NewHTTPError(status, appErr.Msg).SetInternal(err)
	}
	return echo.NewHTTPError(status, http.StatusText(status)).SetInternal(err)
}
