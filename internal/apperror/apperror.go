// Package apperror defines the error taxonomy shared by the services and the
// HTTP layer. Services return *Error values; handlers turn the Kind into a
// status code and never show the wrapped cause to the client.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidCredentials
	KindForbidden
	KindNotFound
	KindConflict
	KindAccountLocked
	KindPasswordExpired
	KindNothingToCommit
)

var kindNames = map[Kind]string{
	KindInternal:           "internal",
	KindValidation:         "validation_error",
	KindInvalidCredentials: "invalid_credentials",
	KindForbidden:          "forbidden",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindAccountLocked:      "account_locked",
	KindPasswordExpired:    "password_expired",
	KindNothingToCommit:    "nothing_to_commit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden, KindPasswordExpired:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAccountLocked:
		return http.StatusLocked
	case KindNothingToCommit:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error

	// RetryAfterMinutes is set for KindAccountLocked.
	RetryAfterMinutes int
	// RemainingAttempts is set for KindInvalidCredentials when the account exists.
	RemainingAttempts *int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func NothingToCommit(msg string) *Error { return &Error{Kind: KindNothingToCommit, Message: msg} }

// Internal wraps an unexpected failure. msg is logged, never sent to clients.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// InvalidCredentials never says whether the account exists. remaining is nil
// when the identifier matched nothing.
func InvalidCredentials(remaining *int) *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials", RemainingAttempts: remaining}
}

func AccountLocked(retryAfterMinutes int) *Error {
	return &Error{
		Kind:              KindAccountLocked,
		Message:           fmt.Sprintf("Account locked, try again in %d minutes", retryAfterMinutes),
		RetryAfterMinutes: retryAfterMinutes,
	}
}

func PasswordExpired() *Error {
	return &Error{Kind: KindPasswordExpired, Message: "Password expired, please change your password"}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// PublicMessage is what a client may see for err.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "Internal server error"
}
