package auth

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind is the stable text code attached to every error this package returns
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = goerrors.TextCodeInvalidCredentials
	KindDuplicateEmail     ErrorKind = "DUPLICATE_EMAIL"
	KindWeakPassword       ErrorKind = "WEAK_PASSWORD"
	KindPasswordTooLong    ErrorKind = "PASSWORD_TOO_LONG"
	KindInvalidRole        ErrorKind = "INVALID_ROLE"
	KindInvalidEmail       ErrorKind = "INVALID_EMAIL"
	KindInvalidPhone       ErrorKind = "INVALID_PHONE"
	KindMissingFields      ErrorKind = "MISSING_FIELDS"
	KindInvalidSignature   ErrorKind = "INVALID_SIGNATURE"
	KindExpired            ErrorKind = "EXPIRED"
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindTooManyAttempts    ErrorKind = goerrors.TextCodeTooManyAttempts
	KindInternal           ErrorKind = "INTERNAL_ERROR"
)

type richError = goerrors.Error

// Error is a go-errors error whose text code is an ErrorKind.
// Wrap and WithMetadata return copies, so package sentinels are never mutated.
type Error struct {
	*richError
}

func newError(kind ErrorKind, category goerrors.Category, code int, message string) *Error {
	return &Error{
		richError: goerrors.New(message, category).
			WithTextCode(string(kind)).
			WithCode(code),
	}
}

// Kind returns the text code of the error
func (e *Error) Kind() ErrorKind {
	return ErrorKind(e.TextCode)
}

// Is matches any *Error with the same kind, so wrapped
// copies of a sentinel still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.TextCode == e.TextCode
}

// Wrap returns a copy of the error that records cause
func (e *Error) Wrap(cause error) *Error {
	c := e.clone()
	c.Source = cause
	return c
}

// WithMetadata returns a copy with the given metadata merged in
func (e *Error) WithMetadata(md map[string]any) *Error {
	c := e.clone()
	c.richError.WithMetadata(md)
	return c
}

// As exposes the underlying go-errors value, so helpers such as
// goerrors.IsCategory work on package errors.
func (e *Error) As(target any) bool {
	if t, ok := target.(**goerrors.Error); ok {
		*t = e.richError
		return true
	}
	return false
}

func (e *Error) clone() *Error {
	return &Error{richError: e.richError.Clone()}
}

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike
	ErrInvalidCredentials = newError(KindInvalidCredentials, goerrors.CategoryAuth, goerrors.CodeUnauthorized, "invalid credentials")
	// ErrDuplicateEmail a user record already owns the email
	ErrDuplicateEmail = newError(KindDuplicateEmail, goerrors.CategoryConflict, goerrors.CodeBadRequest, "email already registered")
	// ErrWeakPassword password shorter than MinPasswordLength
	ErrWeakPassword = newError(KindWeakPassword, goerrors.CategoryValidation, goerrors.CodeBadRequest, "password too short")
	// ErrPasswordTooLong password longer than MaxPasswordLength bytes
	ErrPasswordTooLong = newError(KindPasswordTooLong, goerrors.CategoryValidation, goerrors.CodeBadRequest, "password too long")
	// ErrInvalidRole role is not one of the known user types
	ErrInvalidRole = newError(KindInvalidRole, goerrors.CategoryValidation, goerrors.CodeBadRequest, "invalid user type")
	// ErrInvalidEmail email is empty or not a valid address
	ErrInvalidEmail = newError(KindInvalidEmail, goerrors.CategoryValidation, goerrors.CodeBadRequest, "invalid email")
	// ErrInvalidPhone phone number can not be parsed for the configured region
	ErrInvalidPhone = newError(KindInvalidPhone, goerrors.CategoryValidation, goerrors.CodeBadRequest, "invalid phone number")
	// ErrMissingFields request payload lacks required fields
	ErrMissingFields = newError(KindMissingFields, goerrors.CategoryBadInput, goerrors.CodeBadRequest, "missing required fields")
	// ErrInvalidSignature token could not be verified or is malformed
	ErrInvalidSignature = newError(KindInvalidSignature, goerrors.CategoryAuth, goerrors.CodeUnauthorized, "invalid token signature")
	// ErrTokenExpired token is past its expiration claim
	ErrTokenExpired = newError(KindExpired, goerrors.CategoryAuth, goerrors.CodeUnauthorized, "token is expired")
	// ErrUnauthenticated no valid session is attached to the request
	ErrUnauthenticated = newError(KindUnauthenticated, goerrors.CategoryAuth, goerrors.CodeUnauthorized, "unauthenticated")
	// ErrForbidden session is valid but lacks the required role
	ErrForbidden = newError(KindForbidden, goerrors.CategoryAuthz, goerrors.CodeForbidden, "forbidden")
	// ErrUserNotFound storage has no record for the lookup key
	ErrUserNotFound = newError(KindNotFound, goerrors.CategoryNotFound, goerrors.CodeNotFound, "user not found")
	// ErrTooManyLoginAttempts login rate limit exceeded
	ErrTooManyLoginAttempts = newError(KindTooManyAttempts, goerrors.CategoryRateLimit, goerrors.CodeTooManyRequests, "too many login attempts")
	// ErrInternal storage or transport failure
	ErrInternal = newError(KindInternal, goerrors.CategoryInternal, goerrors.CodeInternal, "internal error")
	// ErrNoEmptyString refuse to hash empty values
	ErrNoEmptyString = newError(KindWeakPassword, goerrors.CategoryValidation, goerrors.CodeBadRequest, "value can not be empty")
)

// internalError wraps a storage or transport failure
func internalError(err error, message string) *Error {
	e := ErrInternal.Wrap(err)
	if message != "" {
		e.Message = message
	}
	return e
}

// KindOf classifies err. Anything that is not an *Error is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindInternal
}

// StatusCode returns the HTTP status associated with err
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Code > 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}

// IsTokenError reports whether err came from decoding a session token
func IsTokenError(err error) bool {
	switch KindOf(err) {
	case KindInvalidSignature, KindExpired:
		return true
	default:
		return false
	}
}
