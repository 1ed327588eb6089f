package auth_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/goliatone/go-careauth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected auth.ErrorKind
	}{
		{
			name:     "Sentinel error",
			err:      auth.ErrDuplicateEmail,
			expected: auth.KindDuplicateEmail,
		},
		{
			name:     "Wrapped sentinel",
			err:      fmt.Errorf("register: %w", auth.ErrWeakPassword),
			expected: auth.KindWeakPassword,
		},
		{
			name:     "Sentinel with cause",
			err:      auth.ErrInvalidSignature.Wrap(errors.New("signature is invalid")),
			expected: auth.KindInvalidSignature,
		},
		{
			name:     "Plain error is internal",
			err:      errors.New("connection refused"),
			expected: auth.KindInternal,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.KindOf(tt.err))
		})
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := auth.ErrInternal.Wrap(cause)

	assert.ErrorIs(t, wrapped, auth.ErrInternal)
	assert.ErrorIs(t, wrapped, cause)
	assert.NotErrorIs(t, wrapped, auth.ErrInvalidCredentials)
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestWithMetadataDoesNotMutateSentinel(t *testing.T) {
	e := auth.ErrForbidden.WithMetadata(map[string]any{"role": "admin"})

	assert.Equal(t, "admin", e.Metadata["role"])
	assert.Nil(t, auth.ErrForbidden.Metadata)
	assert.ErrorIs(t, e, auth.ErrForbidden)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, auth.StatusCode(auth.ErrInvalidCredentials))
	assert.Equal(t, http.StatusBadRequest, auth.StatusCode(auth.ErrDuplicateEmail))
	assert.Equal(t, http.StatusForbidden, auth.StatusCode(auth.ErrForbidden))
	assert.Equal(t, http.StatusInternalServerError, auth.StatusCode(errors.New("boom")))
}

func TestIsTokenError(t *testing.T) {
	assert.True(t, auth.IsTokenError(auth.ErrTokenExpired))
	assert.True(t, auth.IsTokenError(auth.ErrInvalidSignature.Wrap(errors.New("bad"))))
	assert.False(t, auth.IsTokenError(auth.ErrUnauthenticated))
	assert.False(t, auth.IsTokenError(nil))
}

func TestErrorCategories(t *testing.T) {
	assert.True(t, goerrors.IsAuth(auth.ErrInvalidCredentials))
	assert.True(t, goerrors.IsValidation(auth.ErrWeakPassword))
	assert.True(t, goerrors.IsNotFound(auth.ErrUserNotFound.WithMetadata(map[string]any{"id": "x"})))
	assert.True(t, goerrors.IsInternal(auth.ErrInternal.Wrap(errors.New("db down"))))
	assert.True(t, goerrors.IsCategory(auth.ErrForbidden, goerrors.CategoryAuthz))
	assert.False(t, goerrors.IsAuth(errors.New("plain")))

	var rich *goerrors.Error
	assert.True(t, goerrors.As(auth.ErrDuplicateEmail, &rich))
	assert.Equal(t, string(auth.KindDuplicateEmail), rich.TextCode)
}
