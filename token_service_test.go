package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-careauth"
)

func testUser() *auth.User {
	return &auth.User{
		ID:                 uuid.New(),
		Email:              "alice@example.com",
		FirstName:          "Alice",
		LastName:           "Smith",
		Name:               "Alice Smith",
		Role:               auth.RolePatient,
		HasCompletedSurvey: true,
		CarePlanCount:      1,
	}
}

func TestNewTokenService(t *testing.T) {
	t.Run("requires a signing key", func(t *testing.T) {
		ts, err := auth.NewTokenService(nil, time.Hour, "issuer")
		assert.Error(t, err)
		assert.Nil(t, ts)
	})

	t.Run("non positive ttl falls back to default", func(t *testing.T) {
		ts, err := auth.NewTokenService([]byte("k"), 0, "issuer")
		require.NoError(t, err)
		assert.Equal(t, auth.DefaultTokenTTL, ts.TTL())
	})

	t.Run("from config", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.ttl = 2 * time.Hour
		ts, err := auth.NewTokenServiceFromConfig(cfg)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Hour, ts.TTL())
	})
}

func TestTokenService_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts, err := auth.NewTokenService([]byte("test-signing-key"), 0, "careauth-test",
		auth.WithClock(func() time.Time { return now }),
		auth.WithTokenLogger(quietLogger{}),
	)
	require.NoError(t, err)

	user := testUser()
	token, err := ts.Encode(user)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := ts.Decode(token)
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice Smith", claims.Name)
	assert.Equal(t, auth.RolePatient, claims.Role())
	assert.True(t, claims.HasCompletedSurvey)
	assert.True(t, claims.HasCarePlan)
	assert.Equal(t, "careauth-test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(24*time.Hour)))
}

func TestTokenService_EncodeIsUniquePerCall(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("test-signing-key"), 0, "")
	require.NoError(t, err)

	user := testUser()
	a, err := ts.Encode(user)
	require.NoError(t, err)
	b, err := ts.Encode(user)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestTokenService_EncodeNilUser(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("test-signing-key"), 0, "")
	require.NoError(t, err)

	_, err = ts.Encode(nil)
	assert.Equal(t, auth.KindInternal, auth.KindOf(err))
}

func TestTokenService_Expired(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issued

	ts, err := auth.NewTokenService([]byte("test-signing-key"), 0, "careauth-test",
		auth.WithClock(func() time.Time { return clock }),
		auth.WithTokenLogger(quietLogger{}),
	)
	require.NoError(t, err)

	token, err := ts.Encode(testUser())
	require.NoError(t, err)

	clock = issued.Add(23 * time.Hour)
	_, err = ts.Decode(token)
	assert.NoError(t, err)

	clock = issued.Add(24*time.Hour + time.Second)
	_, err = ts.Decode(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.Equal(t, auth.KindExpired, auth.KindOf(err))
	assert.True(t, auth.IsTokenError(err))
}

func TestTokenService_InvalidSignature(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("test-signing-key"), 0, "careauth-test", auth.WithTokenLogger(quietLogger{}))
	require.NoError(t, err)

	token, err := ts.Encode(testUser())
	require.NoError(t, err)

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(token, ".")
		forged, err := ts.SignClaims(&auth.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "careauth-test",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			UID:      uuid.NewString(),
			Email:    "mallory@example.com",
			UserType: auth.RoleAdmin,
		})
		require.NoError(t, err)
		forgedParts := strings.Split(forged, ".")

		// original signature with a different payload
		tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]
		_, err = ts.Decode(tampered)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	})

	t.Run("different key", func(t *testing.T) {
		other, err := auth.NewTokenService([]byte("other-key"), 0, "careauth-test")
		require.NoError(t, err)

		foreign, err := other.Encode(testUser())
		require.NoError(t, err)

		_, err = ts.Decode(foreign)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	})

	t.Run("garbage", func(t *testing.T) {
		for _, raw := range []string{"", "not-a-token", "a.b.c"} {
			_, err := ts.Decode(raw)
			assert.ErrorIs(t, err, auth.ErrInvalidSignature, raw)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := auth.NewTokenService([]byte("test-signing-key"), 0, "someone-else")
		require.NoError(t, err)

		foreign, err := other.Encode(testUser())
		require.NoError(t, err)

		_, err = ts.Decode(foreign)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	})
}

func TestTokenService_RejectsOtherAlgorithms(t *testing.T) {
	key := []byte("test-signing-key")
	ts, err := auth.NewTokenService(key, 0, "", auth.WithTokenLogger(quietLogger{}))
	require.NoError(t, err)

	claims := auth.ClaimsFromUser(testUser())
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	t.Run("none", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ts.Decode(raw)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	})

	t.Run("HS384", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(key)
		require.NoError(t, err)

		_, err = ts.Decode(raw)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	})
}

func TestTokenService_MissingClaims(t *testing.T) {
	key := []byte("test-signing-key")
	ts, err := auth.NewTokenService(key, 0, "", auth.WithTokenLogger(quietLogger{}))
	require.NoError(t, err)

	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		claims *auth.SessionClaims
		claim  string
	}{
		{
			name:   "missing id",
			claims: &auth.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}, Email: "a@example.com", UserType: auth.RolePatient},
			claim:  "id",
		},
		{
			name:   "missing email",
			claims: &auth.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}, UID: uuid.NewString(), UserType: auth.RolePatient},
			claim:  "email",
		},
		{
			name:   "unknown user type",
			claims: &auth.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}, UID: uuid.NewString(), Email: "a@example.com", UserType: "doctor"},
			claim:  "userType",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ts.SignClaims(tt.claims)
			require.NoError(t, err)

			_, err = ts.Decode(raw)
			require.ErrorIs(t, err, auth.ErrInvalidSignature)

			var authErr *auth.Error
			require.True(t, errors.As(err, &authErr))
			assert.Equal(t, tt.claim, authErr.Metadata["claim"])
		})
	}

	t.Run("missing expiration", func(t *testing.T) {
		claims := auth.ClaimsFromUser(testUser())
		raw, err := ts.SignClaims(claims)
		require.NoError(t, err)

		_, err = ts.Decode(raw)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	})
}
