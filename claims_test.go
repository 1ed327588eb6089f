package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestClaimsFromUser(t *testing.T) {
	user := &User{
		ID:            uuid.New(),
		Email:         "alice@example.com",
		FirstName:     "Alice",
		LastName:      "Smith",
		Role:          RolePatient,
		PasswordHash:  "secret-hash",
		CarePlanCount: 3,
	}

	claims := ClaimsFromUser(user)
	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, "Alice Smith", claims.Name)
	assert.True(t, claims.HasCarePlan)
	assert.False(t, claims.HasCompletedSurvey)
	assert.True(t, claims.HasRole(RolePatient))
	assert.False(t, claims.HasRole(RoleAdmin))
	assert.NoError(t, claims.validateShape())
}

func TestSessionClaimsTimes(t *testing.T) {
	claims := &SessionClaims{}
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())

	now := time.Now().Truncate(time.Second)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   "sub-1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	assert.Equal(t, "sub-1", claims.UserID())
	assert.True(t, claims.IssuedAt().Equal(now))
	assert.True(t, claims.Expires().Equal(now.Add(time.Hour)))
}

func TestSessionClaimsRefreshFrom(t *testing.T) {
	claims := &SessionClaims{UID: "u1", Email: "old@example.com", Name: "Old", UserType: RolePatient}

	claims.refreshFrom(&User{
		Email:              "new@example.com",
		FirstName:          "New",
		LastName:           "Name",
		Role:               RoleAdmin,
		HasCompletedSurvey: true,
		CarePlanCount:      1,
	})

	assert.Equal(t, "u1", claims.UID)
	assert.Equal(t, "new@example.com", claims.Email)
	assert.Equal(t, "New Name", claims.Name)
	assert.Equal(t, RoleAdmin, claims.UserType)
	assert.True(t, claims.HasCompletedSurvey)
	assert.True(t, claims.HasCarePlan)
}
