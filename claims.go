package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed payload of a session token
type SessionClaims struct {
	jwt.RegisteredClaims
	UID                string   `json:"id"`
	Email              string   `json:"email"`
	Name               string   `json:"name"`
	UserType           UserRole `json:"userType"`
	HasCompletedSurvey bool     `json:"hasCompletedSurvey"`
	HasCarePlan        bool     `json:"hasCarePlan"`
}

// ClaimsFromUser builds the non secret claim set for user
func ClaimsFromUser(user *User) *SessionClaims {
	return &SessionClaims{
		UID:                user.ID.String(),
		Email:              user.Email,
		Name:               user.DisplayName(),
		UserType:           user.Role,
		HasCompletedSurvey: user.HasCompletedSurvey,
		HasCarePlan:        user.HasCarePlan(),
	}
}

// UserID returns the user ID
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Role returns the user type
func (c *SessionClaims) Role() string {
	return c.UserType
}

// HasRole checks the user type
func (c *SessionClaims) HasRole(role string) bool {
	return c.UserType == role
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Profile returns the advisory snapshot stored in the profile cookie
func (c *SessionClaims) Profile() ProfileSnapshot {
	return ProfileSnapshot{
		ID:                 c.UserID(),
		Email:              c.Email,
		Name:               c.Name,
		UserType:           c.UserType,
		HasCompletedSurvey: c.HasCompletedSurvey,
		HasCarePlan:        c.HasCarePlan,
	}
}

// refreshFrom overwrites the mutable profile claims with the live record
func (c *SessionClaims) refreshFrom(user *User) {
	c.Email = user.Email
	c.Name = user.DisplayName()
	c.UserType = user.Role
	c.HasCompletedSurvey = user.HasCompletedSurvey
	c.HasCarePlan = user.HasCarePlan()
}

// validateShape rejects tokens that verify but lack required claims
func (c *SessionClaims) validateShape() error {
	if c.UID == "" {
		return ErrInvalidSignature.WithMetadata(map[string]any{"claim": "id"})
	}
	if c.Email == "" {
		return ErrInvalidSignature.WithMetadata(map[string]any{"claim": "email"})
	}
	if !IsValidRole(c.UserType) {
		return ErrInvalidSignature.WithMetadata(map[string]any{"claim": "userType"})
	}
	return nil
}

// ProfileSnapshot is the client readable mirror of the claims.
// It is display only and never used for authorization.
type ProfileSnapshot struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	UserType           string `json:"userType"`
	HasCompletedSurvey bool   `json:"hasCompletedSurvey"`
	HasCarePlan        bool   `json:"hasCarePlan"`
}
