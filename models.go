package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's type
type UserRole = string

const (
	// RolePatient is the default account type
	RolePatient UserRole = "patient"
	// RoleAdmin can reach the admin dashboard routes
	RoleAdmin UserRole = "admin"
)

// CarePlanStatusDraft is the status of a newly created care plan
const CarePlanStatusDraft = "draft"

// User is the user model
type User struct {
	bun.BaseModel      `bun:"table:users,alias:usr"`
	ID                 uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email              string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash       string     `bun:"password_hash,notnull" json:"-"`
	FirstName          string     `bun:"first_name,notnull" json:"firstName,omitempty"`
	LastName           string     `bun:"last_name,notnull" json:"lastName,omitempty"`
	Name               string     `bun:"name,notnull" json:"name"`
	Role               UserRole   `bun:"user_type,notnull" json:"userType"`
	Phone              string     `bun:"phone_number" json:"phone,omitempty"`
	HasCompletedSurvey bool       `bun:"has_completed_survey,notnull,default:false" json:"hasCompletedSurvey"`
	CarePlanCount      int        `bun:"care_plan_count,scanonly" json:"-"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
}

// HasCarePlan is derived from the number of care plans the user owns
func (u *User) HasCarePlan() bool {
	return u != nil && u.CarePlanCount > 0
}

// DisplayName falls back to first and last name when name is empty
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Sanitized is the user payload safe to hand to API clients
func (u *User) Sanitized() UserPayload {
	return UserPayload{
		ID:                 u.ID.String(),
		Email:              u.Email,
		Name:               u.DisplayName(),
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		UserType:           u.Role,
		Phone:              u.Phone,
		HasCompletedSurvey: u.HasCompletedSurvey,
		HasCarePlan:        u.HasCarePlan(),
	}
}

// UserPayload is the JSON shape returned by the HTTP endpoints
type UserPayload struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	FirstName          string `json:"firstName,omitempty"`
	LastName           string `json:"lastName,omitempty"`
	UserType           string `json:"userType"`
	Phone              string `json:"phone,omitempty"`
	HasCompletedSurvey bool   `json:"hasCompletedSurvey"`
	HasCarePlan        bool   `json:"hasCarePlan"`
}

// CarePlan is owned by a user, its existence flips HasCarePlan
type CarePlan struct {
	bun.BaseModel `bun:"table:care_plans,alias:cp"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"userId"`
	Title         string     `bun:"title,notnull" json:"title"`
	Description   string     `bun:"description" json:"description"`
	Status        string     `bun:"status,notnull" json:"status"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

// Survey holds the answers of one survey submission
type Survey struct {
	bun.BaseModel `bun:"table:surveys,alias:srv"`
	ID            uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID      `bun:"user_id,notnull,type:uuid" json:"userId"`
	Answers       map[string]any `bun:"answers,type:jsonb" json:"answers"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

// NormalizeEmail is the comparison key for emails
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
