// Package models defines the data models for the GLD API platform.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan represents a subscription plan.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// planDailyLimits maps each plan to its daily request ceiling.
var planDailyLimits = map[Plan]int{
	PlanFree:       50,
	PlanBasic:      1000,
	PlanPro:        10000,
	PlanEnterprise: 50000,
}

// planKeyLimits maps each plan to the number of API keys it may hold.
// A negative value means unlimited.
var planKeyLimits = map[Plan]int{
	PlanFree:       1,
	PlanBasic:      3,
	PlanPro:        10,
	PlanEnterprise: -1,
}

// DailyLimit returns the daily request ceiling for the plan. Unknown or
// legacy plan values fall back to the free ceiling.
func (p Plan) DailyLimit() int {
	if limit, ok := planDailyLimits[p]; ok {
		return limit
	}
	return planDailyLimits[PlanFree]
}

// MaxAPIKeys returns the API key cap for the plan, or -1 for unlimited.
// Unknown plan values fall back to the free cap.
func (p Plan) MaxAPIKeys() int {
	if limit, ok := planKeyLimits[p]; ok {
		return limit
	}
	return planKeyLimits[PlanFree]
}

// AllowsCustomKeys reports whether the plan may register caller-chosen
// API key secrets.
func (p Plan) AllowsCustomKeys() bool {
	return p == PlanPro || p == PlanEnterprise
}

// IsValid reports whether p is a known plan.
func (p Plan) IsValid() bool {
	_, ok := planDailyLimits[p]
	return ok
}

// Role represents a user's role on the platform.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents an account on the platform.
type User struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	Email                string     `json:"email" db:"email"`
	PasswordHash         string     `json:"-" db:"password_hash"`
	IsVerified           bool       `json:"is_verified" db:"is_verified"`
	VerificationToken    *string    `json:"-" db:"verification_token"`
	ResetPasswordToken   *string    `json:"-" db:"reset_password_token"`
	ResetPasswordExpires *time.Time `json:"-" db:"reset_password_expires"`
	Plan                 Plan       `json:"plan" db:"plan"`
	PlanExpiresAt        *time.Time `json:"plan_expires_at,omitempty" db:"plan_expires_at"`
	Role                 Role       `json:"role" db:"role"`
	IsSuspended          bool       `json:"is_suspended" db:"is_suspended"`
	RequestsToday        int        `json:"requests_today" db:"requests_today"`
	LastRequestReset     time.Time  `json:"last_request_reset" db:"last_request_reset"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
