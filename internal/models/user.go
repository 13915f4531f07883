package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles assignable to a user account
const (
	RoleOwner = "owner" // platform operator
	RoleAdmin = "admin" // support staff
	RoleUser  = "user"  // tenant
)

// Plan codes sold by the platform
const (
	PlanTrial = "trial"
	PlanBasic = "basic"
	PlanPro   = "pro"
)

// User represents a tenant account with authentication state and the plan
// that gates how much it may send.
type User struct {
	ID                  string  `json:"id"`                                       // UUID
	Username            string  `json:"username" binding:"required,min=3,max=50"` // Unique username
	Email               string  `json:"email" binding:"required,email"`           // User email
	PasswordHash        string  `json:"-"`                                        // EXCLUDED from JSON - bcrypt hash
	Role                string  `json:"role"`                                     // owner/admin/user
	Plan                string  `json:"plan"`                                     // trial/basic/pro
	PlanExpiresAt       *int64  `json:"plan_expires_at,omitempty"`                // Unix timestamp plan expiry
	MessageQuota        int64   `json:"message_quota"`                            // Messages allowed per period
	MessagesUsed        int64   `json:"messages_used"`                            // Messages consumed this period
	TOTPSecret          *string `json:"-"`                                        // EXCLUDED from JSON - TOTP secret for 2FA
	TOTPEnabled         bool    `json:"totp_enabled"`                             // Whether 2FA is enabled
	Active              bool    `json:"active"`                                   // Whether user account is active
	FailedLoginAttempts int     `json:"failed_login_attempts"`                    // Consecutive failed login attempts
	LockedUntil         *int64  `json:"locked_until,omitempty"`                   // Unix timestamp when account lock expires
	LastLogin           *int64  `json:"last_login,omitempty"`                     // Unix timestamp of last successful login
	CreatedAt           int64   `json:"created_at"`                               // Unix timestamp of account creation
	UpdatedAt           int64   `json:"updated_at"`                               // Unix timestamp of last update
}

// CreateUserRequest represents the request body for creating a new user
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"` // Plain password - will be hashed
}

// UpdateUserRequest represents the request body for updating an existing user
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty" binding:"omitempty,email"`
	Active      *bool   `json:"active,omitempty"`
	TOTPEnabled *bool   `json:"totp_enabled,omitempty"`
}

// ChangePasswordRequest represents a self-service password change
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// UserResponse represents a safe user representation for API responses
// This excludes all sensitive fields and is safe to send to clients
type UserResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	Plan          string `json:"plan"`
	PlanExpiresAt *int64 `json:"plan_expires_at,omitempty"`
	MessageQuota  int64  `json:"message_quota"`
	MessagesUsed  int64  `json:"messages_used"`
	Active        bool   `json:"active"`
	TOTPEnabled   bool   `json:"totp_enabled"`
	LastLogin     *int64 `json:"last_login,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// NewUser creates a new User on the trial plan with generated UUID and
// timestamps. The password must already be hashed.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().Unix()
	trialEnd := now + 7*24*3600
	return &User{
		ID:            uuid.New().String(),
		Username:      username,
		Email:         email,
		PasswordHash:  passwordHash,
		Role:          RoleUser,
		Plan:          PlanTrial,
		PlanExpiresAt: &trialEnd,
		MessageQuota:  PlanQuota(PlanTrial),
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// PlanQuota returns the messages-per-period allowance for a plan code.
func PlanQuota(plan string) int64 {
	switch plan {
	case PlanPro:
		return 50000
	case PlanBasic:
		return 10000
	default:
		return 100
	}
}

// PlanDeviceSlots returns the base number of device slots for a plan code.
// extra_device add-ons raise this per user.
func PlanDeviceSlots(plan string) int {
	switch plan {
	case PlanPro:
		return 5
	case PlanBasic:
		return 2
	default:
		return 1
	}
}

// IsActive returns whether the user account is active and not locked
func (u *User) IsActive() bool {
	if !u.Active {
		return false
	}

	return !u.IsLocked()
}

// IsLocked returns whether the user account is currently locked
// An account is locked if LockedUntil is set and in the future
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}

	now := time.Now().Unix()
	return *u.LockedUntil > now
}

// PlanExpired reports whether the paid/trial period has lapsed. Users with
// an expired plan can still log in but cannot enqueue messages.
func (u *User) PlanExpired() bool {
	if u.PlanExpiresAt == nil {
		return false
	}
	return *u.PlanExpiresAt <= time.Now().Unix()
}

// QuotaRemaining returns how many more messages the user may enqueue this period.
func (u *User) QuotaRemaining() int64 {
	remaining := u.MessageQuota - u.MessagesUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Permissions returns the permission names implied by the user's role.
// They ride inside the JWT so middleware can gate admin routes without a
// database round trip.
func (u *User) Permissions() []string {
	switch u.Role {
	case RoleOwner:
		return []string{
			"users:read", "users:write", "users:delete",
			"payments:read", "addons:write", "stats:read",
		}
	case RoleAdmin:
		return []string{"users:read", "users:write", "payments:read", "stats:read"}
	default:
		return nil
	}
}

// ToResponse converts User to UserResponse, excluding all sensitive fields
// This is safe to send to clients via API responses
func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		Plan:          u.Plan,
		PlanExpiresAt: u.PlanExpiresAt,
		MessageQuota:  u.MessageQuota,
		MessagesUsed:  u.MessagesUsed,
		Active:        u.Active,
		TOTPEnabled:   u.TOTPEnabled,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
	}
}
