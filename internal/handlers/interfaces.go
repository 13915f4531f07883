package handlers

import (
	"github.com/zesbe/hallowa-sub001/internal/models"
)

// UserServiceInterface defines the contract for user service operations
// This interface is used for dependency injection and testing
type UserServiceInterface interface {
	CreateUser(username, email, password string) (*models.User, error)
	Authenticate(username, password, totpCode string) (*models.User, error)
	GetUser(id string) (*models.User, error)
	UpdateUser(id string, req *models.UpdateUserRequest) (*models.User, error)
	SetRole(id, role string) error
	SetPlan(id, plan string, durationDays int) error
	DeleteUser(id string) error
	ListUsers(limit, offset int) ([]*models.User, error)
	ChangePassword(id, oldPassword, newPassword string) error
	AdminSetPassword(id, newPassword string) error

	// 2FA/TOTP methods
	GenerateTOTPSecret(userID string) (string, error)
	EnableTOTP(userID, totpCode string) error
	DisableTOTP(userID string) error
}
