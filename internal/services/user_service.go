package services

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zesbe/hallowa-sub001/internal/config"
	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/logger"
	"github.com/zesbe/hallowa-sub001/pkg/utils"

	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

const (
	// BcryptCost is the cost parameter for bcrypt password hashing
	BcryptCost = 12

	// MaxFailedLoginAttempts is the number of failed attempts before account lockout
	MaxFailedLoginAttempts = 5

	// LockoutDuration is the duration of account lockout after max failed attempts
	LockoutDuration = 30 * time.Minute

	// MinPasswordLength is the minimum length for passwords
	MinPasswordLength = 8
)

var (
	// ErrInvalidCredentials indicates authentication failure
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountLocked indicates the account is temporarily locked
	ErrAccountLocked = errors.New("account is locked due to too many failed login attempts")

	// ErrAccountInactive indicates the account has been deactivated
	ErrAccountInactive = errors.New("user account is inactive")

	// ErrInvalidTOTP indicates TOTP code validation failure
	ErrInvalidTOTP = errors.New("invalid TOTP code")

	// ErrUserNotFound indicates user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidUsername indicates username validation failure
	ErrInvalidUsername = errors.New("username must be 3-50 characters and contain only alphanumeric characters and underscores")

	// ErrInvalidEmail indicates email validation failure
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPassword indicates password validation failure
	ErrInvalidPassword = errors.New("password must be at least 8 characters")

	// ErrIncorrectOldPassword indicates old password verification failed
	ErrIncorrectOldPassword = errors.New("incorrect old password")
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// UserService provides business logic for account management and login
type UserService struct {
	repo          db.UserRepository
	encryptionKey string
}

// NewUserService creates a new UserService instance
func NewUserService(repo db.UserRepository, cfg *config.Config) *UserService {
	key := ""
	if cfg != nil {
		key = cfg.Security.EncryptionKey
	}
	return &UserService{
		repo:          repo,
		encryptionKey: key,
	}
}

// CreateUser creates a new user with hashed password and validation
func (s *UserService) CreateUser(username, email, password string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	// Check if username already exists
	existingUser, err := s.repo.GetByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existingUser != nil {
		return nil, errors.New("username already exists")
	}

	existingUser, err = s.repo.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existingUser != nil {
		return nil, errors.New("email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// New accounts start on the trial plan
	user := models.NewUser(username, email, string(hashedPassword))

	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies username/password and optional TOTP code
func (s *UserService) Authenticate(username, password, totpCode string) (*models.User, error) {
	user, err := s.repo.GetByUsername(username)
	if err != nil {
		logger.Error("Database error during authentication",
			zap.String("username", username),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		logger.Warn("Authentication failed - user not found",
			zap.String("username", username),
			zap.String("event_type", "invalid_credentials"),
		)
		return nil, ErrInvalidCredentials
	}

	user, err = s.checkAccountLock(user)
	if err != nil {
		logger.Warn("Authentication failed - account locked",
			zap.String("username", username),
			zap.String("event_type", "account_locked"),
		)
		return nil, err
	}

	if !user.Active {
		logger.Warn("Authentication failed - account inactive",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("event_type", "inactive_account"),
		)
		return nil, ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if incrementErr := s.recordFailedLogin(user); incrementErr != nil {
			logger.Error("Failed to record failed login",
				zap.String("user_id", user.ID),
				zap.Error(incrementErr),
			)
		}
		logger.Warn("Authentication failed - invalid password",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("event_type", "failed_login"),
		)
		return nil, ErrInvalidCredentials
	}

	if err := s.verifyTOTP(user, totpCode); err != nil {
		logger.Warn("Authentication failed - TOTP validation failed",
			zap.String("user_id", user.ID),
			zap.String("username", user.Username),
			zap.String("event_type", "failed_totp_validation"),
		)
		return nil, err
	}

	if err := s.repo.ResetFailedLogin(user.ID); err != nil {
		return nil, fmt.Errorf("failed to reset failed login: %w", err)
	}
	if err := s.repo.UpdateLastLogin(user.ID); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}

	user, err = s.repo.GetByID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}

	logger.Info("User authenticated successfully",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.String("event_type", "successful_login"),
	)

	return user, nil
}

// checkAccountLock checks if user account is locked and handles lock expiry
func (s *UserService) checkAccountLock(user *models.User) (*models.User, error) {
	if user.LockedUntil == nil || *user.LockedUntil == 0 {
		return user, nil
	}

	lockTime := time.Unix(*user.LockedUntil, 0)
	if time.Now().Before(lockTime) {
		return nil, ErrAccountLocked
	}

	// Lock expired, reset failed attempts
	if err := s.repo.ResetFailedLogin(user.ID); err != nil {
		return nil, fmt.Errorf("failed to reset failed login: %w", err)
	}

	reloaded, err := s.repo.GetByID(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if reloaded == nil {
		return nil, ErrUserNotFound
	}

	return reloaded, nil
}

// recordFailedLogin bumps the counter, locking the account at the threshold
func (s *UserService) recordFailedLogin(user *models.User) error {
	var lockedUntil *int64
	if user.FailedLoginAttempts+1 >= MaxFailedLoginAttempts {
		until := time.Now().Add(LockoutDuration).Unix()
		lockedUntil = &until
	}
	return s.repo.IncrementFailedLogin(user.ID, lockedUntil)
}

// verifyTOTP validates TOTP code if 2FA is enabled
func (s *UserService) verifyTOTP(user *models.User, totpCode string) error {
	if !user.TOTPEnabled {
		return nil
	}

	if totpCode == "" || user.TOTPSecret == nil {
		return ErrInvalidTOTP
	}

	secret := *user.TOTPSecret
	if s.encryptionKey != "" {
		decrypted, err := utils.DecryptSecret(secret, s.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to decrypt TOTP secret: %w", err)
		}
		secret = decrypted
	}

	if !totp.Validate(totpCode, secret) {
		return ErrInvalidTOTP
	}

	return nil
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(id string) (*models.User, error) {
	if id == "" {
		return nil, errors.New("user ID is required")
	}

	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// UpdateUser applies an admin or self-service profile update
func (s *UserService) UpdateUser(id string, req *models.UpdateUserRequest) (*models.User, error) {
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			return nil, err
		}
		existing, err := s.repo.GetByEmail(*req.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil && existing.ID != id {
			return nil, errors.New("email already exists")
		}
		user.Email = *req.Email
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// SetRole changes a user's role (owner-only operation)
func (s *UserService) SetRole(id, role string) error {
	if role != models.RoleOwner && role != models.RoleAdmin && role != models.RoleUser {
		return fmt.Errorf("invalid role: %s", role)
	}

	user, err := s.GetUser(id)
	if err != nil {
		return err
	}

	user.Role = role
	if err := s.repo.Update(user); err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}

// SetPlan switches a user's plan, used by the admin panel and payment
// activation. The expiry extends from the current expiry when it is still in
// the future, so renewing early never costs paid days.
func (s *UserService) SetPlan(id, plan string, durationDays int) error {
	user, err := s.GetUser(id)
	if err != nil {
		return err
	}

	var expiresAt *int64
	if durationDays > 0 {
		base := time.Now().Unix()
		if user.PlanExpiresAt != nil && *user.PlanExpiresAt > base && user.Plan == plan {
			base = *user.PlanExpiresAt
		}
		exp := base + int64(durationDays)*24*3600
		expiresAt = &exp
	}

	if err := s.repo.SetPlan(id, plan, expiresAt, models.PlanQuota(plan)); err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}

	logger.Info("Plan updated",
		zap.String("user_id", id),
		zap.String("plan", plan),
		zap.Int("duration_days", durationDays),
	)

	return nil
}

// DeleteUser removes a user account
func (s *UserService) DeleteUser(id string) error {
	if id == "" {
		return errors.New("user ID is required")
	}

	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// ListUsers retrieves users with pagination
func (s *UserService) ListUsers(limit, offset int) ([]*models.User, error) {
	return s.repo.List(limit, offset)
}

// ChangePassword verifies the old password and sets a new one
func (s *UserService) ChangePassword(id, oldPassword, newPassword string) error {
	user, err := s.GetUser(id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrIncorrectOldPassword
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.SetPassword(id, string(hash))
}

// AdminSetPassword force-sets a password without old-password verification
func (s *UserService) AdminSetPassword(id, newPassword string) error {
	if _, err := s.GetUser(id); err != nil {
		return err
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.SetPassword(id, string(hash))
}

// GenerateTOTPSecret creates a new TOTP secret for 2FA setup. The secret is
// stored encrypted (when a key is configured) but 2FA stays disabled until
// EnableTOTP verifies a code.
func (s *UserService) GenerateTOTPSecret(userID string) (string, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "hallowa",
		AccountName: user.Username,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	secret := key.Secret()
	stored := secret
	if s.encryptionKey != "" {
		stored, err = utils.EncryptSecret(secret, s.encryptionKey)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt TOTP secret: %w", err)
		}
	}

	if err := s.repo.SetTOTP(userID, &stored, false); err != nil {
		return "", err
	}

	return secret, nil
}

// EnableTOTP turns on 2FA after verifying a code against the stored secret
func (s *UserService) EnableTOTP(userID, totpCode string) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil {
		return errors.New("no TOTP secret generated")
	}

	secret := *user.TOTPSecret
	if s.encryptionKey != "" {
		secret, err = utils.DecryptSecret(secret, s.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to decrypt TOTP secret: %w", err)
		}
	}

	if !totp.Validate(totpCode, secret) {
		return ErrInvalidTOTP
	}

	return s.repo.SetTOTP(userID, user.TOTPSecret, true)
}

// DisableTOTP turns off 2FA and clears the secret
func (s *UserService) DisableTOTP(userID string) error {
	if _, err := s.GetUser(userID); err != nil {
		return err
	}
	return s.repo.SetTOTP(userID, nil, false)
}

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}
