package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id string) error
	List(limit, offset int) ([]*models.User, error)
	Count() (int64, error)
	IncrementFailedLogin(id string, lockedUntil *int64) error
	ResetFailedLogin(id string) error
	UpdateLastLogin(id string) error
	SetPassword(id, passwordHash string) error
	SetTOTP(id string, secret *string, enabled bool) error
	SetPlan(id, plan string, expiresAt *int64, quota int64) error
	ConsumeQuota(id string, n int64) (bool, error)
	ListExpiringBetween(from, to int64) ([]*models.User, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, plan, plan_expires_at,
	message_quota, messages_used, totp_secret, totp_enabled, active,
	failed_login_attempts, locked_until, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Plan,
		&user.PlanExpiresAt,
		&user.MessageQuota,
		&user.MessagesUsed,
		&user.TOTPSecret,
		&user.TOTPEnabled,
		&user.Active,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().Unix()
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, username, email, password_hash, role, plan, plan_expires_at,
			message_quota, messages_used, totp_secret, totp_enabled, active,
			failed_login_attempts, locked_until, last_login, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Plan,
		user.PlanExpiresAt,
		user.MessageQuota,
		user.MessagesUsed,
		user.TOTPSecret,
		user.TOTPEnabled,
		user.Active,
		user.FailedLoginAttempts,
		user.LockedUntil,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(id string) (*models.User, error) {
	if id == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	user, err := scanUser(r.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// GetByUsername retrieves a user by username
func (r *userRepository) GetByUsername(username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	user, err := scanUser(r.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}

	user, err := scanUser(r.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// Update updates mutable account fields
func (r *userRepository) Update(user *models.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if user.ID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	user.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE users
		SET email = ?, role = ?, active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, user.Email, user.Role, user.Active, user.UpdatedAt, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// Delete removes a user
func (r *userRepository) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	result, err := r.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// List retrieves users with pagination
func (r *userRepository) List(limit, offset int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

// Count returns the total number of user accounts
func (r *userRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// IncrementFailedLogin bumps the failure counter and optionally locks the account
func (r *userRepository) IncrementFailedLogin(id string, lockedUntil *int64) error {
	if id == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	_, err := r.db.Exec(`
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
			locked_until = COALESCE(?, locked_until),
			updated_at = ?
		WHERE id = ?
	`, lockedUntil, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to increment failed login: %w", err)
	}
	return nil
}

// ResetFailedLogin clears the failure counter and any lock
func (r *userRepository) ResetFailedLogin(id string) error {
	if id == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	_, err := r.db.Exec(`
		UPDATE users
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = ?
		WHERE id = ?
	`, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to reset failed login: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the last successful login time
func (r *userRepository) UpdateLastLogin(id string) error {
	if id == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	now := time.Now().Unix()
	_, err := r.db.Exec(
		"UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?", now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// SetPassword replaces the stored password hash
func (r *userRepository) SetPassword(id, passwordHash string) error {
	if id == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	result, err := r.db.Exec(
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check password update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// SetTOTP stores the (encrypted) TOTP secret and toggles 2FA
func (r *userRepository) SetTOTP(id string, secret *string, enabled bool) error {
	if id == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	_, err := r.db.Exec(
		"UPDATE users SET totp_secret = ?, totp_enabled = ?, updated_at = ? WHERE id = ?",
		secret, enabled, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set TOTP: %w", err)
	}
	return nil
}

// SetPlan switches the user's plan, expiry, and per-period quota, resetting usage
func (r *userRepository) SetPlan(id, plan string, expiresAt *int64, quota int64) error {
	if id == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	result, err := r.db.Exec(`
		UPDATE users
		SET plan = ?, plan_expires_at = ?, message_quota = ?, messages_used = 0, updated_at = ?
		WHERE id = ?
	`, plan, expiresAt, quota, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check plan update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

// ConsumeQuota reserves n messages from the user's quota. The conditional
// UPDATE makes the check-and-consume atomic: it reports false without side
// effects when the remaining quota is insufficient.
func (r *userRepository) ConsumeQuota(id string, n int64) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("user ID cannot be empty")
	}
	if n <= 0 {
		return false, fmt.Errorf("quota amount must be positive")
	}

	result, err := r.db.Exec(`
		UPDATE users
		SET messages_used = messages_used + ?, updated_at = ?
		WHERE id = ? AND messages_used + ? <= message_quota
	`, n, time.Now().Unix(), id, n)
	if err != nil {
		return false, fmt.Errorf("failed to consume quota: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check quota update: %w", err)
	}

	return rows == 1, nil
}

// ListExpiringBetween returns active users whose plan expires inside [from, to)
func (r *userRepository) ListExpiringBetween(from, to int64) ([]*models.User, error) {
	rows, err := r.db.Query(
		`SELECT `+userColumns+` FROM users
		WHERE active = 1 AND plan_expires_at IS NOT NULL
			AND plan_expires_at >= ? AND plan_expires_at < ?`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
