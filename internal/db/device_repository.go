package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"
)

// DeviceRepository defines the interface for device data access
type DeviceRepository interface {
	Create(device *models.Device) error
	GetByID(id string) (*models.Device, error)
	GetByAPIKey(apiKey string) (*models.Device, error)
	ListByUser(userID string) ([]*models.Device, error)
	CountByUser(userID string) (int, error)
	Count() (int64, error)
	UpdateStatus(id, status, phone, jid string) error
	Rename(id, name string) error
	SetWebhook(id string, webhookURL *string) error
	Delete(id string) error
	ResetStuckConnecting(before int64) (int64, error)
}

type deviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *sql.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

const deviceColumns = `id, user_id, name, phone, jid, status, api_key,
	webhook_url, last_seen_at, created_at, updated_at`

func scanDevice(row interface{ Scan(...interface{}) error }) (*models.Device, error) {
	device := &models.Device{}
	err := row.Scan(
		&device.ID,
		&device.UserID,
		&device.Name,
		&device.Phone,
		&device.JID,
		&device.Status,
		&device.APIKey,
		&device.WebhookURL,
		&device.LastSeenAt,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return device, nil
}

// Create registers a new device
func (r *deviceRepository) Create(device *models.Device) error {
	if device == nil {
		return fmt.Errorf("device cannot be nil")
	}

	query := `
		INSERT INTO devices (id, user_id, name, phone, jid, status, api_key,
			webhook_url, last_seen_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		device.ID,
		device.UserID,
		device.Name,
		device.Phone,
		device.JID,
		device.Status,
		device.APIKey,
		device.WebhookURL,
		device.LastSeenAt,
		device.CreatedAt,
		device.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	return nil
}

// GetByID retrieves a device by ID
func (r *deviceRepository) GetByID(id string) (*models.Device, error) {
	if id == "" {
		return nil, fmt.Errorf("device ID cannot be empty")
	}

	device, err := scanDevice(r.db.QueryRow(
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// GetByAPIKey retrieves a device by its bridge credential
func (r *deviceRepository) GetByAPIKey(apiKey string) (*models.Device, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	device, err := scanDevice(r.db.QueryRow(
		`SELECT `+deviceColumns+` FROM devices WHERE api_key = ?`, apiKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device by API key: %w", err)
	}

	return device, nil
}

// ListByUser retrieves all devices owned by a user
func (r *deviceRepository) ListByUser(userID string) ([]*models.Device, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	rows, err := r.db.Query(
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return devices, nil
}

// CountByUser returns how many devices a user has registered
func (r *deviceRepository) CountByUser(userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user ID cannot be empty")
	}

	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM devices WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// Count returns the total number of devices on the platform
func (r *deviceRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM devices").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// UpdateStatus applies a connection event from the bridge. Empty phone/jid
// leave the stored values untouched.
func (r *deviceRepository) UpdateStatus(id, status, phone, jid string) error {
	if id == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if !models.ValidDeviceStatus(status) {
		return fmt.Errorf("invalid device status: %s", status)
	}

	now := time.Now().Unix()
	result, err := r.db.Exec(`
		UPDATE devices
		SET status = ?,
			phone = CASE WHEN ? != '' THEN ? ELSE phone END,
			jid = CASE WHEN ? != '' THEN ? ELSE jid END,
			last_seen_at = ?, updated_at = ?
		WHERE id = ?
	`, status, phone, phone, jid, jid, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to update device status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("device not found")
	}

	return nil
}

// Rename updates the display name
func (r *deviceRepository) Rename(id, name string) error {
	if id == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if name == "" {
		return fmt.Errorf("device name cannot be empty")
	}

	result, err := r.db.Exec(
		"UPDATE devices SET name = ?, updated_at = ? WHERE id = ?",
		name, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to rename device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rename result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("device not found")
	}

	return nil
}

// SetWebhook updates the tenant webhook URL
func (r *deviceRepository) SetWebhook(id string, webhookURL *string) error {
	if id == "" {
		return fmt.Errorf("device ID cannot be empty")
	}

	_, err := r.db.Exec(
		"UPDATE devices SET webhook_url = ?, updated_at = ? WHERE id = ?",
		webhookURL, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// Delete removes a device
func (r *deviceRepository) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("device ID cannot be empty")
	}

	result, err := r.db.Exec("DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("device not found")
	}

	return nil
}

// ResetStuckConnecting flips devices stuck in "connecting" since before the
// given time back to "disconnected". Returns how many were reset.
func (r *deviceRepository) ResetStuckConnecting(before int64) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE devices
		SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?
	`, models.DeviceDisconnected, time.Now().Unix(), models.DeviceConnecting, before)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck devices: %w", err)
	}

	return result.RowsAffected()
}
