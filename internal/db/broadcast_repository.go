package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"
)

// BroadcastRepository defines the interface for broadcast data access
type BroadcastRepository interface {
	Create(broadcast *models.Broadcast) error
	GetByID(id string) (*models.Broadcast, error)
	ListByUser(userID string, limit, offset int) ([]*models.Broadcast, error)
	ListDue(now int64) ([]*models.Broadcast, error)
	ClaimForProcessing(id string, fromStatus string) (bool, error)
	SetRecipients(id string, recipients int) error
	MarkFailed(id string) error
	Cancel(id string) (bool, error)
	RecordResult(id string, sent bool) error
	Count() (int64, error)
}

type broadcastRepository struct {
	db *sql.DB
}

// NewBroadcastRepository creates a new BroadcastRepository
func NewBroadcastRepository(db *sql.DB) BroadcastRepository {
	return &broadcastRepository{db: db}
}

const broadcastColumns = `id, user_id, device_id, template_id, name, message,
	target_phones, target_tag, recipients, sent_count, failed_count, status,
	scheduled_at, started_at, finished_at, created_at, updated_at`

func scanBroadcast(row interface{ Scan(...interface{}) error }) (*models.Broadcast, error) {
	b := &models.Broadcast{}
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.DeviceID,
		&b.TemplateID,
		&b.Name,
		&b.Message,
		&b.TargetPhones,
		&b.TargetTag,
		&b.Recipients,
		&b.SentCount,
		&b.FailedCount,
		&b.Status,
		&b.ScheduledAt,
		&b.StartedAt,
		&b.FinishedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Create inserts a new broadcast
func (r *broadcastRepository) Create(broadcast *models.Broadcast) error {
	if broadcast == nil {
		return fmt.Errorf("broadcast cannot be nil")
	}

	query := `
		INSERT INTO broadcasts (id, user_id, device_id, template_id, name, message,
			target_phones, target_tag, recipients, sent_count, failed_count, status,
			scheduled_at, started_at, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		broadcast.ID,
		broadcast.UserID,
		broadcast.DeviceID,
		broadcast.TemplateID,
		broadcast.Name,
		broadcast.Message,
		broadcast.TargetPhones,
		broadcast.TargetTag,
		broadcast.Recipients,
		broadcast.SentCount,
		broadcast.FailedCount,
		broadcast.Status,
		broadcast.ScheduledAt,
		broadcast.StartedAt,
		broadcast.FinishedAt,
		broadcast.CreatedAt,
		broadcast.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create broadcast: %w", err)
	}

	return nil
}

// GetByID retrieves a broadcast by ID
func (r *broadcastRepository) GetByID(id string) (*models.Broadcast, error) {
	if id == "" {
		return nil, fmt.Errorf("broadcast ID cannot be empty")
	}

	b, err := scanBroadcast(r.db.QueryRow(
		`SELECT `+broadcastColumns+` FROM broadcasts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast: %w", err)
	}

	return b, nil
}

// ListByUser retrieves a user's broadcasts, newest first
func (r *broadcastRepository) ListByUser(userID string, limit, offset int) ([]*models.Broadcast, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		`SELECT `+broadcastColumns+` FROM broadcasts WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcasts: %w", err)
	}
	defer rows.Close()

	var broadcasts []*models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		broadcasts = append(broadcasts, b)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return broadcasts, nil
}

// ListDue returns scheduled broadcasts whose time has come
func (r *broadcastRepository) ListDue(now int64) ([]*models.Broadcast, error) {
	rows, err := r.db.Query(
		`SELECT `+broadcastColumns+` FROM broadcasts
		WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?`,
		models.BroadcastScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due broadcasts: %w", err)
	}
	defer rows.Close()

	var broadcasts []*models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		broadcasts = append(broadcasts, b)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return broadcasts, nil
}

// ClaimForProcessing moves a broadcast from fromStatus to processing. The
// conditional UPDATE means exactly one caller wins even when scheduler ticks
// overlap; losers get false and skip the row.
func (r *broadcastRepository) ClaimForProcessing(id string, fromStatus string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("broadcast ID cannot be empty")
	}

	now := time.Now().Unix()
	result, err := r.db.Exec(`
		UPDATE broadcasts
		SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.BroadcastProcessing, now, now, id, fromStatus)
	if err != nil {
		return false, fmt.Errorf("failed to claim broadcast: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check claim result: %w", err)
	}

	return rows == 1, nil
}

// SetRecipients records the number of queue rows created for the broadcast
func (r *broadcastRepository) SetRecipients(id string, recipients int) error {
	if id == "" {
		return fmt.Errorf("broadcast ID cannot be empty")
	}

	_, err := r.db.Exec(
		"UPDATE broadcasts SET recipients = ?, updated_at = ? WHERE id = ?",
		recipients, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set recipients: %w", err)
	}
	return nil
}

// MarkFailed finishes a processing broadcast as failed. Used when fan-out
// errors out after the claim, so a rejected send never lingers in processing.
func (r *broadcastRepository) MarkFailed(id string) error {
	if id == "" {
		return fmt.Errorf("broadcast ID cannot be empty")
	}

	now := time.Now().Unix()
	_, err := r.db.Exec(`
		UPDATE broadcasts
		SET status = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.BroadcastFailed, now, now, id, models.BroadcastProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark broadcast failed: %w", err)
	}

	return nil
}

// Cancel marks a draft or scheduled broadcast cancelled. Returns false when
// the broadcast had already started.
func (r *broadcastRepository) Cancel(id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("broadcast ID cannot be empty")
	}

	now := time.Now().Unix()
	result, err := r.db.Exec(`
		UPDATE broadcasts
		SET status = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, models.BroadcastCancelled, now, now, id,
		models.BroadcastDraft, models.BroadcastScheduled)
	if err != nil {
		return false, fmt.Errorf("failed to cancel broadcast: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check cancel result: %w", err)
	}

	return rows == 1, nil
}

// RecordResult rolls a terminal queue outcome into the broadcast counters
// and finishes the broadcast when every recipient has resolved.
func (r *broadcastRepository) RecordResult(id string, sent bool) error {
	if id == "" {
		return fmt.Errorf("broadcast ID cannot be empty")
	}

	now := time.Now().Unix()
	column := "failed_count"
	if sent {
		column = "sent_count"
	}

	_, err := r.db.Exec(
		"UPDATE broadcasts SET "+column+" = "+column+" + 1, updated_at = ? WHERE id = ?",
		now, id)
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}

	// Finish once all recipients are terminal. Derives sent/partial/failed
	// from the counters in one statement so concurrent result reports agree.
	_, err = r.db.Exec(`
		UPDATE broadcasts
		SET status = CASE
				WHEN failed_count = 0 THEN 'sent'
				WHEN sent_count = 0 THEN 'failed'
				ELSE 'partial'
			END,
			finished_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND sent_count + failed_count >= recipients
	`, now, now, id, models.BroadcastProcessing)
	if err != nil {
		return fmt.Errorf("failed to finish broadcast: %w", err)
	}

	return nil
}

// Count returns the total number of broadcasts on the platform
func (r *broadcastRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM broadcasts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count broadcasts: %w", err)
	}
	return count, nil
}
