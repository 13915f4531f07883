package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"
)

// ErrNotClaimable indicates a result was reported for a row that is not in
// the processing state (already resolved, requeued, or never claimed).
var ErrNotClaimable = errors.New("message is not in processing state")

// QueueRepository defines the interface for the outbound message queue and
// the delivery history log.
type QueueRepository interface {
	Enqueue(messages []*models.QueuedMessage) error
	GetByID(id string) (*models.QueuedMessage, error)
	Claim(deviceID string, limit int) ([]*models.QueuedMessage, error)
	Resolve(id, status string, sendErr *string) (*models.QueuedMessage, error)
	RequeueStuck(claimedBefore int64, backoff time.Duration) (int64, error)
	CancelPendingByBroadcast(broadcastID string) (int64, error)
	Stats(userID string) (*models.QueueStats, error)
	AppendHistory(entry *models.MessageHistory) error
	ListHistory(userID, deviceID, broadcastID, direction string, limit, offset int) ([]*models.MessageHistory, error)
	CountHistory() (int64, error)
}

type queueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new QueueRepository
func NewQueueRepository(db *sql.DB) QueueRepository {
	return &queueRepository{db: db}
}

const queueColumns = `id, user_id, device_id, broadcast_id, phone, body, status,
	attempts, max_attempts, last_error, next_attempt_at, claimed_at, sent_at, created_at`

func scanQueued(row interface{ Scan(...interface{}) error }) (*models.QueuedMessage, error) {
	m := &models.QueuedMessage{}
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.DeviceID,
		&m.BroadcastID,
		&m.Phone,
		&m.Body,
		&m.Status,
		&m.Attempts,
		&m.MaxAttempts,
		&m.LastError,
		&m.NextAttemptAt,
		&m.ClaimedAt,
		&m.SentAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Enqueue inserts queue rows in a single transaction: either every
// recipient is queued or none are.
func (r *queueRepository) Enqueue(messages []*models.QueuedMessage) error {
	if len(messages) == 0 {
		return fmt.Errorf("no messages to enqueue")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO message_queue (id, user_id, device_id, broadcast_id, phone, body,
			status, attempts, max_attempts, last_error, next_attempt_at, claimed_at,
			sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare enqueue: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		if m == nil {
			return fmt.Errorf("message cannot be nil")
		}
		_, err := stmt.Exec(
			m.ID, m.UserID, m.DeviceID, m.BroadcastID, m.Phone, m.Body,
			m.Status, m.Attempts, m.MaxAttempts, m.LastError, m.NextAttemptAt,
			m.ClaimedAt, m.SentAt, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to enqueue message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit enqueue: %w", err)
	}

	return nil
}

// GetByID retrieves a queue row by ID
func (r *queueRepository) GetByID(id string) (*models.QueuedMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("message ID cannot be empty")
	}

	m, err := scanQueued(r.db.QueryRow(
		`SELECT `+queueColumns+` FROM message_queue WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queued message: %w", err)
	}

	return m, nil
}

// Claim atomically hands up to limit due pending rows of one device to the
// caller. Each row is won with a conditional UPDATE, so two bridges polling
// the same device never receive the same row. Losing the race shrinks the
// batch.
func (r *queueRepository) Claim(deviceID string, limit int) ([]*models.QueuedMessage, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device ID cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	now := time.Now().Unix()

	rows, err := r.db.Query(`
		SELECT id FROM message_queue
		WHERE device_id = ? AND status = ? AND next_attempt_at <= ?
		ORDER BY created_at
		LIMIT ?
	`, deviceID, models.QueuePending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable rows: %w", err)
	}

	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var claimed []*models.QueuedMessage
	for _, id := range candidates {
		result, err := r.db.Exec(`
			UPDATE message_queue
			SET status = ?, attempts = attempts + 1, claimed_at = ?
			WHERE id = ? AND status = ?
		`, models.QueueProcessing, now, id, models.QueuePending)
		if err != nil {
			return nil, fmt.Errorf("failed to claim message: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check claim: %w", err)
		}
		if affected == 0 {
			continue // lost the race to a concurrent poller
		}

		m, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			claimed = append(claimed, m)
		}
	}

	return claimed, nil
}

// Resolve records the bridge's delivery result for a claimed row. Sent rows
// are terminal; failed rows retry with a linear backoff until attempts run
// out. Reporting on a row that is not processing returns ErrNotClaimable.
func (r *queueRepository) Resolve(id, status string, sendErr *string) (*models.QueuedMessage, error) {
	if id == "" {
		return nil, fmt.Errorf("message ID cannot be empty")
	}
	if status != models.QueueSent && status != models.QueueFailed {
		return nil, fmt.Errorf("invalid result status: %s", status)
	}

	m, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("queued message not found")
	}

	now := time.Now().Unix()

	if status == models.QueueSent {
		result, err := r.db.Exec(`
			UPDATE message_queue
			SET status = ?, sent_at = ?, last_error = NULL
			WHERE id = ? AND status = ?
		`, models.QueueSent, now, id, models.QueueProcessing)
		if err != nil {
			return nil, fmt.Errorf("failed to mark sent: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return nil, ErrNotClaimable
		}
		return r.GetByID(id)
	}

	// Failure: retry until attempts are exhausted, then go terminal.
	// Backoff doubles per attempt (1m, 2m, 4m...).
	newStatus := models.QueuePending
	if m.Attempts >= m.MaxAttempts {
		newStatus = models.QueueFailed
	}
	backoff := int64(60) << uint(m.Attempts-1)

	result, err := r.db.Exec(`
		UPDATE message_queue
		SET status = ?, last_error = ?, next_attempt_at = ?, claimed_at = NULL
		WHERE id = ? AND status = ?
	`, newStatus, sendErr, now+backoff, id, models.QueueProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to mark failed: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrNotClaimable
	}

	return r.GetByID(id)
}

// RequeueStuck returns rows claimed before the visibility cutoff to pending
// (bridge died mid-batch); rows out of attempts go to failed instead.
func (r *queueRepository) RequeueStuck(claimedBefore int64, backoff time.Duration) (int64, error) {
	now := time.Now().Unix()

	result, err := r.db.Exec(`
		UPDATE message_queue
		SET status = CASE WHEN attempts >= max_attempts THEN ? ELSE ? END,
			last_error = COALESCE(last_error, 'claim timed out'),
			next_attempt_at = ?,
			claimed_at = NULL
		WHERE status = ? AND claimed_at IS NOT NULL AND claimed_at < ?
	`, models.QueueFailed, models.QueuePending,
		now+int64(backoff.Seconds()), models.QueueProcessing, claimedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stuck messages: %w", err)
	}

	return result.RowsAffected()
}

// CancelPendingByBroadcast drops still-pending rows of a cancelled broadcast.
// Rows already claimed or resolved are left alone.
func (r *queueRepository) CancelPendingByBroadcast(broadcastID string) (int64, error) {
	if broadcastID == "" {
		return 0, fmt.Errorf("broadcast ID cannot be empty")
	}

	result, err := r.db.Exec(
		"DELETE FROM message_queue WHERE broadcast_id = ? AND status = ?",
		broadcastID, models.QueuePending)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending messages: %w", err)
	}

	return result.RowsAffected()
}

// Stats summarizes one tenant's queue by status
func (r *queueRepository) Stats(userID string) (*models.QueueStats, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	rows, err := r.db.Query(
		"SELECT status, COUNT(*) FROM message_queue WHERE user_id = ? GROUP BY status",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue stats: %w", err)
	}
	defer rows.Close()

	stats := &models.QueueStats{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		switch status {
		case models.QueuePending:
			stats.Pending = count
		case models.QueueProcessing:
			stats.Processing = count
		case models.QueueSent:
			stats.Sent = count
		case models.QueueFailed:
			stats.Failed = count
		}
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

// AppendHistory writes one delivery log entry
func (r *queueRepository) AppendHistory(entry *models.MessageHistory) error {
	if entry == nil {
		return fmt.Errorf("history entry cannot be nil")
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}

	_, err := r.db.Exec(`
		INSERT INTO message_history (user_id, device_id, broadcast_id, phone, body,
			direction, status, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.UserID, entry.DeviceID, entry.BroadcastID, entry.Phone, entry.Body,
		entry.Direction, entry.Status, entry.Error, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// ListHistory retrieves a tenant's delivery log with optional filters
func (r *queueRepository) ListHistory(userID, deviceID, broadcastID, direction string, limit, offset int) ([]*models.MessageHistory, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, user_id, device_id, broadcast_id, phone, body, direction,
		status, error, timestamp FROM message_history WHERE user_id = ?`
	args := []interface{}{userID}

	if deviceID != "" {
		query += " AND device_id = ?"
		args = append(args, deviceID)
	}
	if broadcastID != "" {
		query += " AND broadcast_id = ?"
		args = append(args, broadcastID)
	}
	if direction != "" {
		query += " AND direction = ?"
		args = append(args, direction)
	}

	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.MessageHistory
	for rows.Next() {
		e := &models.MessageHistory{}
		err := rows.Scan(&e.ID, &e.UserID, &e.DeviceID, &e.BroadcastID, &e.Phone,
			&e.Body, &e.Direction, &e.Status, &e.Error, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// CountHistory returns the total number of logged messages on the platform
func (r *queueRepository) CountHistory() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM message_history").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}
