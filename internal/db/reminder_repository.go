package db

import (
	"database/sql"
	"fmt"

	"github.com/zesbe/hallowa-sub001/internal/models"
)

// ReminderRepository defines the interface for the reminder dispatch log
type ReminderRepository interface {
	Record(log *models.ReminderLog) (bool, error)
	ListByUser(userID string) ([]*models.ReminderLog, error)
}

type reminderRepository struct {
	db *sql.DB
}

// NewReminderRepository creates a new ReminderRepository
func NewReminderRepository(db *sql.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

// Record inserts a dispatch log entry. The (user, kind, days_left) unique
// index makes repeated scheduler runs idempotent: a duplicate insert is
// reported as false rather than an error, and the caller skips the send.
func (r *reminderRepository) Record(log *models.ReminderLog) (bool, error) {
	if log == nil {
		return false, fmt.Errorf("reminder log cannot be nil")
	}

	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO reminder_logs (id, user_id, kind, days_left, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`, log.ID, log.UserID, log.Kind, log.DaysLeft, log.SentAt)
	if err != nil {
		return false, fmt.Errorf("failed to record reminder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check reminder insert: %w", err)
	}

	return rows == 1, nil
}

// ListByUser retrieves a user's reminder history
func (r *reminderRepository) ListByUser(userID string) ([]*models.ReminderLog, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	rows, err := r.db.Query(`
		SELECT id, user_id, kind, days_left, sent_at
		FROM reminder_logs WHERE user_id = ? ORDER BY sent_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var logs []*models.ReminderLog
	for rows.Next() {
		log := &models.ReminderLog{}
		if err := rows.Scan(&log.ID, &log.UserID, &log.Kind, &log.DaysLeft, &log.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}
