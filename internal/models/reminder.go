package models

import (
	"time"

	"github.com/google/uuid"
)

// Reminder kinds dispatched by the scheduler
const (
	ReminderPlanExpiry = "plan_expiry"
)

// ReminderLog records one dispatched reminder. The (user, kind, days-left)
// triple is unique so hourly scheduler runs never re-send the same reminder.
type ReminderLog struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Kind     string `json:"kind"`
	DaysLeft int    `json:"days_left"`
	SentAt   int64  `json:"sent_at"`
}

// NewReminderLog records a dispatch at the current time.
func NewReminderLog(userID, kind string, daysLeft int) *ReminderLog {
	return &ReminderLog{
		ID:       uuid.New().String(),
		UserID:   userID,
		Kind:     kind,
		DaysLeft: daysLeft,
		SentAt:   time.Now().Unix(),
	}
}
