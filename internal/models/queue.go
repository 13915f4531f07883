package models

import (
	"time"

	"github.com/google/uuid"
)

// Queue row states. The bridge claims pending rows, sends them, and reports
// sent or failed. Failed rows retry until MaxAttempts.
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueueSent       = "sent"
	QueueFailed     = "failed"
)

// Message directions recorded in history
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// DefaultMaxAttempts is how many delivery attempts a queue row gets.
const DefaultMaxAttempts = 3

// QueuedMessage is one outbound send owned by a device. Rows are claimed
// atomically by the bridge so overlapping pollers never double-send.
type QueuedMessage struct {
	ID            string  `json:"id"` // UUID
	UserID        string  `json:"user_id"`
	DeviceID      string  `json:"device_id"`
	BroadcastID   *string `json:"broadcast_id,omitempty"`
	Phone         string  `json:"phone"`
	Body          string  `json:"body"`
	Status        string  `json:"status"`
	Attempts      int     `json:"attempts"`
	MaxAttempts   int     `json:"max_attempts"`
	LastError     *string `json:"last_error,omitempty"`
	NextAttemptAt int64   `json:"next_attempt_at"` // Not claimable before this
	ClaimedAt     *int64  `json:"claimed_at,omitempty"`
	SentAt        *int64  `json:"sent_at,omitempty"`
	CreatedAt     int64   `json:"created_at"`
}

// MessageHistory is the append-only delivery log, one row per terminal
// outcome plus every inbound message.
type MessageHistory struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	DeviceID    string  `json:"device_id"`
	BroadcastID *string `json:"broadcast_id,omitempty"`
	Phone       string  `json:"phone"`
	Body        string  `json:"body"`
	Direction   string  `json:"direction"`
	Status      string  `json:"status"`
	Error       *string `json:"error,omitempty"`
	Timestamp   int64   `json:"timestamp"`
}

// QueueStats summarizes a tenant's queue for the dashboard.
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
}

// NewQueuedMessage creates a pending queue row, claimable immediately.
func NewQueuedMessage(userID, deviceID, phone, body string) *QueuedMessage {
	now := time.Now().Unix()
	return &QueuedMessage{
		ID:            uuid.New().String(),
		UserID:        userID,
		DeviceID:      deviceID,
		Phone:         phone,
		Body:          body,
		Status:        QueuePending,
		MaxAttempts:   DefaultMaxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// Exhausted reports whether the row has used up its delivery attempts.
func (m *QueuedMessage) Exhausted() bool {
	return m.Attempts >= m.MaxAttempts
}
