package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Broadcast lifecycle states
const (
	BroadcastDraft      = "draft"
	BroadcastScheduled  = "scheduled"
	BroadcastProcessing = "processing"
	BroadcastSent       = "sent"
	BroadcastPartial    = "partial" // finished with some failures
	BroadcastFailed     = "failed"  // finished with zero deliveries
	BroadcastCancelled  = "cancelled"
)

// Broadcast represents a bulk send job. The actual sends live in the message
// queue; this row tracks targeting, scheduling, and rolled-up progress
// counters. Targeting is stored on the row so scheduled broadcasts resolve
// their recipients at dispatch time, not at creation time.
type Broadcast struct {
	ID           string  `json:"id"`      // UUID
	UserID       string  `json:"user_id"` // Owning tenant
	DeviceID     string  `json:"device_id" binding:"required"`
	TemplateID   *string `json:"template_id,omitempty"`
	Name         string  `json:"name" binding:"required,min=1,max=100"`
	Message      string  `json:"message"`       // Rendered or raw body with placeholders
	TargetPhones string  `json:"target_phones"` // JSON array of explicit phone numbers
	TargetTag    string  `json:"target_tag"`    // Contact tag; used when TargetPhones is empty
	Recipients   int     `json:"recipients"`
	SentCount    int     `json:"sent_count"`
	FailedCount  int     `json:"failed_count"`
	Status       string  `json:"status"`
	ScheduledAt  *int64  `json:"scheduled_at,omitempty"` // Unix timestamp for scheduled sends
	StartedAt    *int64  `json:"started_at,omitempty"`
	FinishedAt   *int64  `json:"finished_at,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

// CreateBroadcastRequest represents the request body for creating a broadcast.
// Recipients are either explicit phone numbers or every contact holding Tag.
type CreateBroadcastRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=100"`
	DeviceID    string   `json:"device_id" binding:"required"`
	TemplateID  *string  `json:"template_id,omitempty"`
	Message     string   `json:"message"`
	Phones      []string `json:"phones,omitempty"`
	Tag         string   `json:"tag,omitempty"`
	ScheduledAt *int64   `json:"scheduled_at,omitempty"`
}

// QuickSendRequest is the ad-hoc send form: a message and explicit phone
// numbers or a contact tag, dispatched immediately.
type QuickSendRequest struct {
	DeviceID string   `json:"device_id" binding:"required"`
	Message  string   `json:"message" binding:"required"`
	Phones   []string `json:"phones,omitempty"`
	Tag      string   `json:"tag,omitempty"`
}

// NewBroadcast creates a draft Broadcast with generated UUID and timestamps.
func NewBroadcast(userID, deviceID, name, message string) *Broadcast {
	now := time.Now().Unix()
	return &Broadcast{
		ID:        uuid.New().String(),
		UserID:    userID,
		DeviceID:  deviceID,
		Name:      name,
		Message:   message,
		Status:    BroadcastDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PhoneList decodes the stored target phones JSON. A malformed or empty
// value yields nil.
func (b *Broadcast) PhoneList() []string {
	if b.TargetPhones == "" {
		return nil
	}
	var phones []string
	if err := json.Unmarshal([]byte(b.TargetPhones), &phones); err != nil {
		return nil
	}
	return phones
}

// EncodePhones serializes an explicit phone list for storage.
func EncodePhones(phones []string) string {
	if len(phones) == 0 {
		return ""
	}
	data, err := json.Marshal(phones)
	if err != nil {
		return ""
	}
	return string(data)
}

// IsTerminal reports whether the broadcast has finished one way or another.
func (b *Broadcast) IsTerminal() bool {
	switch b.Status {
	case BroadcastSent, BroadcastPartial, BroadcastFailed, BroadcastCancelled:
		return true
	}
	return false
}

// Cancellable reports whether the broadcast may still be cancelled.
func (b *Broadcast) Cancellable() bool {
	return b.Status == BroadcastDraft || b.Status == BroadcastScheduled
}

// FinalStatus derives the terminal state from the delivery counters once
// every queue row has resolved.
func (b *Broadcast) FinalStatus() string {
	switch {
	case b.FailedCount == 0:
		return BroadcastSent
	case b.SentCount == 0:
		return BroadcastFailed
	default:
		return BroadcastPartial
	}
}
