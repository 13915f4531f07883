package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Device connection states reported by the WhatsApp session bridge
const (
	DeviceDisconnected = "disconnected"
	DeviceConnecting   = "connecting"
	DeviceConnected    = "connected"
	DeviceBanned       = "banned"
)

// Device represents a WhatsApp session registered by a tenant. The bridge
// owns the actual session; this row tracks its connection status and carries
// the per-device API key the bridge authenticates queue calls with.
type Device struct {
	ID         string  `json:"id"`                                   // UUID
	UserID     string  `json:"user_id"`                              // Owning tenant
	Name       string  `json:"name" binding:"required,min=1,max=64"` // Display name
	Phone      string  `json:"phone,omitempty"`                      // Number once paired
	JID        string  `json:"jid,omitempty"`                        // WhatsApp JID once paired
	Status     string  `json:"status"`                               // disconnected/connecting/connected/banned
	APIKey     string  `json:"-"`                                    // EXCLUDED from JSON - bridge credential
	WebhookURL *string `json:"webhook_url,omitempty"`                // Optional tenant webhook for inbound messages
	LastSeenAt *int64  `json:"last_seen_at,omitempty"`               // Unix timestamp of last bridge report
	CreatedAt  int64   `json:"created_at"`
	UpdatedAt  int64   `json:"updated_at"`
}

// CreateDeviceRequest represents the request body for registering a device
type CreateDeviceRequest struct {
	Name       string  `json:"name" binding:"required,min=1,max=64"`
	WebhookURL *string `json:"webhook_url,omitempty"`
}

// UpdateDeviceRequest represents the request body for updating a device.
// An empty webhook_url clears the stored webhook.
type UpdateDeviceRequest struct {
	Name       *string `json:"name,omitempty" binding:"omitempty,min=1,max=64"`
	WebhookURL *string `json:"webhook_url,omitempty"`
}

// DeviceStatusReport is what the bridge posts on connection events
type DeviceStatusReport struct {
	Status string `json:"status" binding:"required"`
	Phone  string `json:"phone,omitempty"`
	JID    string `json:"jid,omitempty"`
}

// NewDevice creates a disconnected Device with a fresh API key.
func NewDevice(userID, name string) *Device {
	now := time.Now().Unix()
	return &Device{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Status:    DeviceDisconnected,
		APIKey:    newAPIKey(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsConnected reports whether the bridge currently holds a live session.
func (d *Device) IsConnected() bool {
	return d.Status == DeviceConnected
}

// ValidDeviceStatus reports whether s is a known connection state.
func ValidDeviceStatus(s string) bool {
	switch s {
	case DeviceDisconnected, DeviceConnecting, DeviceConnected, DeviceBanned:
		return true
	}
	return false
}

func newAPIKey() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		// Fall back to a UUID; only reachable if the OS RNG is broken
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}
