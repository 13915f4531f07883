package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Add-on codes sold in the catalog
const (
	AddonAIChatbot   = "ai_chatbot"
	AddonExtraDevice = "extra_device"
)

// Addon is a purchasable feature flag in the platform catalog.
type Addon struct {
	ID           string          `json:"id"`   // UUID
	Code         string          `json:"code"` // Unique machine name
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"` // 0 = never expires
	Active       bool            `json:"active"`
	CreatedAt    int64           `json:"created_at"`
}

// UserAddon grants an add-on to a user until ExpiresAt (nil = forever).
type UserAddon struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	AddonID   string `json:"addon_id"`
	Code      string `json:"code"` // Denormalized for cheap feature checks
	ExpiresAt *int64 `json:"expires_at,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// NewAddon creates a catalog entry.
func NewAddon(code, name string, price decimal.Decimal, durationDays int) *Addon {
	return &Addon{
		ID:           uuid.New().String(),
		Code:         code,
		Name:         name,
		Price:        price,
		DurationDays: durationDays,
		Active:       true,
		CreatedAt:    time.Now().Unix(),
	}
}

// NewUserAddon grants addon to userID, expiring after the addon's duration.
func NewUserAddon(userID string, addon *Addon) *UserAddon {
	now := time.Now().Unix()
	ua := &UserAddon{
		ID:        uuid.New().String(),
		UserID:    userID,
		AddonID:   addon.ID,
		Code:      addon.Code,
		CreatedAt: now,
	}
	if addon.DurationDays > 0 {
		exp := now + int64(addon.DurationDays)*24*3600
		ua.ExpiresAt = &exp
	}
	return ua
}

// IsActive reports whether the grant is still in effect.
func (ua *UserAddon) IsActive() bool {
	if ua.ExpiresAt == nil {
		return true
	}
	return *ua.ExpiresAt > time.Now().Unix()
}
