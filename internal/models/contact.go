package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Contact represents an address-book entry owned by a tenant. Phone numbers
// are stored normalized (bare international digits) and are unique per user.
type Contact struct {
	ID        string `json:"id"`                       // UUID
	UserID    string `json:"user_id"`                  // Owning tenant
	Phone     string `json:"phone" binding:"required"` // Normalized digits
	Name      string `json:"name"`
	Tags      string `json:"tags,omitempty"`  // JSON array string, e.g. ["customer","vip"]
	GroupName string `json:"group,omitempty"` // Free-form grouping label
	Notes     string `json:"notes,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// CreateContactRequest represents the request body for creating a contact
type CreateContactRequest struct {
	Phone     string   `json:"phone" binding:"required"`
	Name      string   `json:"name"`
	Tags      []string `json:"tags,omitempty"`
	GroupName string   `json:"group,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// ImportResult reports the outcome of a bulk contact import. Invalid rows
// are collected, valid rows are inserted, and the import continues past
// failures.
type ImportResult struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors,omitempty"`
}

// ImportError identifies a rejected row by its position in the upload
type ImportError struct {
	Index  int    `json:"index"`
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

// NewContact creates a Contact with generated UUID and timestamps. The
// phone must already be normalized.
func NewContact(userID, phone, name string) *Contact {
	now := time.Now().Unix()
	return &Contact{
		ID:        uuid.New().String(),
		UserID:    userID,
		Phone:     phone,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TagList decodes the stored tags JSON. A malformed or empty value yields nil.
func (c *Contact) TagList() []string {
	if c.Tags == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(c.Tags), &tags); err != nil {
		return nil
	}
	return tags
}

// HasTag reports whether the contact carries the given tag.
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.TagList() {
		if t == tag {
			return true
		}
	}
	return false
}

// EncodeTags serializes a tag list for storage.
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return ""
	}
	return string(data)
}
