package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Rule match types, checked in this order of specificity
const (
	MatchExact    = "exact"
	MatchPrefix   = "prefix"
	MatchContains = "contains"
)

// ChatbotRule maps an inbound keyword to a canned reply for one tenant.
// Rules only fire while the tenant's ai_chatbot add-on is active.
type ChatbotRule struct {
	ID        string  `json:"id"`      // UUID
	UserID    string  `json:"user_id"` // Owning tenant
	DeviceID  *string `json:"device_id,omitempty"` // nil = all devices
	Keyword   string  `json:"keyword" binding:"required,min=1,max=100"`
	MatchType string  `json:"match_type"`
	Reply     string  `json:"reply" binding:"required"`
	Priority  int     `json:"priority"` // Lower fires first
	Active    bool    `json:"active"`
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
}

// CreateChatbotRuleRequest represents the request body for creating a rule
type CreateChatbotRuleRequest struct {
	DeviceID  *string `json:"device_id,omitempty"`
	Keyword   string  `json:"keyword" binding:"required,min=1,max=100"`
	MatchType string  `json:"match_type,omitempty"`
	Reply     string  `json:"reply" binding:"required"`
	Priority  int     `json:"priority,omitempty"`
}

// NewChatbotRule creates an active rule with generated UUID and timestamps.
func NewChatbotRule(userID, keyword, matchType, reply string) *ChatbotRule {
	now := time.Now().Unix()
	if matchType == "" {
		matchType = MatchContains
	}
	return &ChatbotRule{
		ID:        uuid.New().String(),
		UserID:    userID,
		Keyword:   keyword,
		MatchType: matchType,
		Reply:     reply,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Matches reports whether the rule fires for an inbound message body.
// Matching is case-insensitive.
func (r *ChatbotRule) Matches(body string) bool {
	if !r.Active {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(body))
	keyword := strings.ToLower(r.Keyword)
	switch r.MatchType {
	case MatchExact:
		return text == keyword
	case MatchPrefix:
		return strings.HasPrefix(text, keyword)
	default:
		return strings.Contains(text, keyword)
	}
}

// ValidMatchType reports whether s is a known match type.
func ValidMatchType(s string) bool {
	switch s {
	case MatchExact, MatchPrefix, MatchContains:
		return true
	}
	return false
}
