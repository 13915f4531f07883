package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Template lifecycle states. Archived templates stay listed but can no
// longer back new broadcasts.
const (
	TemplateActive   = "active"
	TemplateArchived = "archived"
)

// Template represents a reusable message body with {{placeholder}} variables.
type Template struct {
	ID        string `json:"id"`                                    // UUID
	UserID    string `json:"user_id"`                               // Owning tenant
	Name      string `json:"name" binding:"required,min=1,max=100"` // Unique per user
	Category  string `json:"category,omitempty"`                    // marketing/utility/...
	Language  string `json:"language,omitempty"`
	Body      string `json:"body" binding:"required"`
	Status    string `json:"status"` // active/archived
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// CreateTemplateRequest represents the request body for creating a template
type CreateTemplateRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100"`
	Category string `json:"category,omitempty"`
	Language string `json:"language,omitempty"`
	Body     string `json:"body" binding:"required"`
}

// UpdateTemplateRequest represents the request body for updating a template
type UpdateTemplateRequest struct {
	Name     *string `json:"name,omitempty" binding:"omitempty,min=1,max=100"`
	Category *string `json:"category,omitempty"`
	Language *string `json:"language,omitempty"`
	Body     *string `json:"body,omitempty"`
	Status   *string `json:"status,omitempty"`
}

// ValidTemplateStatus reports whether s is a known lifecycle state.
func ValidTemplateStatus(s string) bool {
	return s == TemplateActive || s == TemplateArchived
}

// NewTemplate creates a Template with generated UUID and timestamps.
func NewTemplate(userID, name, body string) *Template {
	now := time.Now().Unix()
	return &Template{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Body:      body,
		Status:    TemplateActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Render substitutes {{key}} placeholders in the body. Unknown placeholders
// are left as-is so a half-filled render is visible rather than silently
// blank.
func (t *Template) Render(vars map[string]string) string {
	return RenderBody(t.Body, vars)
}

// Variables returns the distinct placeholder names in body order.
func (t *Template) Variables() []string {
	var names []string
	seen := map[string]bool{}
	body := t.Body
	for {
		start := strings.Index(body, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(body[start:], "}}")
		if end < 0 {
			break
		}
		name := strings.TrimSpace(body[start+2 : start+end])
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		body = body[start+end+2:]
	}
	return names
}

// RenderBody substitutes {{key}} placeholders in an arbitrary message body.
// Quick-send uses this for ad-hoc messages that never became templates.
func RenderBody(body string, vars map[string]string) string {
	if len(vars) == 0 {
		return body
	}
	for k, v := range vars {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return body
}
