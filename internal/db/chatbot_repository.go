package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"
)

// ChatbotRepository defines the interface for chatbot rule data access
type ChatbotRepository interface {
	Create(rule *models.ChatbotRule) error
	GetByID(id string) (*models.ChatbotRule, error)
	ListByUser(userID string) ([]*models.ChatbotRule, error)
	ListActiveForDevice(userID, deviceID string) ([]*models.ChatbotRule, error)
	Update(rule *models.ChatbotRule) error
	Delete(id string) error
}

type chatbotRepository struct {
	db *sql.DB
}

// NewChatbotRepository creates a new ChatbotRepository
func NewChatbotRepository(db *sql.DB) ChatbotRepository {
	return &chatbotRepository{db: db}
}

const ruleColumns = `id, user_id, device_id, keyword, match_type, reply, priority,
	active, created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (*models.ChatbotRule, error) {
	rule := &models.ChatbotRule{}
	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.DeviceID,
		&rule.Keyword,
		&rule.MatchType,
		&rule.Reply,
		&rule.Priority,
		&rule.Active,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// Create inserts a new rule
func (r *chatbotRepository) Create(rule *models.ChatbotRule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}

	_, err := r.db.Exec(`
		INSERT INTO chatbot_rules (id, user_id, device_id, keyword, match_type,
			reply, priority, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.UserID, rule.DeviceID, rule.Keyword, rule.MatchType,
		rule.Reply, rule.Priority, rule.Active, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// GetByID retrieves a rule by ID
func (r *chatbotRepository) GetByID(id string) (*models.ChatbotRule, error) {
	if id == "" {
		return nil, fmt.Errorf("rule ID cannot be empty")
	}

	rule, err := scanRule(r.db.QueryRow(
		`SELECT `+ruleColumns+` FROM chatbot_rules WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// ListByUser retrieves all of a user's rules
func (r *chatbotRepository) ListByUser(userID string) ([]*models.ChatbotRule, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	rows, err := r.db.Query(
		`SELECT `+ruleColumns+` FROM chatbot_rules WHERE user_id = ?
		ORDER BY priority, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// ListActiveForDevice retrieves active rules applying to a device: rules
// pinned to it plus the user's device-wide rules. Ordered by priority, then
// match specificity (exact before contains before prefix) so an exact rule
// always beats a looser rule at the same priority.
func (r *chatbotRepository) ListActiveForDevice(userID, deviceID string) ([]*models.ChatbotRule, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	rows, err := r.db.Query(
		`SELECT `+ruleColumns+` FROM chatbot_rules
		WHERE user_id = ? AND active = 1 AND (device_id IS NULL OR device_id = ?)
		ORDER BY priority,
			CASE match_type WHEN 'exact' THEN 0 WHEN 'contains' THEN 1 ELSE 2 END,
			created_at`, userID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

func collectRules(rows *sql.Rows) ([]*models.ChatbotRule, error) {
	var rules []*models.ChatbotRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}

// Update updates a rule's mutable fields
func (r *chatbotRepository) Update(rule *models.ChatbotRule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}
	if rule.ID == "" {
		return fmt.Errorf("rule ID cannot be empty")
	}

	rule.UpdatedAt = time.Now().Unix()

	result, err := r.db.Exec(`
		UPDATE chatbot_rules
		SET keyword = ?, match_type = ?, reply = ?, priority = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, rule.Keyword, rule.MatchType, rule.Reply, rule.Priority, rule.Active,
		rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rule not found")
	}

	return nil
}

// Delete removes a rule
func (r *chatbotRepository) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("rule ID cannot be empty")
	}

	result, err := r.db.Exec("DELETE FROM chatbot_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rule not found")
	}

	return nil
}
