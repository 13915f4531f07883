package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"
)

// TemplateRepository defines the interface for template data access
type TemplateRepository interface {
	Create(template *models.Template) error
	GetByID(id string) (*models.Template, error)
	GetByName(userID, name string) (*models.Template, error)
	ListByUser(userID string, limit, offset int) ([]*models.Template, error)
	Update(template *models.Template) error
	Delete(id string) error
}

type templateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *sql.DB) TemplateRepository {
	return &templateRepository{db: db}
}

const templateColumns = `id, user_id, name, category, language, body, status, created_at, updated_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*models.Template, error) {
	tmpl := &models.Template{}
	err := row.Scan(
		&tmpl.ID,
		&tmpl.UserID,
		&tmpl.Name,
		&tmpl.Category,
		&tmpl.Language,
		&tmpl.Body,
		&tmpl.Status,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Create inserts a new template
func (r *templateRepository) Create(template *models.Template) error {
	if template == nil {
		return fmt.Errorf("template cannot be nil")
	}

	query := `
		INSERT INTO templates (id, user_id, name, category, language, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		template.ID,
		template.UserID,
		template.Name,
		template.Category,
		template.Language,
		template.Body,
		template.Status,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// GetByID retrieves a template by ID
func (r *templateRepository) GetByID(id string) (*models.Template, error) {
	if id == "" {
		return nil, fmt.Errorf("template ID cannot be empty")
	}

	tmpl, err := scanTemplate(r.db.QueryRow(
		`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return tmpl, nil
}

// GetByName retrieves a template by its per-user unique name
func (r *templateRepository) GetByName(userID, name string) (*models.Template, error) {
	if userID == "" || name == "" {
		return nil, fmt.Errorf("user ID and name are required")
	}

	tmpl, err := scanTemplate(r.db.QueryRow(
		`SELECT `+templateColumns+` FROM templates WHERE user_id = ? AND name = ?`,
		userID, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template by name: %w", err)
	}

	return tmpl, nil
}

// ListByUser retrieves a user's templates with pagination
func (r *templateRepository) ListByUser(userID string, limit, offset int) ([]*models.Template, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(
		`SELECT `+templateColumns+` FROM templates WHERE user_id = ?
		ORDER BY name LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

// Update updates a template's mutable fields
func (r *templateRepository) Update(template *models.Template) error {
	if template == nil {
		return fmt.Errorf("template cannot be nil")
	}
	if template.ID == "" {
		return fmt.Errorf("template ID cannot be empty")
	}

	template.UpdatedAt = time.Now().Unix()

	result, err := r.db.Exec(`
		UPDATE templates
		SET name = ?, category = ?, language = ?, body = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, template.Name, template.Category, template.Language, template.Body,
		template.Status, template.UpdatedAt, template.ID)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("template not found")
	}

	return nil
}

// Delete removes a template
func (r *templateRepository) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("template ID cannot be empty")
	}

	result, err := r.db.Exec("DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("template not found")
	}

	return nil
}
