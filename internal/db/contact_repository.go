package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"
)

// ContactRepository defines the interface for contact data access
type ContactRepository interface {
	Create(contact *models.Contact) error
	GetByID(id string) (*models.Contact, error)
	GetByPhone(userID, phone string) (*models.Contact, error)
	List(userID, search, tag string, limit, offset int) ([]*models.Contact, error)
	ListByTag(userID, tag string) ([]*models.Contact, error)
	Update(contact *models.Contact) error
	Delete(id string) error
	CountByUser(userID string) (int64, error)
}

type contactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new ContactRepository
func NewContactRepository(db *sql.DB) ContactRepository {
	return &contactRepository{db: db}
}

const contactColumns = `id, user_id, phone, name, tags, group_name, notes, created_at, updated_at`

func scanContact(row interface{ Scan(...interface{}) error }) (*models.Contact, error) {
	contact := &models.Contact{}
	err := row.Scan(
		&contact.ID,
		&contact.UserID,
		&contact.Phone,
		&contact.Name,
		&contact.Tags,
		&contact.GroupName,
		&contact.Notes,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// Create inserts a new contact. The (user_id, phone) unique index rejects
// duplicates.
func (r *contactRepository) Create(contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact cannot be nil")
	}

	query := `
		INSERT INTO contacts (id, user_id, phone, name, tags, group_name, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		contact.ID,
		contact.UserID,
		contact.Phone,
		contact.Name,
		contact.Tags,
		contact.GroupName,
		contact.Notes,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

// GetByID retrieves a contact by ID
func (r *contactRepository) GetByID(id string) (*models.Contact, error) {
	if id == "" {
		return nil, fmt.Errorf("contact ID cannot be empty")
	}

	contact, err := scanContact(r.db.QueryRow(
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return contact, nil
}

// GetByPhone retrieves a contact by normalized phone within one tenant
func (r *contactRepository) GetByPhone(userID, phone string) (*models.Contact, error) {
	if userID == "" || phone == "" {
		return nil, fmt.Errorf("user ID and phone are required")
	}

	contact, err := scanContact(r.db.QueryRow(
		`SELECT `+contactColumns+` FROM contacts WHERE user_id = ? AND phone = ?`,
		userID, phone))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact by phone: %w", err)
	}

	return contact, nil
}

// List retrieves contacts with optional search on name/phone and tag filter
func (r *contactRepository) List(userID, search, tag string, limit, offset int) ([]*models.Contact, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = ?`
	args := []interface{}{userID}

	if search != "" {
		query += ` AND (name LIKE ? OR phone LIKE ?)`
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	if tag != "" {
		// Tags are stored as a JSON array string; quote-wrapping keeps
		// "vip" from matching "vip-gold"
		query += ` AND tags LIKE ?`
		args = append(args, `%"`+tag+`"%`)
	}

	query += ` ORDER BY name, phone LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return contacts, nil
}

// ListByTag retrieves every contact of a user holding the given tag
func (r *contactRepository) ListByTag(userID, tag string) ([]*models.Contact, error) {
	if tag == "" {
		return nil, fmt.Errorf("tag cannot be empty")
	}
	return r.List(userID, "", tag, 10000, 0)
}

// Update updates a contact's mutable fields
func (r *contactRepository) Update(contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact cannot be nil")
	}
	if contact.ID == "" {
		return fmt.Errorf("contact ID cannot be empty")
	}

	contact.UpdatedAt = time.Now().Unix()

	result, err := r.db.Exec(`
		UPDATE contacts
		SET name = ?, tags = ?, group_name = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, contact.Name, contact.Tags, contact.GroupName, contact.Notes, contact.UpdatedAt, contact.ID)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("contact not found")
	}

	return nil
}

// Delete removes a contact
func (r *contactRepository) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("contact ID cannot be empty")
	}

	result, err := r.db.Exec("DELETE FROM contacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("contact not found")
	}

	return nil
}

// CountByUser returns how many contacts a user has
func (r *contactRepository) CountByUser(userID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("user ID cannot be empty")
	}

	var count int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM contacts WHERE user_id = ?", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}
