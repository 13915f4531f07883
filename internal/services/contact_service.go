package services

import (
	"errors"
	"fmt"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
	"github.com/zesbe/hallowa-sub001/pkg/utils"
)

var (
	// ErrContactNotFound indicates the contact does not exist
	ErrContactNotFound = errors.New("contact not found")

	// ErrNotContactOwner indicates the caller does not own the contact
	ErrNotContactOwner = errors.New("contact belongs to another user")

	// ErrDuplicateContact indicates the phone already exists for this user
	ErrDuplicateContact = errors.New("contact with this phone already exists")
)

// ContactService provides business logic for the tenant address book
type ContactService struct {
	repo db.ContactRepository
}

// NewContactService creates a new ContactService instance
func NewContactService(repo db.ContactRepository) *ContactService {
	return &ContactService{repo: repo}
}

// Create adds a contact with a normalized, per-user-unique phone number
func (s *ContactService) Create(userID string, req *models.CreateContactRequest) (*models.Contact, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByPhone(userID, phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateContact
	}

	contact := models.NewContact(userID, phone, req.Name)
	contact.Tags = models.EncodeTags(req.Tags)
	contact.GroupName = req.GroupName
	contact.Notes = req.Notes

	if err := s.repo.Create(contact); err != nil {
		return nil, err
	}

	return contact, nil
}

// Get retrieves a contact, enforcing ownership
func (s *ContactService) Get(userID, contactID string) (*models.Contact, error) {
	contact, err := s.repo.GetByID(contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}
	if contact.UserID != userID {
		return nil, ErrNotContactOwner
	}
	return contact, nil
}

// List retrieves contacts with optional search and tag filter
func (s *ContactService) List(userID, search, tag string, limit, offset int) ([]*models.Contact, error) {
	return s.repo.List(userID, search, tag, limit, offset)
}

// Update applies changes to name, tags, group, and notes
func (s *ContactService) Update(userID, contactID string, req *models.CreateContactRequest) (*models.Contact, error) {
	contact, err := s.Get(userID, contactID)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		contact.Name = req.Name
	}
	if req.Tags != nil {
		contact.Tags = models.EncodeTags(req.Tags)
	}
	if req.GroupName != "" {
		contact.GroupName = req.GroupName
	}
	if req.Notes != "" {
		contact.Notes = req.Notes
	}

	if err := s.repo.Update(contact); err != nil {
		return nil, err
	}

	return contact, nil
}

// Delete removes a contact
func (s *ContactService) Delete(userID, contactID string) error {
	if _, err := s.Get(userID, contactID); err != nil {
		return err
	}
	return s.repo.Delete(contactID)
}

// Import bulk-creates contacts. Invalid and duplicate rows are reported in
// the result and skipped; the import never aborts halfway.
func (s *ContactService) Import(userID string, rows []*models.CreateContactRequest) (*models.ImportResult, error) {
	if len(rows) == 0 {
		return nil, errors.New("no contacts to import")
	}

	result := &models.ImportResult{}
	seen := map[string]bool{}

	for i, row := range rows {
		if row == nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportError{
				Index: i, Reason: "empty row",
			})
			continue
		}

		phone, err := utils.NormalizePhone(row.Phone)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportError{
				Index: i, Phone: row.Phone, Reason: "invalid phone number",
			})
			continue
		}

		if seen[phone] {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportError{
				Index: i, Phone: phone, Reason: "duplicate in upload",
			})
			continue
		}
		seen[phone] = true

		existing, err := s.repo.GetByPhone(userID, phone)
		if err != nil {
			return nil, fmt.Errorf("failed to check phone: %w", err)
		}
		if existing != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportError{
				Index: i, Phone: phone, Reason: "already exists",
			})
			continue
		}

		contact := models.NewContact(userID, phone, row.Name)
		contact.Tags = models.EncodeTags(row.Tags)
		contact.GroupName = row.GroupName
		contact.Notes = row.Notes

		if err := s.repo.Create(contact); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportError{
				Index: i, Phone: phone, Reason: "insert failed",
			})
			continue
		}

		result.Imported++
	}

	return result, nil
}
