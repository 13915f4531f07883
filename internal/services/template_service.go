package services

import (
	"errors"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
)

var (
	// ErrTemplateNotFound indicates the template does not exist
	ErrTemplateNotFound = errors.New("template not found")

	// ErrNotTemplateOwner indicates the caller does not own the template
	ErrNotTemplateOwner = errors.New("template belongs to another user")

	// ErrDuplicateTemplate indicates the name already exists for this user
	ErrDuplicateTemplate = errors.New("template with this name already exists")

	// ErrTemplateArchived indicates an archived template was used for a send
	ErrTemplateArchived = errors.New("template is archived")
)

// TemplateService provides business logic for message templates
type TemplateService struct {
	repo db.TemplateRepository
}

// NewTemplateService creates a new TemplateService instance
func NewTemplateService(repo db.TemplateRepository) *TemplateService {
	return &TemplateService{repo: repo}
}

// Create adds a template with a per-user-unique name
func (s *TemplateService) Create(userID string, req *models.CreateTemplateRequest) (*models.Template, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	existing, err := s.repo.GetByName(userID, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateTemplate
	}

	tmpl := models.NewTemplate(userID, req.Name, req.Body)
	tmpl.Category = req.Category
	tmpl.Language = req.Language

	if err := s.repo.Create(tmpl); err != nil {
		return nil, err
	}

	return tmpl, nil
}

// Get retrieves a template, enforcing ownership
func (s *TemplateService) Get(userID, templateID string) (*models.Template, error) {
	tmpl, err := s.repo.GetByID(templateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, ErrTemplateNotFound
	}
	if tmpl.UserID != userID {
		return nil, ErrNotTemplateOwner
	}
	return tmpl, nil
}

// List retrieves a user's templates
func (s *TemplateService) List(userID string, limit, offset int) ([]*models.Template, error) {
	return s.repo.ListByUser(userID, limit, offset)
}

// Update applies changes to a template
func (s *TemplateService) Update(userID, templateID string, req *models.UpdateTemplateRequest) (*models.Template, error) {
	tmpl, err := s.Get(userID, templateID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != tmpl.Name {
		existing, err := s.repo.GetByName(userID, *req.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrDuplicateTemplate
		}
		tmpl.Name = *req.Name
	}
	if req.Category != nil {
		tmpl.Category = *req.Category
	}
	if req.Language != nil {
		tmpl.Language = *req.Language
	}
	if req.Body != nil {
		tmpl.Body = *req.Body
	}
	if req.Status != nil {
		if !models.ValidTemplateStatus(*req.Status) {
			return nil, errors.New("invalid template status")
		}
		tmpl.Status = *req.Status
	}

	if err := s.repo.Update(tmpl); err != nil {
		return nil, err
	}

	return tmpl, nil
}

// Delete removes a template
func (s *TemplateService) Delete(userID, templateID string) error {
	if _, err := s.Get(userID, templateID); err != nil {
		return err
	}
	return s.repo.Delete(templateID)
}
