package services

import (
	"errors"

	"github.com/zesbe/hallowa-sub001/internal/db"
	"github.com/zesbe/hallowa-sub001/internal/models"
)

// ErrAddonRequired indicates a feature gated behind an add-on the user has
// not purchased.
var ErrAddonRequired = errors.New("feature requires an active add-on")

// AddonService provides the purchasable catalog and per-user feature checks
type AddonService struct {
	repo db.AddonRepository
}

// NewAddonService creates a new AddonService instance
func NewAddonService(repo db.AddonRepository) *AddonService {
	return &AddonService{repo: repo}
}

// Catalog lists the purchasable add-ons
func (s *AddonService) Catalog() ([]*models.Addon, error) {
	return s.repo.ListActive()
}

// Mine lists the user's grants, including expired ones for history
func (s *AddonService) Mine(userID string) ([]*models.UserAddon, error) {
	return s.repo.ListByUser(userID)
}

// HasFeature reports whether the user holds an unexpired grant for code
func (s *AddonService) HasFeature(userID, code string) (bool, error) {
	grant, err := s.repo.GetActiveGrant(userID, code)
	if err != nil {
		return false, err
	}
	return grant != nil, nil
}

// RequireFeature returns ErrAddonRequired when the user lacks the add-on
func (s *AddonService) RequireFeature(userID, code string) error {
	ok, err := s.HasFeature(userID, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAddonRequired
	}
	return nil
}
