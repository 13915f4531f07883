package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/zesbe/hallowa-sub001/internal/models"

	"github.com/shopspring/decimal"
)

// AddonRepository defines the interface for the add-on catalog and per-user
// add-on grants.
type AddonRepository interface {
	Create(addon *models.Addon) error
	GetByCode(code string) (*models.Addon, error)
	ListActive() ([]*models.Addon, error)
	Grant(grant *models.UserAddon) error
	ListByUser(userID string) ([]*models.UserAddon, error)
	GetActiveGrant(userID, code string) (*models.UserAddon, error)
	CountActiveGrants(userID, code string) (int, error)
}

type addonRepository struct {
	db *sql.DB
}

// NewAddonRepository creates a new AddonRepository
func NewAddonRepository(db *sql.DB) AddonRepository {
	return &addonRepository{db: db}
}

func scanAddon(row interface{ Scan(...interface{}) error }) (*models.Addon, error) {
	a := &models.Addon{}
	var price string
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Description, &price,
		&a.DurationDays, &a.Active, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price: %w", err)
	}

	return a, nil
}

// Create inserts a catalog entry
func (r *addonRepository) Create(addon *models.Addon) error {
	if addon == nil {
		return fmt.Errorf("addon cannot be nil")
	}

	_, err := r.db.Exec(`
		INSERT INTO addons (id, code, name, description, price, duration_days, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, addon.ID, addon.Code, addon.Name, addon.Description, addon.Price.String(),
		addon.DurationDays, addon.Active, addon.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create addon: %w", err)
	}

	return nil
}

// GetByCode retrieves a catalog entry by machine name
func (r *addonRepository) GetByCode(code string) (*models.Addon, error) {
	if code == "" {
		return nil, fmt.Errorf("addon code cannot be empty")
	}

	a, err := scanAddon(r.db.QueryRow(`
		SELECT id, code, name, description, price, duration_days, active, created_at
		FROM addons WHERE code = ?
	`, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get addon: %w", err)
	}

	return a, nil
}

// ListActive retrieves the purchasable catalog
func (r *addonRepository) ListActive() ([]*models.Addon, error) {
	rows, err := r.db.Query(`
		SELECT id, code, name, description, price, duration_days, active, created_at
		FROM addons WHERE active = 1 ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list addons: %w", err)
	}
	defer rows.Close()

	var addons []*models.Addon
	for rows.Next() {
		a, err := scanAddon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan addon: %w", err)
		}
		addons = append(addons, a)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return addons, nil
}

// Grant records an add-on purchase for a user
func (r *addonRepository) Grant(grant *models.UserAddon) error {
	if grant == nil {
		return fmt.Errorf("grant cannot be nil")
	}

	_, err := r.db.Exec(`
		INSERT INTO user_addons (id, user_id, addon_id, code, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, grant.ID, grant.UserID, grant.AddonID, grant.Code, grant.ExpiresAt, grant.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to grant addon: %w", err)
	}

	return nil
}

// ListByUser retrieves all of a user's grants, active or not
func (r *addonRepository) ListByUser(userID string) ([]*models.UserAddon, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}

	rows, err := r.db.Query(`
		SELECT id, user_id, addon_id, code, expires_at, created_at
		FROM user_addons WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user addons: %w", err)
	}
	defer rows.Close()

	var grants []*models.UserAddon
	for rows.Next() {
		g := &models.UserAddon{}
		err := rows.Scan(&g.ID, &g.UserID, &g.AddonID, &g.Code, &g.ExpiresAt, &g.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return grants, nil
}

// GetActiveGrant returns the user's unexpired grant for an add-on code, or nil
func (r *addonRepository) GetActiveGrant(userID, code string) (*models.UserAddon, error) {
	if userID == "" || code == "" {
		return nil, fmt.Errorf("user ID and code are required")
	}

	g := &models.UserAddon{}
	err := r.db.QueryRow(`
		SELECT id, user_id, addon_id, code, expires_at, created_at
		FROM user_addons
		WHERE user_id = ? AND code = ?
			AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC LIMIT 1
	`, userID, code, time.Now().Unix()).Scan(
		&g.ID, &g.UserID, &g.AddonID, &g.Code, &g.ExpiresAt, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active grant: %w", err)
	}

	return g, nil
}

// CountActiveGrants counts unexpired grants of one code, used for stackable
// add-ons like extra device slots.
func (r *addonRepository) CountActiveGrants(userID, code string) (int, error) {
	if userID == "" || code == "" {
		return 0, fmt.Errorf("user ID and code are required")
	}

	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM user_addons
		WHERE user_id = ? AND code = ?
			AND (expires_at IS NULL OR expires_at > ?)
	`, userID, code, time.Now().Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count grants: %w", err)
	}

	return count, nil
}
