package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/zesbe/hallowa-sub001/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Database wraps the SQL connection and owns schema creation and seeding.
type Database struct {
	db *sql.DB
}

// NewDatabase opens the SQLite database at dsn and ensures the schema exists.
func NewDatabase(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is required")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Verify we can actually connect to the database
	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	if err := createTables(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("create tables failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	return &Database{db: db}, nil
}

// GetDB exposes the underlying connection for the repositories.
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	if d == nil {
		return errors.New("database is nil")
	}

	if d.db == nil {
		return errors.New("database already closed")
	}

	err := d.db.Close()
	d.db = nil
	return err
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			plan TEXT NOT NULL DEFAULT 'trial',
			plan_expires_at INTEGER,
			message_quota INTEGER NOT NULL DEFAULT 0,
			messages_used INTEGER NOT NULL DEFAULT 0,
			totp_secret TEXT,
			totp_enabled INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			failed_login_attempts INTEGER NOT NULL DEFAULT 0,
			locked_until INTEGER,
			last_login INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			jid TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'disconnected',
			api_key TEXT NOT NULL UNIQUE,
			webhook_url TEXT,
			last_seen_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			phone TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			group_name TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(user_id, phone)
		)`,
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(user_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS broadcasts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			device_id TEXT NOT NULL REFERENCES devices(id),
			template_id TEXT,
			name TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			target_phones TEXT NOT NULL DEFAULT '',
			target_tag TEXT NOT NULL DEFAULT '',
			recipients INTEGER NOT NULL DEFAULT 0,
			sent_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'draft',
			scheduled_at INTEGER,
			started_at INTEGER,
			finished_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS message_queue (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			device_id TEXT NOT NULL REFERENCES devices(id),
			broadcast_id TEXT,
			phone TEXT NOT NULL,
			body TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			last_error TEXT,
			next_attempt_at INTEGER NOT NULL,
			claimed_at INTEGER,
			sent_at INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_claim
			ON message_queue(device_id, status, next_attempt_at)`,
		`CREATE TABLE IF NOT EXISTS message_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			device_id TEXT NOT NULL,
			broadcast_id TEXT,
			phone TEXT NOT NULL,
			body TEXT NOT NULL,
			direction TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			merchant_ref TEXT NOT NULL UNIQUE,
			reference TEXT NOT NULL DEFAULT '',
			item_code TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL,
			fee TEXT NOT NULL DEFAULT '0',
			status TEXT NOT NULL DEFAULT 'pending',
			checkout_url TEXT NOT NULL DEFAULT '',
			paid_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS addons (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL,
			duration_days INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_addons (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			addon_id TEXT NOT NULL REFERENCES addons(id),
			code TEXT NOT NULL,
			expires_at INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chatbot_rules (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			device_id TEXT,
			keyword TEXT NOT NULL,
			match_type TEXT NOT NULL DEFAULT 'contains',
			reply TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reminder_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			kind TEXT NOT NULL,
			days_left INTEGER NOT NULL,
			sent_at INTEGER NOT NULL,
			UNIQUE(user_id, kind, days_left)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema setup failed: %w", err)
		}
	}

	return nil
}

// SeedDatabase creates the owner account and the add-on catalog when they do
// not exist yet. Safe to run on every boot.
func (d *Database) SeedDatabase(adminPassword string) error {
	if adminPassword == "" {
		return errors.New("admin password is required for seeding")
	}

	userRepo := NewUserRepository(d.db)
	existing, err := userRepo.GetByUsername("admin")
	if err != nil {
		return fmt.Errorf("failed to check admin user: %w", err)
	}
	if existing == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), 12)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		admin := models.NewUser("admin", "admin@localhost", string(hash))
		admin.Role = models.RoleOwner
		admin.Plan = models.PlanPro
		admin.PlanExpiresAt = nil
		admin.MessageQuota = models.PlanQuota(models.PlanPro)
		if err := userRepo.Create(admin); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
	}

	addonRepo := NewAddonRepository(d.db)
	catalog := []*models.Addon{
		models.NewAddon(models.AddonAIChatbot, "AI Chatbot", decimal.NewFromInt(50000), 30),
		models.NewAddon(models.AddonExtraDevice, "Extra Device Slot", decimal.NewFromInt(25000), 30),
	}
	for _, addon := range catalog {
		existing, err := addonRepo.GetByCode(addon.Code)
		if err != nil {
			return fmt.Errorf("failed to check addon %s: %w", addon.Code, err)
		}
		if existing == nil {
			if err := addonRepo.Create(addon); err != nil {
				return fmt.Errorf("failed to seed addon %s: %w", addon.Code, err)
			}
		}
	}

	return nil
}
