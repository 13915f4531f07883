package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zesbe/hallowa-sub001/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds all configuration settings
type Config struct {
	Server struct {
		Port int    `json:"port"`
		Host string `json:"host"`
	} `json:"server"`
	Database struct {
		DSN string `json:"dsn"`
	} `json:"database"`
	JWT struct {
		Secret      string        `json:"secret"`
		TokenExpiry time.Duration `json:"token_expiry"`
	} `json:"jwt"`
	Logging struct {
		Level string `json:"level"`
		Path  string `json:"path"`
	} `json:"logging"`
	Seed struct {
		Enable        bool   `json:"enable"`
		AdminPassword string `json:"admin_password"`
	} `json:"seed"`
	Security struct {
		// 32-byte key used to encrypt TOTP seeds and gateway keys at rest
		EncryptionKey string `json:"encryption_key"`
	} `json:"security"`
	Gateway struct {
		BaseURL      string `json:"base_url"`
		MerchantCode string `json:"merchant_code"`
		APIKey       string `json:"api_key"`
		PrivateKey   string `json:"private_key"`
		CallbackURL  string `json:"callback_url"`
	} `json:"gateway"`
	Bridge struct {
		// Shared secret the WhatsApp session bridge presents on /bridge routes
		Token string `json:"token"`
	} `json:"bridge"`
	Chatbot struct {
		// Optional AI endpoint inbound messages are forwarded to when no rule matches
		AIEndpoint string        `json:"ai_endpoint"`
		Timeout    time.Duration `json:"timeout"`
	} `json:"chatbot"`
	Scheduler struct {
		Enable bool `json:"enable"`
		// Minutes a device may sit in "connecting" before cleanup flips it back
		StuckDeviceAfter time.Duration `json:"stuck_device_after"`
		// Visibility timeout for claimed queue rows before they are requeued
		ClaimTimeout time.Duration `json:"claim_timeout"`
		// Days before plan expiry at which reminders fire
		ReminderDays []int `json:"reminder_days"`
	} `json:"scheduler"`
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	// Validate path to prevent directory traversal
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("config path must be absolute")
	}

	// Check if file exists and is a regular file
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("config file error: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file")
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("Failed to close config file", zap.Error(closeErr))
		}
	}()

	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}

	config.applyEnv()
	return config, nil
}

// DefaultConfig returns a default configuration with environment overrides
// applied. A .env file next to the binary is honored when present.
func DefaultConfig() *Config {
	// Missing .env is fine; explicit env vars still apply
	_ = godotenv.Load()

	config := &Config{}
	config.Server.Port = 8080
	config.Server.Host = "localhost"
	config.Database.DSN = "file:hallowa.db?cache=shared&mode=rwc&_foreign_keys=on"
	config.JWT.Secret = "change-me-in-production"
	config.JWT.TokenExpiry = 24 * time.Hour
	config.Logging.Level = "info"
	config.Logging.Path = "server.log"
	config.Seed.Enable = false
	config.Gateway.BaseURL = "https://tripay.co.id/api"
	config.Chatbot.Timeout = 15 * time.Second
	config.Scheduler.Enable = true
	config.Scheduler.StuckDeviceAfter = 10 * time.Minute
	config.Scheduler.ClaimTimeout = 5 * time.Minute
	config.Scheduler.ReminderDays = []int{7, 3, 1}

	config.applyEnv()
	return config
}

// applyEnv overrides file/default values from the environment. Only secrets
// and deploy-specific knobs are exposed this way.
func (c *Config) applyEnv() {
	if v := os.Getenv("HALLOWA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("HALLOWA_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("HALLOWA_JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("HALLOWA_ENCRYPTION_KEY"); v != "" {
		c.Security.EncryptionKey = v
	}
	if v := os.Getenv("HALLOWA_GATEWAY_BASE_URL"); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := os.Getenv("HALLOWA_GATEWAY_MERCHANT_CODE"); v != "" {
		c.Gateway.MerchantCode = v
	}
	if v := os.Getenv("HALLOWA_GATEWAY_API_KEY"); v != "" {
		c.Gateway.APIKey = v
	}
	if v := os.Getenv("HALLOWA_GATEWAY_PRIVATE_KEY"); v != "" {
		c.Gateway.PrivateKey = v
	}
	if v := os.Getenv("HALLOWA_BRIDGE_TOKEN"); v != "" {
		c.Bridge.Token = v
	}
	if v := os.Getenv("HALLOWA_AI_ENDPOINT"); v != "" {
		c.Chatbot.AIEndpoint = v
	}
}
