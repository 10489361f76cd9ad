// Package container wires the purchase order authorization service together
// and owns its start and shutdown order.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Engine   EngineConfig
	Lark     LarkConfig
	ERP      ERPConfig
	Digest   DigestConfig
	Storage  StorageConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BusyTimeout bounds how long a transaction waits for the write lock
	BusyTimeout time.Duration
}

// EngineConfig holds approval engine settings.
type EngineConfig struct {
	// MaxCascadeIterations caps the levels one cascade may clear
	MaxCascadeIterations int

	// PrivilegedActors may override and cascade
	PrivilegedActors []string
}

// LarkConfig holds Lark API settings. Notifications are only logged when disabled.
type LarkConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	BaseURL   string
}

// ERPConfig holds ERP status sync settings.
type ERPConfig struct {
	Enabled  bool
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// DigestConfig holds the pending digest worker settings.
type DigestConfig struct {
	Enabled  bool
	Schedule string
	Timeout  time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ArchiveDir keeps every imported rule workbook
	ArchiveDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxUploadSize int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/po_authorization.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
		},
		Engine: EngineConfig{
			MaxCascadeIterations: 10,
		},
		ERP: ERPConfig{
			Timeout: 10 * time.Second,
		},
		Digest: DigestConfig{
			Schedule: "0 0 9 * * 1-5",
			Timeout:  2 * time.Minute,
		},
		Storage: StorageConfig{
			ArchiveDir: "data/archive",
		},
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			MaxUploadSize: 10 << 20,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Engine.MaxCascadeIterations <= 0 {
		return fmt.Errorf("engine.max_cascade_iterations must be positive")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	if c.ERP.Enabled && c.ERP.BaseURL == "" {
		return fmt.Errorf("erp.base_url is required")
	}

	if c.Storage.ArchiveDir == "" {
		return fmt.Errorf("storage.archive_dir is required")
	}

	return nil
}
