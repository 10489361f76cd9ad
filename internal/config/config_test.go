package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: /tmp/po.db
engine:
  privileged_actors: [admin, controller]
digest:
  enabled: true
  schedule: "@every 30m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/tmp/po.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 10, cfg.Engine.MaxCascadeIterations)
	assert.Equal(t, []string{"admin", "controller"}, cfg.Engine.PrivilegedActors)
	assert.True(t, cfg.Digest.Enabled)
	assert.Equal(t, "@every 30m", cfg.Digest.Schedule)
	assert.False(t, cfg.Lark.Enabled)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_EnvironmentSecrets(t *testing.T) {
	t.Setenv("LARK_APP_ID", "cli_123")
	t.Setenv("LARK_APP_SECRET", "s3cret")
	t.Setenv("ERP_BASE_URL", "https://erp.example.com")
	t.Setenv("ENGINE_MAX_CASCADE_ITERATIONS", "3")

	path := writeConfig(t, `
lark:
  enabled: true
erp:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cli_123", cfg.Lark.AppID)
	assert.Equal(t, "s3cret", cfg.Lark.AppSecret)
	assert.Equal(t, "https://erp.example.com", cfg.ERP.BaseURL)
	assert.Equal(t, 3, cfg.Engine.MaxCascadeIterations)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, `
lark:
  enabled: true
`)
	_, err = Load(path)
	assert.ErrorContains(t, err, "lark.app_id")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Path: "x.db"},
			Engine:   EngineConfig{MaxCascadeIterations: 10},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"no cascade cap", func(c *Config) { c.Engine.MaxCascadeIterations = 0 }, "max_cascade_iterations"},
		{"lark secret", func(c *Config) { c.Lark = LarkConfig{Enabled: true, AppID: "id"} }, "lark.app_secret"},
		{"erp url", func(c *Config) { c.ERP.Enabled = true }, "erp.base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8081, MaxUploadSize: 1024},
		Database: DatabaseConfig{Path: "po.db", BusyTimeout: time.Second},
		Engine:   EngineConfig{MaxCascadeIterations: 4, PrivilegedActors: []string{"admin"}},
		ERP:      ERPConfig{Enabled: true, BaseURL: "http://erp", Timeout: time.Second},
		Digest:   DigestConfig{Enabled: true, Schedule: "@hourly"},
		Storage:  StorageConfig{ArchiveDir: "archive"},
	}

	cc := cfg.ToContainerConfig()
	require.NoError(t, cc.Validate())
	assert.Equal(t, "po.db", cc.Database.Path)
	assert.Equal(t, time.Second, cc.Database.BusyTimeout)
	assert.Equal(t, 4, cc.Engine.MaxCascadeIterations)
	assert.Equal(t, []string{"admin"}, cc.Engine.PrivilegedActors)
	assert.Equal(t, "http://erp", cc.ERP.BaseURL)
	assert.Equal(t, "@hourly", cc.Digest.Schedule)
	assert.Equal(t, "archive", cc.Storage.ArchiveDir)

	server := cfg.ToServerConfig()
	assert.Equal(t, "127.0.0.1", server.Host)
	assert.Equal(t, 8081, server.Port)
	assert.Equal(t, int64(1024), server.MaxUploadSize)
	assert.Equal(t, "po-authorization", cfg.ToLoggerConfig().Name)
}
