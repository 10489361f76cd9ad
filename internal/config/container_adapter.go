package config

import (
	"github.com/garyjia/po-authorization/internal/container"
	httpapi "github.com/garyjia/po-authorization/internal/interfaces/http"
	"github.com/garyjia/po-authorization/pkg/utils"
)

// ToContainerConfig converts the file-based Config to the container's configuration.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Engine: container.EngineConfig{
			MaxCascadeIterations: c.Engine.MaxCascadeIterations,
			PrivilegedActors:     append([]string(nil), c.Engine.PrivilegedActors...),
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		ERP: container.ERPConfig{
			Enabled:  c.ERP.Enabled,
			BaseURL:  c.ERP.BaseURL,
			APIToken: c.ERP.APIToken,
			Timeout:  c.ERP.Timeout,
		},
		Digest: container.DigestConfig{
			Enabled:  c.Digest.Enabled,
			Schedule: c.Digest.Schedule,
			Timeout:  c.Digest.Timeout,
		},
		Storage: container.StorageConfig{
			ArchiveDir: c.Storage.ArchiveDir,
		},
		Server: container.ServerConfig{
			Host:          c.Server.Host,
			Port:          c.Server.Port,
			ReadTimeout:   c.Server.ReadTimeout,
			WriteTimeout:  c.Server.WriteTimeout,
			MaxUploadSize: c.Server.MaxUploadSize,
		},
	}
}

// ToServerConfig returns the HTTP server settings
func (c *Config) ToServerConfig() httpapi.ServerConfig {
	return httpapi.ServerConfig{
		Host:          c.Server.Host,
		Port:          c.Server.Port,
		ReadTimeout:   c.Server.ReadTimeout,
		WriteTimeout:  c.Server.WriteTimeout,
		MaxUploadSize: c.Server.MaxUploadSize,
	}
}

// ToLoggerConfig returns the logger settings
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		Name:       "po-authorization",
	}
}
