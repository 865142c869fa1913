// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Model    ModelConfig    `mapstructure:"model"`
	Database DatabaseConfig `mapstructure:"database"`
	Files    FilesConfig    `mapstructure:"files"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
	BodySizeLimit  int64  `mapstructure:"body_size_limit"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
}

// ModelConfig holds the served model identity and runtime endpoint
type ModelConfig struct {
	Name       string `mapstructure:"name"`
	RuntimeURL string `mapstructure:"runtime_url"`
}

// DatabaseConfig holds the file metadata database configuration
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // "sqlite" or "postgresql"
	Path string `mapstructure:"path"` // sqlite database file
	URL  string `mapstructure:"url"`  // postgresql connection string
}

// FilesConfig holds the file cache and retention configuration
type FilesConfig struct {
	CacheDir      string        `mapstructure:"cache_dir"`
	ImageDir      string        `mapstructure:"image_dir"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load reads configuration from an optional .env file and the environment
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if .env file doesn't exist

	// Set defaults
	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", "8000")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")
	viper.SetDefault("BODY_SIZE_LIMIT", int64(25<<20))
	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("MODEL_NAME", "qwen/Qwen-VL-Chat")
	viper.SetDefault("RUNTIME_URL", "http://127.0.0.1:8001")
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DB_PATH", "data/vlmodel.db")
	viper.SetDefault("FILE_CACHE_DIR", "data/files")
	viper.SetDefault("IMAGE_DIR", "data/images")
	viper.SetDefault("FILE_RETENTION", "6h")
	viper.SetDefault("SWEEP_INTERVAL", "24h")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:           viper.GetString("HOST"),
			Port:           viper.GetString("PORT"),
			PublicBaseURL:  viper.GetString("PUBLIC_BASE_URL"),
			BodySizeLimit:  viper.GetInt64("BODY_SIZE_LIMIT"),
			MetricsEnabled: viper.GetBool("METRICS_ENABLED"),
		},
		Model: ModelConfig{
			Name:       viper.GetString("MODEL_NAME"),
			RuntimeURL: viper.GetString("RUNTIME_URL"),
		},
		Database: DatabaseConfig{
			Type: viper.GetString("DB_TYPE"),
			Path: viper.GetString("DB_PATH"),
			URL:  viper.GetString("DATABASE_URL"),
		},
		Files: FilesConfig{
			CacheDir:      viper.GetString("FILE_CACHE_DIR"),
			ImageDir:      viper.GetString("IMAGE_DIR"),
			Retention:     viper.GetDuration("FILE_RETENTION"),
			SweepInterval: viper.GetDuration("SWEEP_INTERVAL"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks for configuration combinations that cannot work.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("MODEL_NAME must not be empty")
	}
	if c.Model.RuntimeURL == "" {
		return fmt.Errorf("RUNTIME_URL must not be empty")
	}
	switch strings.ToLower(c.Database.Type) {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgresql", "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgresql")
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}
	if c.Files.Retention <= 0 {
		return fmt.Errorf("FILE_RETENTION must be positive")
	}
	if c.Files.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}
