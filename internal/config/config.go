// Package config provides configuration management for the panel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all panel configuration.
type Config struct {
	Engine      EngineConfig  `mapstructure:"engine"`
	UI          UIConfig      `mapstructure:"ui"`
	Logging     LoggingConfig `mapstructure:"logging"`
	Audit       AuditConfig   `mapstructure:"audit"`
	Notify      NotifyConfig  `mapstructure:"notify"`
	Credentials Credentials   `mapstructure:"-"` // Loaded separately

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// EngineConfig holds connection settings for the remote trading engine.
type EngineConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
}

// UIConfig holds display-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	TimeFormat   string `mapstructure:"time_format"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// AuditConfig holds settings for the local command/status audit trail.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// NotifyConfig holds notification configuration.
type NotifyConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Level      string `mapstructure:"level"` // all, emergencies_only
	WebhookURL string `mapstructure:"webhook_url"`
}

// Credentials holds the engine login credentials.
type Credentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/algopilot-panel"
	}
	return filepath.Join(home, ".config", "algopilot-panel")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and continue with defaults.
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("engine.base_url", "")
	v.SetDefault("engine.request_timeout", 5*time.Second)
	v.SetDefault("engine.poll_interval", 5*time.Second)
	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.time_format", "15:04:05")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "panel.log"))
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.db_path", filepath.Join(configDir, "panel.db"))
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.level", "emergencies_only")
	v.SetDefault("notify.webhook_url", "")
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALGOPILOT_URL"); v != "" {
		cfg.Engine.BaseURL = v
	}
	if v := os.Getenv("ALGOPILOT_USERNAME"); v != "" {
		cfg.Credentials.Username = v
	}
	if v := os.Getenv("ALGOPILOT_PASSWORD"); v != "" {
		cfg.Credentials.Password = v
	}
	if v := os.Getenv("ALGOPILOT_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be positive")
	}
	if c.Engine.PollInterval < time.Second {
		return fmt.Errorf("engine.poll_interval must be at least 1s")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	switch c.Notify.Level {
	case "", "all", "emergencies_only":
	default:
		return fmt.Errorf("invalid notify level: %s (must be 'all' or 'emergencies_only')", c.Notify.Level)
	}
	if c.Notify.Enabled && c.Notify.WebhookURL == "" {
		return fmt.Errorf("notify.webhook_url required when notifications are enabled")
	}
	return nil
}

// SessionPath returns the path of the persisted session file.
func SessionPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "session.json")
}
