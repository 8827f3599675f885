package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# AlgoPilot Panel Configuration

[engine]
# Base URL of the AlgoPilot trading engine
base_url = ""
# Per-request timeout
request_timeout = "5s"
# Status poll interval for watch mode
poll_interval = "5s"

[ui]
# Enable colored output
color_enabled = true
# Time format
time_format = "15:04:05"

[logging]
# Log level: debug, info, warn, error
level = "info"
# Log to console
console = true
# Log to rotated file
file = true

[audit]
# Record dispatched commands and status snapshots locally
enabled = true

[notify]
# Push emergency/command events to a webhook
enabled = false
# Notification level: all, emergencies_only
level = "emergencies_only"
webhook_url = ""
`

const credentialsTemplate = `# AlgoPilot Panel Credentials
# Used by 'panel login' when --username/--password are not given.
# Keep this file private (chmod 600).

username = ""
password = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(configTemplate), 0644)
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(credentialsTemplate), 0600)
}
