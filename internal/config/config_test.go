package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesTemplatesAndDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Templates are created for the operator to fill in.
	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("template %s not created: %v", name, err)
		}
	}

	if cfg.Engine.RequestTimeout != 5*time.Second {
		t.Errorf("default request timeout = %s, want 5s", cfg.Engine.RequestTimeout)
	}
	if cfg.Engine.PollInterval != 5*time.Second {
		t.Errorf("default poll interval = %s, want 5s", cfg.Engine.PollInterval)
	}
	if !cfg.Audit.Enabled {
		t.Error("auditing should default to enabled")
	}
	if cfg.Notify.Enabled {
		t.Error("notifications should default to disabled")
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[engine]
base_url = "http://engine.local:8000"
request_timeout = "3s"
poll_interval = "10s"

[logging]
level = "debug"

[notify]
enabled = true
level = "all"
webhook_url = "https://hooks.example.com/panel"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.BaseURL != "http://engine.local:8000" {
		t.Errorf("base_url = %q", cfg.Engine.BaseURL)
	}
	if cfg.Engine.RequestTimeout != 3*time.Second {
		t.Errorf("request_timeout = %s", cfg.Engine.RequestTimeout)
	}
	if cfg.Engine.PollInterval != 10*time.Second {
		t.Errorf("poll_interval = %s", cfg.Engine.PollInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
	if !cfg.Notify.Enabled || cfg.Notify.Level != "all" {
		t.Errorf("notify config not loaded: %+v", cfg.Notify)
	}
}

func TestLoadReadsCredentials(t *testing.T) {
	dir := t.TempDir()
	creds := `
username = "ops"
password = "hunter2"
`
	if err := os.WriteFile(filepath.Join(dir, "credentials.toml"), []byte(creds), 0600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Credentials.Username != "ops" || cfg.Credentials.Password != "hunter2" {
		t.Fatalf("credentials not loaded: %+v", cfg.Credentials)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ALGOPILOT_URL", "http://override.local")
	t.Setenv("ALGOPILOT_USERNAME", "env-user")
	t.Setenv("ALGOPILOT_PASSWORD", "env-pass")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.BaseURL != "http://override.local" {
		t.Errorf("env URL override not applied: %q", cfg.Engine.BaseURL)
	}
	if cfg.Credentials.Username != "env-user" || cfg.Credentials.Password != "env-pass" {
		t.Errorf("env credential overrides not applied: %+v", cfg.Credentials)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Engine: EngineConfig{
				RequestTimeout: 5 * time.Second,
				PollInterval:   5 * time.Second,
			},
			Logging: LoggingConfig{Level: "info"},
			Notify:  NotifyConfig{Level: "emergencies_only"},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := base()
	cfg.Engine.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero request timeout accepted")
	}

	cfg = base()
	cfg.Engine.PollInterval = 100 * time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Error("sub-second poll interval accepted")
	}

	cfg = base()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log level accepted")
	}

	cfg = base()
	cfg.Notify.Level = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown notify level accepted")
	}

	cfg = base()
	cfg.Notify.Enabled = true
	cfg.Notify.WebhookURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("enabled notifications without webhook URL accepted")
	}
}

func TestCredentialsTemplatePermissions(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("credentials template mode %o, want 0600", perm)
	}
}

func TestSessionPath(t *testing.T) {
	if got := SessionPath("/tmp/panel"); got != filepath.Join("/tmp/panel", "session.json") {
		t.Fatalf("SessionPath = %q", got)
	}
}
