package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"grab-relay/internal/config"
)

func TestBuildAlertManagerDisabledByDefault(t *testing.T) {
	if m := buildAlertManager(config.Config{}); m != nil {
		t.Fatalf("buildAlertManager() = %v, want nil when telegram disabled", m)
	}
}

func TestBuildAlertManagerEnabled(t *testing.T) {
	cfg := config.Config{}
	cfg.Observability.Telegram = config.TelegramConfig{
		Enabled:    true,
		BotToken:   "abc",
		ChatID:     "1",
		APIBaseURL: "http://127.0.0.1:1",
		TimeoutSec: 1,
	}
	cfg.Observability.Alerts.QueueSize = 4
	m := buildAlertManager(cfg)
	if m == nil {
		t.Fatalf("buildAlertManager() = nil, want manager")
	}
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestLoadConfigWithoutPathUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("UPSTREAM_URL", "")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Port != config.DefaultPort {
		t.Fatalf("port = %d, want %d", cfg.Server.Port, config.DefaultPort)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("UPSTREAM_URL", "")
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8088\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Fatalf("port = %d, want 8088", cfg.Server.Port)
	}
}

func TestParseOptions(t *testing.T) {
	options, err := parseOptions([]string{"-c", "relay.yaml", "--port", "9090"})
	if err != nil {
		t.Fatalf("parseOptions() error = %v", err)
	}
	if options.ConfigPath != "relay.yaml" || options.Port != 9090 {
		t.Fatalf("options = %+v, want config relay.yaml port 9090", *options)
	}
}

func TestParseOptionsRejectsUnknownFlag(t *testing.T) {
	if _, err := parseOptions([]string{"--nope"}); err == nil {
		t.Fatalf("parseOptions() error = nil, want unknown flag error")
	}
}

func TestRunRejectsInvalidPortFlag(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("UPSTREAM_URL", "")
	if err := run([]string{"--port", "70000"}); err == nil {
		t.Fatalf("run() error = nil, want port validation error")
	}
}
