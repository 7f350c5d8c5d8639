package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultMatchesServiceContract(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WS_TOKEN", "")
	t.Setenv("UPSTREAM_URL", "")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cfg.Server.Port != 3001 {
		t.Fatalf("server.port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.Upstream.URL != DefaultUpstreamURL {
		t.Fatalf("upstream.url = %q, want %q", cfg.Upstream.URL, DefaultUpstreamURL)
	}
	if got := cfg.Upstream.Timeout(); got != 10*time.Second {
		t.Fatalf("upstream timeout = %s, want 10s", got)
	}
	if !cfg.Upstream.SkipVerify() {
		t.Fatalf("upstream.insecure_skip_verify = false, want true by default")
	}
	if cfg.WSToken.Prefix != "ws_" {
		t.Fatalf("ws_token.prefix = %q, want ws_", cfg.WSToken.Prefix)
	}
	if len(cfg.Server.CORS.AllowOrigins) != 1 || cfg.Server.CORS.AllowOrigins[0] != "*" {
		t.Fatalf("server.cors.allow_origins = %v, want [*]", cfg.Server.CORS.AllowOrigins)
	}
	if cfg.Server.Addr() != ":3001" {
		t.Fatalf("Addr() = %q, want :3001", cfg.Server.Addr())
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("WS_TOKEN", "ws_from_env")
	t.Setenv("UPSTREAM_URL", "http://127.0.0.1:9999/grab")
	cfgPath := writeTempConfig(t, `
server:
  port: 5000
ws_token:
  initial: from_file
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Fatalf("server.port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.WSToken.Initial != "ws_from_env" {
		t.Fatalf("ws_token.initial = %q, want ws_from_env", cfg.WSToken.Initial)
	}
	if cfg.Upstream.URL != "http://127.0.0.1:9999/grab" {
		t.Fatalf("upstream.url = %q, want env value", cfg.Upstream.URL)
	}
}

func TestLoadRejectsInvalidPortEnv(t *testing.T) {
	t.Setenv("PORT", "abc")
	if _, err := Default(); err == nil || !strings.Contains(err.Error(), "PORT") {
		t.Fatalf("Default() error = %v, want PORT error", err)
	}
}

func TestLoadParsesFractionalTimeouts(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("UPSTREAM_URL", "")
	cfgPath := writeTempConfig(t, `
server:
  shutdown_timeout_sec: "2.5"
upstream:
  timeout_sec: "0.75"
  insecure_skip_verify: false
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Upstream.Timeout(); got != 750*time.Millisecond {
		t.Fatalf("upstream timeout = %s, want 750ms", got)
	}
	if got := cfg.Server.ShutdownTimeout(); got != 2500*time.Millisecond {
		t.Fatalf("shutdown timeout = %s, want 2.5s", got)
	}
	if cfg.Upstream.SkipVerify() {
		t.Fatalf("upstream.insecure_skip_verify = true, want false")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	cfgPath := writeTempConfig(t, `
server:
  prot: 3001
`)
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("Load() error = nil, want unknown field error")
	}
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	cfgPath := writeTempConfig(t, `
server:
  port: 3001
---
server:
  port: 3002
`)
	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "single YAML document") {
		t.Fatalf("Load() error = %v, want single document error", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("UPSTREAM_URL", "")
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "port", body: "server:\n  port: 70000\n", want: "server.port"},
		{name: "timeout", body: "upstream:\n  timeout_sec: \"-1\"\n", want: "upstream.timeout_sec"},
		{name: "url scheme", body: "upstream:\n  url: ftp://example.com/x\n", want: "upstream.url"},
		{name: "telegram token", body: "observability:\n  telegram:\n    enabled: true\n    chat_id: \"1\"\n", want: "bot_token"},
		{name: "telegram chat", body: "observability:\n  telegram:\n    enabled: true\n    bot_token: abc\n", want: "chat_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
