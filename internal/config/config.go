package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort        = 3001
	DefaultUpstreamURL = "https://hongniu.fengbaikeji.com/api/order/putOrderByDs"
	DefaultTokenPrefix = "ws_"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	WSToken       WSTokenConfig       `yaml:"ws_token"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host               string     `yaml:"host"`
	Port               int        `yaml:"port"`
	ShutdownTimeoutSec Decimal    `yaml:"shutdown_timeout_sec"`
	CORS               CORSConfig `yaml:"cors"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

type UpstreamConfig struct {
	URL                string  `yaml:"url"`
	TimeoutSec         Decimal `yaml:"timeout_sec"`
	InsecureSkipVerify *bool   `yaml:"insecure_skip_verify"`
}

type WSTokenConfig struct {
	Initial string `yaml:"initial"`
	Prefix  string `yaml:"prefix"`
}

type ObservabilityConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

type AlertsConfig struct {
	QueueSize     int   `yaml:"queue_size"`
	DropReportSec int64 `yaml:"drop_report_sec"`
}

// Default returns the configuration used when no file is given.
// Environment overrides are applied.
func Default() (Config, error) {
	var cfg Config
	return cfg.finish()
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	return cfg.finish()
}

func (c Config) finish() (Config, error) {
	c.normalize()
	c.applyDefaults()
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) normalize() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Upstream.URL = strings.TrimSpace(c.Upstream.URL)
	c.WSToken.Initial = strings.TrimSpace(c.WSToken.Initial)
	c.Observability.Telegram.BotToken = strings.TrimSpace(c.Observability.Telegram.BotToken)
	c.Observability.Telegram.ChatID = strings.TrimSpace(c.Observability.Telegram.ChatID)
	c.Observability.Telegram.APIBaseURL = strings.TrimSpace(c.Observability.Telegram.APIBaseURL)
	origins := c.Server.CORS.AllowOrigins[:0]
	for _, o := range c.Server.CORS.AllowOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Server.CORS.AllowOrigins = origins
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeoutSec.IsZero() {
		c.Server.ShutdownTimeoutSec = Decimal{decimal.NewFromInt(10)}
	}
	if len(c.Server.CORS.AllowOrigins) == 0 {
		c.Server.CORS.AllowOrigins = []string{"*"}
	}
	if c.Upstream.URL == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}
	if c.Upstream.TimeoutSec.IsZero() {
		c.Upstream.TimeoutSec = Decimal{decimal.NewFromInt(10)}
	}
	if c.Upstream.InsecureSkipVerify == nil {
		skip := true
		c.Upstream.InsecureSkipVerify = &skip
	}
	if c.WSToken.Prefix == "" {
		c.WSToken.Prefix = DefaultTokenPrefix
	}
	if c.Observability.Telegram.APIBaseURL == "" {
		c.Observability.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Observability.Telegram.TimeoutSec == 0 {
		c.Observability.Telegram.TimeoutSec = 10
	}
	if c.Observability.Alerts.QueueSize == 0 {
		c.Observability.Alerts.QueueSize = 128
	}
	if c.Observability.Alerts.DropReportSec == 0 {
		c.Observability.Alerts.DropReportSec = 60
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PORT must be an integer: %q", v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("WS_TOKEN"); ok && v != "" {
		c.WSToken.Initial = v
	}
	if v, ok := lookup("UPSTREAM_URL"); ok && strings.TrimSpace(v) != "" {
		c.Upstream.URL = strings.TrimSpace(v)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeoutSec.Sign() <= 0 || c.Server.ShutdownTimeoutSec.GreaterThan(decimal.NewFromInt(300)) {
		return fmt.Errorf("server.shutdown_timeout_sec must be in (0, 300]")
	}
	if err := validateURL(c.Upstream.URL, "http", "https"); err != nil {
		return fmt.Errorf("upstream.url %v", err)
	}
	if c.Upstream.TimeoutSec.Sign() <= 0 || c.Upstream.TimeoutSec.GreaterThan(decimal.NewFromInt(120)) {
		return fmt.Errorf("upstream.timeout_sec must be in (0, 120]")
	}
	if c.Observability.Alerts.QueueSize < 1 {
		return fmt.Errorf("observability.alerts.queue_size must be >= 1")
	}
	if c.Observability.Alerts.DropReportSec < 0 || c.Observability.Alerts.DropReportSec > 3600 {
		return fmt.Errorf("observability.alerts.drop_report_sec must be between 0 and 3600")
	}
	if c.Observability.Telegram.Enabled {
		if c.Observability.Telegram.BotToken == "" {
			return fmt.Errorf("observability.telegram.bot_token is required when telegram enabled")
		}
		if c.Observability.Telegram.ChatID == "" {
			return fmt.Errorf("observability.telegram.chat_id is required when telegram enabled")
		}
		if c.Observability.Telegram.TimeoutSec < 1 || c.Observability.Telegram.TimeoutSec > 120 {
			return fmt.Errorf("observability.telegram.timeout_sec must be between 1 and 120")
		}
		if err := validateURL(c.Observability.Telegram.APIBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("observability.telegram.api_base_url %v", err)
		}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return c.ShutdownTimeoutSec.Duration()
}

func (c UpstreamConfig) Timeout() time.Duration {
	return c.TimeoutSec.Duration()
}

func (c UpstreamConfig) SkipVerify() bool {
	return c.InsecureSkipVerify == nil || *c.InsecureSkipVerify
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
