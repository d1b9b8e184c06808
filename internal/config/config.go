package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/BurntSushi/toml"
)

const (
	DefaultUpstreamBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultUpstreamTimeout = 15 * time.Second
)

type Config struct {
	Environment string `toml:"-"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// routes are mounted below this prefix, e.g. "/api"
	APIPrefix      string   `toml:"api_prefix"`
	AllowedOrigins []string `toml:"allowed_origins"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`

	// persisted state
	AccountsFilePath string `toml:"accounts_file_path"`
	AuthFilePath     string `toml:"auth_file_path"`

	// upstream (cloudflare api)
	UpstreamBaseURL string   `toml:"upstream_base_url"`
	UpstreamTimeout Duration `toml:"upstream_timeout"`

	// redis is only used for login rate limiting; empty host disables it
	RedisHost                   string `toml:"redis_host"`
	RedisPort                   string `toml:"redis_port"`
	LoginRateLimitAllowedPerMin int    `toml:"login_rate_limit_allowed_per_min"`
	// reverse proxies (ips or cidrs) whose X-Real-Ip / X-Forwarded-For are honored
	TrustedProxies []string `toml:"trusted_proxies"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
}

// Duration lets TOML carry values like "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Toml struct {
	Development *Config `toml:"development"`
	Production  *Config `toml:"production"`
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env,
// with defaults filled in for the fields left empty.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	cfg.Environment = strings.ToLower(env)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 3005
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.AccountsFilePath == "" {
		c.AccountsFilePath = "accounts.json"
	}
	if c.AuthFilePath == "" {
		c.AuthFilePath = "auth.toml"
	}
	if c.UpstreamBaseURL == "" {
		c.UpstreamBaseURL = DefaultUpstreamBaseURL
	}
	if c.UpstreamTimeout.Duration <= 0 {
		c.UpstreamTimeout.Duration = DefaultUpstreamTimeout
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.LoginRateLimitAllowedPerMin <= 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "9100"
	}
	c.APIPrefix = strings.TrimRight(c.APIPrefix, "/")
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with '/': %s", c.APIPrefix)
	}
	if !strings.HasPrefix(c.UpstreamBaseURL, "http://") && !strings.HasPrefix(c.UpstreamBaseURL, "https://") {
		return fmt.Errorf("invalid upstream base url: %s", c.UpstreamBaseURL)
	}
	if _, err := pkg.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return err
	}
	return nil
}
