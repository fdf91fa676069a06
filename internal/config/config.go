package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" | "console"
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Addr          string        `yaml:"addr"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
	AdminAPIKey   string        `yaml:"admin_api_key"`
}

type YooKassaConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ShopID        string `yaml:"shop_id"`
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type CryptoPayConfig struct {
	Enabled  bool   `yaml:"enabled"`
	APIToken string `yaml:"api_token"`
}

type PaymentsConfig struct {
	YooKassa  YooKassaConfig  `yaml:"yookassa"`
	CryptoPay CryptoPayConfig `yaml:"cryptopay"`
	ReturnURL string          `yaml:"return_url"`
	// AutoPay gates saving payment methods and recurring renewal charges.
	AutoPay bool `yaml:"auto_pay"`
}

type PanelConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	RenewalInterval time.Duration `yaml:"renewal_interval"`
	RenewalWindow   time.Duration `yaml:"renewal_window"`
	OutboxInterval  time.Duration `yaml:"outbox_interval"`
	ExpiryInterval  time.Duration `yaml:"expiry_interval"`
}

type LimitsConfig struct {
	// Defaults for month-based grants that carry no tariff.
	TrafficLimitBytes *int64 `yaml:"traffic_limit_bytes"`
	DeviceLimit       *int   `yaml:"device_limit"`
}

type Config struct {
	Dev       bool            `yaml:"dev"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Payments  PaymentsConfig  `yaml:"payments"`
	Panel     PanelConfig     `yaml:"panel"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// Load reads the YAML config file, applies environment overrides for
// secrets, and validates required fields.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Web: WebConfig{Addr: ":8080", ShutdownGrace: 10 * time.Second},
		Scheduler: SchedulerConfig{
			RenewalInterval: time.Hour,
			RenewalWindow:   24 * time.Hour,
			OutboxInterval:  15 * time.Second,
			ExpiryInterval:  5 * time.Minute,
		},
		Panel: PanelConfig{Timeout: 10 * time.Second},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("YOOKASSA_SECRET_KEY"); v != "" {
		cfg.Payments.YooKassa.SecretKey = v
	}
	if v := os.Getenv("YOOKASSA_WEBHOOK_SECRET"); v != "" {
		cfg.Payments.YooKassa.WebhookSecret = v
	}
	if v := os.Getenv("CRYPTOPAY_API_TOKEN"); v != "" {
		cfg.Payments.CryptoPay.APIToken = v
	}
	if v := os.Getenv("PANEL_TOKEN"); v != "" {
		cfg.Panel.Token = v
	}
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Panel.BaseURL == "" {
		return fmt.Errorf("panel.base_url is required")
	}
	if c.Payments.YooKassa.Enabled && (c.Payments.YooKassa.ShopID == "" || c.Payments.YooKassa.SecretKey == "") {
		return fmt.Errorf("payments.yookassa credentials are required when enabled")
	}
	if c.Payments.CryptoPay.Enabled && c.Payments.CryptoPay.APIToken == "" {
		return fmt.Errorf("payments.cryptopay.api_token is required when enabled")
	}
	return nil
}
