// Package config provides YAML-based configuration loading for Taskyard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override name.
const EnvPrefix = "TASKYARD_"

// Config is the top-level Taskyard configuration, loaded from taskyard.yaml.
type Config struct {
	Owner    string         `yaml:"owner"`
	Database DatabaseConfig `yaml:"database"`
	Notify   NotifyConfig   `yaml:"notify"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig selects the store dialect and its connection settings.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password" env:"DATABASE_PASSWORD"`
	Name     string `yaml:"name"`
}

// NotifyConfig controls the digest scheduler.
type NotifyConfig struct {
	Schedule    string        `yaml:"schedule"`
	Workers     int           `yaml:"workers"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	Cooldown    time.Duration `yaml:"cooldown"`
	SendHour    *int          `yaml:"send_hour"`
	Timezone    string        `yaml:"timezone"`
	BaseURL     string        `yaml:"base_url"`
}

// GatewayConfig selects the chat platform digests are delivered through.
type GatewayConfig struct {
	Platform          string `yaml:"platform"`
	TelegramToken     string `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`
	SlackBotToken     string `yaml:"slack_bot_token" env:"SLACK_BOT_TOKEN"`
	DiscordBotToken   string `yaml:"discord_bot_token" env:"DISCORD_BOT_TOKEN"`
	MessagesPerMinute int    `yaml:"messages_per_minute"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig controls daemon logging. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads a YAML config file from path and returns a validated Config.
// Secrets may be overridden from TASKYARD_* environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location returns the time zone used for the digest send hour.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Notify.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "taskyard.db"
		}
	case "mysql":
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	case "postgres":
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.User == "" {
			c.Database.User = "postgres"
		}
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Name == "" && c.Owner != "" {
		c.Database.Name = "taskyard_" + c.Owner
	}

	if c.Notify.Schedule == "" {
		c.Notify.Schedule = "0 * * * *"
	}
	if c.Notify.Workers == 0 {
		c.Notify.Workers = 4
	}
	if c.Notify.SendTimeout == 0 {
		c.Notify.SendTimeout = 10 * time.Second
	}
	if c.Notify.Cooldown == 0 {
		c.Notify.Cooldown = 2 * time.Hour
	}
	if c.Notify.SendHour == nil {
		hour := 8
		c.Notify.SendHour = &hour
	}
	if c.Notify.Timezone == "" {
		c.Notify.Timezone = "Local"
	}

	if c.Gateway.MessagesPerMinute == 0 {
		c.Gateway.MessagesPerMinute = 20
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Owner == "" {
		errs = append(errs, "owner is required")
	}

	switch c.Database.Driver {
	case "sqlite":
	case "mysql", "postgres":
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql, postgres", c.Database.Driver))
	}

	if c.Notify.Workers < 0 {
		errs = append(errs, "notify.workers must be positive")
	}
	if c.Notify.SendTimeout < 0 {
		errs = append(errs, "notify.send_timeout must be positive")
	}
	if h := *c.Notify.SendHour; h < 0 || h > 23 {
		errs = append(errs, fmt.Sprintf("notify.send_hour %d is out of range 0-23", h))
	}
	if _, err := time.LoadLocation(c.Notify.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("notify.timezone %q is unknown", c.Notify.Timezone))
	}

	switch c.Gateway.Platform {
	case "":
	case "telegram":
		if c.Gateway.TelegramToken == "" {
			errs = append(errs, "gateway.telegram_token is required for telegram")
		}
	case "slack":
		if c.Gateway.SlackBotToken == "" {
			errs = append(errs, "gateway.slack_bot_token is required for slack")
		}
	case "discord":
		if c.Gateway.DiscordBotToken == "" {
			errs = append(errs, "gateway.discord_bot_token is required for discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("gateway.platform %q is not one of telegram, slack, discord", c.Gateway.Platform))
	}
	if c.Gateway.MessagesPerMinute < 0 {
		errs = append(errs, "gateway.messages_per_minute must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
