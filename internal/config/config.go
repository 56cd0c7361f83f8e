// Package config loads bot configuration from environment variables.
//
// A .env file in the working directory is honored when present, which keeps
// local development setups out of the shell profile. All variables use the
// GRACEBOT_ prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Telegram
	BotToken      string `envconfig:"BOT_TOKEN" required:"true"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET" required:"true"`
	// Public URL the webhook is reachable at. When set the bot registers
	// {WebhookURL}/{WebhookSecret} with Telegram on startup.
	WebhookURL string `envconfig:"WEBHOOK_URL"`
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8443"`

	// GraceDB
	GraceDBURL      string        `envconfig:"GRACEDB_URL" default:"https://gracedb.ligo.org/api/"`
	SearchQuery     string        `envconfig:"SEARCH_QUERY" default:"Production"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"1h"`

	// Local state
	DataDir string `envconfig:"DATA_DIR" default:"~/.local/share/gracebot"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment, honoring a local .env file.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("gracebot", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	dir, err := ExpandHome(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dir

	return &cfg, nil
}

// ExpandHome expands a leading ~/ to the current user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// SubscribersPath is the file holding the durable subscriber set.
func (c *Config) SubscribersPath() string {
	return filepath.Join(c.DataDir, "subscribers.txt")
}

// AnnouncedPath is the file holding event ids already announced as new.
func (c *Config) AnnouncedPath() string {
	return filepath.Join(c.DataDir, "announced.txt")
}

// ImageDir is the root of the sky-map image cache.
func (c *Config) ImageDir() string {
	return filepath.Join(c.DataDir, "img")
}
