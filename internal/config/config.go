// Package config provides configuration loading and structs for the stargaze server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvAPIKey  = "APOD_API_KEY"
	EnvBaseURL = "APOD_BASE_URL"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Archive ArchiveConfig `yaml:"archive"`
	Gallery GalleryConfig `yaml:"gallery"`
	Modal   ModalConfig   `yaml:"modal"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ArchiveConfig holds settings for the picture-of-the-day archive.
// Timeout of zero means requests are bounded only by the caller's context.
// ImageHosts lists the hosts the server may fetch images from on a client's
// behalf; subdomains of a listed host are allowed too.
type ArchiveConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	ImageHosts []string      `yaml:"image_hosts"`
}

// AllowsImageURL reports whether raw is an http(s) URL on one of ImageHosts.
func (a ArchiveConfig) AllowsImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.User != nil {
		return false
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return false
	}
	for _, allowed := range a.ImageHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// GalleryConfig holds the bounds of the per-card reveal delay.
type GalleryConfig struct {
	MinRevealDelay time.Duration `yaml:"min_reveal_delay"`
	MaxRevealDelay time.Duration `yaml:"max_reveal_delay"`
}

// ModalConfig holds detail modal sizing parameters.
type ModalConfig struct {
	HorizontalPadding     float64 `yaml:"horizontal_padding"`
	VerticalPadding       float64 `yaml:"vertical_padding"`
	FitFraction           float64 `yaml:"fit_fraction"`
	CeilingFraction       float64 `yaml:"ceiling_fraction"`
	DefaultViewportWidth  float64 `yaml:"default_viewport_width"`
	DefaultViewportHeight float64 `yaml:"default_viewport_height"`
}

// Load reads and parses the config file at path, loads an optional .env file from the
// same directory, applies environment overrides, and fills defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	dotenv, err := readDotEnv(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	ApplyEnv(&cfg, dotenv)
	ApplyDefaults(&cfg)

	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides applied,
// reading an optional .env file from dir.
func Default(dir string) (*Config, error) {
	var cfg Config
	dotenv, err := readDotEnv(dir)
	if err != nil {
		return nil, err
	}
	ApplyEnv(&cfg, dotenv)
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// DotEnvPath returns the .env file read alongside a config file in dir.
func DotEnvPath(dir string) string {
	return filepath.Join(dir, ".env")
}

// readDotEnv parses dir/.env if it exists. The values are returned rather than
// exported into the process environment so that a later reload sees edits.
func readDotEnv(dir string) (map[string]string, error) {
	envPath := DotEnvPath(dir)
	if _, err := os.Stat(envPath); err != nil {
		return nil, nil
	}
	values, err := godotenv.Read(envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	return values, nil
}

// ApplyEnv overrides archive settings from the process environment, then from
// dotenv, when set. The process environment wins.
func ApplyEnv(cfg *Config, dotenv map[string]string) {
	if v := lookupEnv(EnvAPIKey, dotenv); v != "" {
		cfg.Archive.APIKey = v
	}
	if v := lookupEnv(EnvBaseURL, dotenv); v != "" {
		cfg.Archive.BaseURL = v
	}
}

func lookupEnv(key string, dotenv map[string]string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return dotenv[key]
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
