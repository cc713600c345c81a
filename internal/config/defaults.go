package config

import "time"

// DemoAPIKey is the archive's public, heavily rate-limited key.
const DemoAPIKey = "DEMO_KEY"

// DefaultImageHost serves every picture the archive links to.
const DefaultImageHost = "apod.nasa.gov"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Archive.BaseURL == "" {
		cfg.Archive.BaseURL = "https://api.nasa.gov"
	}
	if cfg.Archive.APIKey == "" {
		cfg.Archive.APIKey = DemoAPIKey
	}
	if cfg.Archive.UserAgent == "" {
		cfg.Archive.UserAgent = "stargaze"
	}
	if len(cfg.Archive.ImageHosts) == 0 {
		cfg.Archive.ImageHosts = []string{DefaultImageHost}
	}
	if cfg.Gallery.MinRevealDelay == 0 {
		cfg.Gallery.MinRevealDelay = 1000 * time.Millisecond
	}
	if cfg.Gallery.MaxRevealDelay == 0 {
		cfg.Gallery.MaxRevealDelay = 2500 * time.Millisecond
	}
	if cfg.Gallery.MaxRevealDelay < cfg.Gallery.MinRevealDelay {
		cfg.Gallery.MaxRevealDelay = cfg.Gallery.MinRevealDelay
	}
	if cfg.Modal.HorizontalPadding == 0 {
		cfg.Modal.HorizontalPadding = 120
	}
	if cfg.Modal.VerticalPadding == 0 {
		cfg.Modal.VerticalPadding = 220
	}
	if cfg.Modal.FitFraction == 0 {
		cfg.Modal.FitFraction = 0.90
	}
	if cfg.Modal.CeilingFraction == 0 {
		cfg.Modal.CeilingFraction = 0.98
	}
	if cfg.Modal.DefaultViewportWidth == 0 {
		cfg.Modal.DefaultViewportWidth = 1280
	}
	if cfg.Modal.DefaultViewportHeight == 0 {
		cfg.Modal.DefaultViewportHeight = 800
	}
}
