package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Fekinox/xo-grid/pkg/game"
)

// Config holds the server settings.
type Config struct {
	Addr             string
	AllowedOrigins   []string
	TokenTTL         time.Duration
	DefaultMode      game.Mode
	DefaultWinLength int
}

// Load reads the XO_* environment variables, falling back to defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:             ":3000",
		AllowedOrigins:   []string{"http://localhost:5173", "https://localhost:5173"},
		TokenTTL:         5 * time.Minute,
		DefaultMode:      game.Modes[0],
		DefaultWinLength: 3,
	}

	if v := os.Getenv("XO_ADDR"); v != "" {
		cfg.Addr = v
	}

	if v := os.Getenv("XO_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv("XO_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("XO_TOKEN_TTL: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("XO_TOKEN_TTL must be positive, got %s", d)
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("XO_DEFAULT_MODE"); v != "" {
		m, err := game.ParseMode(v)
		if err != nil {
			return nil, fmt.Errorf("XO_DEFAULT_MODE: %w", err)
		}
		cfg.DefaultMode = m
	}

	if v := os.Getenv("XO_DEFAULT_WIN_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("XO_DEFAULT_WIN_LENGTH: %w", err)
		}
		cfg.DefaultWinLength = n
	}
	if !cfg.DefaultMode.AllowsWinLength(cfg.DefaultWinLength) {
		return nil, fmt.Errorf("win length %d is not allowed on %s",
			cfg.DefaultWinLength, cfg.DefaultMode.Name)
	}

	return cfg, nil
}
