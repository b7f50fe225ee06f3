package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/coopquest.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL enables the cross-instance snapshot relay when set.
	RedisURL string `env:"REDIS_URL"`
	// ContentDir overrides the embedded graphs, pools and catalog.
	ContentDir string `env:"CONTENT_DIR"`

	DebugEndpoints bool   `env:"DEBUG_ENDPOINTS" envDefault:"false"`
	AdminKeyHash   string `env:"ADMIN_KEY_HASH"`

	MinPlayers int    `env:"MIN_PLAYERS" envDefault:"2"`
	MaxPlayers int    `env:"MAX_PLAYERS" envDefault:"4"`
	StartNode  string `env:"START_NODE" envDefault:"start"`
	WaveNode   string `env:"WAVE_NODE" envDefault:"exp_wave"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.MinPlayers < 1 || cfg.MaxPlayers < cfg.MinPlayers {
		return nil, fmt.Errorf("invalid player bounds: min %d, max %d", cfg.MinPlayers, cfg.MaxPlayers)
	}
	if cfg.MaxPlayers > 4 {
		return nil, fmt.Errorf("MAX_PLAYERS %d exceeds the four roles", cfg.MaxPlayers)
	}
	return &cfg, nil
}
