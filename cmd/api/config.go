package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stakeworks/wagerd/internal/config"
	"github.com/stakeworks/wagerd/internal/games/baccarat"
	"github.com/stakeworks/wagerd/internal/games/blackjack"
	"github.com/stakeworks/wagerd/internal/games/mines"
	"github.com/stakeworks/wagerd/internal/games/slots"
	"github.com/stakeworks/wagerd/internal/risk"
	"github.com/stakeworks/wagerd/pkg/envconf"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Postgres config.PostgresConfig
	Engine   config.EngineConfig
	Risk     risk.Config

	Slots     slots.Config
	Mines     mines.Config
	Baccarat  baccarat.Config
	Blackjack blackjack.Config
}

// loadConfig seeds the game defaults before reading the environment. The
// bias probability fields are not env-mapped, so the seeded values survive
// the load; everything else is overwritten from env or envDefault.
func loadConfig() (*apiConfig, error) {
	cfg := &apiConfig{
		Slots:     slots.DefaultConfig(),
		Mines:     mines.DefaultConfig(),
		Baccarat:  baccarat.DefaultConfig(),
		Blackjack: blackjack.DefaultConfig(),
	}

	if err := envconf.Load(cfg); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg.Mines.Normalize()

	return cfg, nil
}
