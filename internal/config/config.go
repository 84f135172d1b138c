package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"4m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// EngineConfig holds the wagering-engine runtime tunables that are not
// game or risk parameters.
type EngineConfig struct {
	// LockWait bounds how long one action waits for the per-account lock
	// before failing busy.
	LockWait time.Duration `env:"WAGER_LOCK_WAIT" envDefault:"2s"`
	// SessionIdleTimeout is the inactivity window after which an open
	// session is force-forfeited.
	SessionIdleTimeout time.Duration `env:"WAGER_SESSION_IDLE_TIMEOUT" envDefault:"15m"`
	// SweepInterval is how often the forfeiture sweeper runs.
	SweepInterval time.Duration `env:"WAGER_SWEEP_INTERVAL" envDefault:"1m"`
	// HookBuffer is the capacity of the side-effect hook queue.
	HookBuffer int `env:"WAGER_HOOK_BUFFER" envDefault:"256"`
}
