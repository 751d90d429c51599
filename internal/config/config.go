package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the call engine and relay server.
type Config struct {
	// ServerAddr is the listen address of the relay server, and the
	// base the client dials (ws:// and http:// derived from it).
	ServerAddr string `env:"CALLLINE_SERVER_ADDR" envDefault:"localhost:8080"`

	// RingTimeout bounds how long an unanswered call rings before it
	// auto-ends with a no-answer outcome.
	RingTimeout time.Duration `env:"CALLLINE_RING_TIMEOUT" envDefault:"45s"`

	// PollInterval is the cadence of the polling fallback when the
	// push channel is down.
	PollInterval time.Duration `env:"CALLLINE_POLL_INTERVAL" envDefault:"2s"`

	// PollWindow scopes polled reads to recent messages to bound cost.
	PollWindow time.Duration `env:"CALLLINE_POLL_WINDOW" envDefault:"60s"`

	// DedupCapacity bounds the set of already-processed message IDs.
	DedupCapacity int `env:"CALLLINE_DEDUP_CAPACITY" envDefault:"256"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
