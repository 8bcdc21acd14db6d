// Package config loads the CLI's environment-driven settings.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the tvws CLI. Credentials can also
// come from the auth discovery path; explicit env values win.
type Config struct {
	SessionID string `env:"TV_SESSIONID"`
	AuthToken string `env:"TV_AUTH_TOKEN"`

	Endpoint      string `env:"TVWS_ENDPOINT"`
	Origin        string `env:"TVWS_ORIGIN"`
	InitialBars   int    `env:"TVWS_INITIAL_BARS"`
	QueueCapacity int    `env:"TVWS_QUEUE_CAPACITY"`
	LogLevel      string `env:"TVWS_LOG_LEVEL" envDefault:"warn"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
