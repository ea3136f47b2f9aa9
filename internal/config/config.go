// Package config loads client configuration from a YAML file and/or
// environment variables. Sources, in descending priority: an explicit path
// given by the embedding application, the CONFIG_PATH environment variable,
// then environment variables alone.
package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// Config is the root configuration for the session client.
type Config struct {
	// BaseURL of the backend API, e.g. "https://api.example.com".
	BaseURL string `yaml:"base_url" env:"API_BASE_URL" env-required:"true"`
	// HTTPTimeout bounds every backend call, the refresh exchange included.
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"API_HTTP_TIMEOUT" env-default:"30s"`
	// TokenDBPath is the file backing the persistent refresh-token scope.
	// Empty keeps both tokens in memory: nothing survives the process.
	TokenDBPath string `yaml:"token_db_path" env:"TOKEN_DB_PATH" env-default:""`
	// Env names the running environment, for log annotation only.
	Env string `yaml:"env" env:"ENV" env-default:"local"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] config file %q", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, errors.Wrap(err, "[config.Load] read config")
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] read env")
	}
	return &cfg, nil
}

// MustLoad is Load with panic on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
