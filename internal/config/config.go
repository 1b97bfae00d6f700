package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config aggregates all application configuration.
type Config struct {
	Vault   string        `yaml:"vault" env:"VAULT"`
	Backend BackendConfig `yaml:"backend"`
	Mirror  MirrorConfig  `yaml:"mirror"`
}

type BackendConfig struct {
	Endpoint  string  `yaml:"endpoint" env:"SD_ENDPOINT" env-default:"http://localhost:7860"`
	Model     string  `yaml:"model" env:"SD_MODEL" env-default:"stabilityai/stable-diffusion-3.5-medium"`
	Precision string  `yaml:"precision" env:"SD_PRECISION" env-default:"float16"`
	Device    string  `yaml:"device" env:"SD_DEVICE" env-default:"mps"`
	Steps     int     `yaml:"steps" env:"SD_STEPS" env-default:"40"`
	Guidance  float64 `yaml:"guidance" env:"SD_GUIDANCE" env-default:"4.5"`
	Key       string  `yaml:"key" env:"SD_KEY"`
	// KeyParam names an SSM parameter holding the key; it wins over Key.
	KeyParam string `yaml:"key_param" env:"SD_KEY_PARAM"`
}

type MirrorConfig struct {
	Bucket       string `yaml:"bucket" env:"BUCKET"`
	Prefix       string `yaml:"prefix" env:"BUCKET_PREFIX"`
	Distribution string `yaml:"distribution" env:"DISTRIBUTION"`
}

// Enabled reports whether generated images are copied to S3.
func (m MirrorConfig) Enabled() bool {
	return m.Bucket != ""
}

// Load reads configuration from path, if given, and the environment.
// Priority: env vars > config file > defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Backend.Steps <= 0 {
		return errors.New("backend steps must be positive")
	}
	if c.Backend.Guidance < 0 {
		return errors.New("backend guidance must not be negative")
	}
	return nil
}
