package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = ":8080"
	defaultTokenExpiryHours = 168 // 7 days
	defaultBcryptCost       = 12
)

// Config holds the application's configuration. It is loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	Server struct {
		Port  string `yaml:"port"`
		Debug bool   `yaml:"debug"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret        string `yaml:"jwt_secret"`
		TokenExpiryHours int64  `yaml:"token_expiry_hours"`
		BcryptCost       int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
}

// TokenExpiry returns the configured token lifetime.
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.Auth.TokenExpiryHours) * time.Hour
}

// LoadConfig reads configuration from the specified YAML file. Secrets may
// be overridden via the JWT_SECRET and DATABASE_URL environment variables.
// A missing signing secret is a fatal configuration error: the process
// refuses to start rather than sign tokens with an empty key.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}

	applyDefaults(config)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == "" {
		config.Server.Port = defaultPort
	}
	if config.Auth.TokenExpiryHours <= 0 {
		config.Auth.TokenExpiryHours = defaultTokenExpiryHours
	}
	if config.Auth.BcryptCost <= 0 {
		config.Auth.BcryptCost = defaultBcryptCost
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required (or set JWT_SECRET)")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required (or set DATABASE_URL)")
	}
	return nil
}
