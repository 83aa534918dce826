package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ListenConfig holds the address the WebSocket server binds to
type ListenConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns the host:port listen address
func (l ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"sslmode"`
}

// DSN builds a lib/pq connection string from the database settings
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `json:"level"` // debug, info, warn, error, none
	Path  string `json:"path"`  // empty means console only
}

// Config represents the server configuration
type Config struct {
	Listen   ListenConfig   `json:"listen"`
	Database DatabaseConfig `json:"database"`
	Log      LogConfig      `json:"log"`

	// MaxConnections limits concurrently connected clients; 0 means unlimited
	MaxConnections int `json:"max_connections"`

	// MaxMessageSize limits inbound message size in bytes
	MaxMessageSize int64 `json:"max_message_size"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Host: "127.0.0.1",
			Port: 8181,
		},
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "protrack_user",
			Name:    "protrack",
			SSLMode: "disable",
		},
		Log: LogConfig{
			Level: "info",
			Path:  "logs/server.log",
		},
		MaxConnections: 100,
		MaxMessageSize: 64 * 1024,
	}
}

// Load reads configuration from a JSON file, applying defaults for any
// fields the file does not set. A missing file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("invalid listen port: %d", c.Listen.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max_message_size must be positive")
	}
	return nil
}

// Save writes the configuration to a JSON file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}
