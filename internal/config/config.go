// Package config loads the server configuration from YAML, falling back
// to defaults when no file is present.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the protocol server family.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	LoginPort   int    `yaml:"login_port"`
	PersonaPort int    `yaml:"persona_port"`
	LobbyPort   int    `yaml:"lobby_port"`
	MCOTSPort   int    `yaml:"mcots_port"`
	PatchPort   int    `yaml:"patch_port"`

	// ExternalHost is the address handed to clients in shard records.
	ExternalHost string `yaml:"external_host"`

	// Security
	PrivateKeyPath string `yaml:"private_key_path"`
	CertPath       string `yaml:"cert_path"`

	// Sessions
	SessionTTLSeconds  int `yaml:"session_ttl_seconds"`
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`

	// Storage: "postgres" or "memory" (dev/test fixtures).
	Storage  string         `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`

	// Shards advertised by the patch/shard HTTP service.
	Shards []ShardEntry `yaml:"shards"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ShardEntry is one shard advertised to clients.
type ShardEntry struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Population  int    `yaml:"population"`
	MaxPersonas int    `yaml:"max_personas"`
}

// Default returns Server config with the legacy port assignments.
func Default() Server {
	return Server{
		BindAddress:        "0.0.0.0",
		LoginPort:          8226,
		PersonaPort:        8228,
		LobbyPort:          7003,
		MCOTSPort:          43300,
		PatchPort:          3000,
		ExternalHost:       "127.0.0.1",
		PrivateKeyPath:     "data/private_key.pem",
		CertPath:           "data/mcouniverse.crt",
		SessionTTLSeconds:  3600,
		IdleTimeoutSeconds: 300,
		Storage:            "memory",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "mcos",
			Password: "mcos",
			DBName:   "mcos",
			SSLMode:  "disable",
		},
		Shards: []ShardEntry{
			{
				ID:          44,
				Name:        "MC01",
				Description: "Motor City One",
				Population:  0,
				MaxPersonas: 1,
			},
		},
	}
}

// Load loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
