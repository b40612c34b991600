package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DBConfig        `yaml:"database"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Queue     QueueConfig     `yaml:"queue"`
	Persister PersisterConfig `yaml:"persister"`
	Seed      SeedConfig      `yaml:"seed"`
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SessionsConfig holds connection registry settings.
type SessionsConfig struct {
	MaxPerUser int `yaml:"max_per_user"`
}

// RateLimitConfig holds message gateway admission settings.
type RateLimitConfig struct {
	MaxPerWindow int           `yaml:"max_per_window"`
	Window       time.Duration `yaml:"window"`
}

// QueueConfig holds the bounded hand-off queue settings.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// PersisterConfig holds batch persister settings.
type PersisterConfig struct {
	BatchSize int           `yaml:"batch_size"`
	IdleDelay time.Duration `yaml:"idle_delay"`
}

// SeedConfig controls the startup seed user.
type SeedConfig struct {
	UserName string `yaml:"user_name"`
}
