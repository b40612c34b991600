package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr              = ":8080"
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultMaxPerUser        = 5
	DefaultMaxPerWindow      = 100
	DefaultWindow            = time.Minute
	DefaultQueueCapacity     = 1000
	DefaultBatchSize         = 10
	DefaultIdleDelay         = 50 * time.Millisecond
	DefaultSeedUserName      = "Alice"
)

func (c *RelayConfig) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = DefaultIdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	if c.Sessions.MaxPerUser == 0 {
		c.Sessions.MaxPerUser = DefaultMaxPerUser
	}

	if c.RateLimit.MaxPerWindow == 0 {
		c.RateLimit.MaxPerWindow = DefaultMaxPerWindow
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = DefaultWindow
	}

	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = DefaultQueueCapacity
	}

	if c.Persister.BatchSize == 0 {
		c.Persister.BatchSize = DefaultBatchSize
	}
	if c.Persister.IdleDelay == 0 {
		c.Persister.IdleDelay = DefaultIdleDelay
	}

	if c.Seed.UserName == "" {
		c.Seed.UserName = DefaultSeedUserName
	}
}
