// Package config defines the server configuration structure.
package config

// ServerConfig is the root configuration for walrus-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Limits  LimitsSection  `koanf:"limits"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the protocol listener.
type ServerSection struct {
	// Addr is the TCP listen address.
	Addr string `koanf:"addr"`

	// ReadBufferKiB is the initial per-connection receive buffer
	// capacity in KiB.
	ReadBufferKiB int `koanf:"read_buffer_kib"`
}

// LimitsSection configures admission limits.
type LimitsSection struct {
	// MaxConnections caps the number of simultaneously served
	// connections.
	MaxConnections int `koanf:"max_connections"`

	// RateLimit is the maximum number of commands per second per client
	// IP. Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `koanf:"level"`

	// Format is the output format (json, text).
	Format string `koanf:"format"`
}
