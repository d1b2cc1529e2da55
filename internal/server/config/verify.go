package config

import (
	"errors"
	"fmt"
)

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.Server.ReadBufferKiB < 1 {
		return errors.New("server.read_buffer_kib must be at least 1")
	}
	if cfg.Limits.MaxConnections < 1 {
		return errors.New("limits.max_connections must be at least 1")
	}
	if cfg.Limits.RateLimit < 0 {
		return errors.New("limits.rate_limit must not be negative")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	return nil
}
