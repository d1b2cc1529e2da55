package config

// Default configuration values.
const (
	DefaultAddr          = "127.0.0.1:6379"
	DefaultReadBufferKiB = 16

	DefaultMaxConnections = 1000
	DefaultRateLimit      = 0 // disabled

	DefaultMetricsAddr = "127.0.0.1:2112"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:          DefaultAddr,
			ReadBufferKiB: DefaultReadBufferKiB,
		},
		Limits: LimitsSection{
			MaxConnections: DefaultMaxConnections,
			RateLimit:      DefaultRateLimit,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
