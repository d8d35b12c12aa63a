package config

import "time"

// Default configuration values.
const (
	DefaultAddr           = "127.0.0.1:8000"
	DefaultWorkers        = 2
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultMaxHeaderBytes = 1 << 20
	DefaultQueueCapacity  = 1024

	DefaultSessionTTL    = 30 * time.Minute
	DefaultCheckInterval = 5 * time.Second
	DefaultCookieName    = "2iBXdhW9rQxbnDdNQk9KdjiytM9X"

	DefaultRateBurst      = 20
	DefaultCommandTimeout = 2 * time.Second

	DefaultStateGCInterval = 10 * time.Minute

	DefaultMetricsPath = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:           DefaultAddr,
			Workers:        DefaultWorkers,
			PollInterval:   DefaultPollInterval,
			QueueCapacity:  DefaultQueueCapacity,
			ReadTimeout:    DefaultReadTimeout,
			WriteTimeout:   DefaultWriteTimeout,
			MaxBodyBytes:   DefaultMaxBodyBytes,
			MaxHeaderBytes: DefaultMaxHeaderBytes,
		},
		Session: SessionSection{
			TTL:           DefaultSessionTTL,
			CheckInterval: DefaultCheckInterval,
			CookieName:    DefaultCookieName,
		},
		RPC: RPCSection{
			RateBurst:      DefaultRateBurst,
			CommandTimeout: DefaultCommandTimeout,
		},
		State: StateSection{
			GCInterval: DefaultStateGCInterval,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
