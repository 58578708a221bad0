package health

import "time"

// Config is the health-check configuration surface.
type Config struct {
	Interval                      time.Duration `env:"HEALTH_INTERVAL" env-default:"30s"`
	ConnectivityTimeout           time.Duration `env:"HEALTH_CONNECTIVITY_TIMEOUT" env-default:"5s"`
	IncludeCircuitBreakerState    bool          `env:"HEALTH_INCLUDE_CIRCUIT_BREAKER_STATE" env-default:"true"`
	IncludeConnectionPoolMetrics  bool          `env:"HEALTH_INCLUDE_CONNECTION_POOL_METRICS" env-default:"false"`
}

func (c Config) validate() error {
	if c.Interval < 5*time.Second {
		return errInvalidInterval
	}
	if c.ConnectivityTimeout <= 0 {
		return errInvalidConnectivityTimeout
	}
	return nil
}
