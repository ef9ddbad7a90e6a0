package reliability

import (
	"streamgate/pkg/circuitbreaker"
	"streamgate/pkg/config"
	"streamgate/pkg/retry"
)

// RetryConfigFrom maps the retry section of the service config.
func RetryConfigFrom(cfg *config.Config) retry.Config {
	return retry.Config{
		Enabled:      cfg.Retry.Enabled,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   cfg.Retry.Multiplier,
		Jitter:       cfg.Retry.Jitter,
	}
}

// CircuitBreakerConfigFrom returns nil when the breaker is disabled.
func CircuitBreakerConfigFrom(cfg *config.Config) *circuitbreaker.Config {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}
	return &circuitbreaker.Config{
		Name:                "livekit",
		FailureThreshold:    cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold:    cfg.CircuitBreaker.SuccessThreshold,
		Timeout:             cfg.CircuitBreaker.Timeout,
		MaxRequestsHalfOpen: cfg.CircuitBreaker.MaxRequestsHalfOpen,
	}
}
