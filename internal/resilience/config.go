package resilience

import (
	"time"
)

// FromCircuitConfig converts config values to a CircuitBreakerConfig whose
// breaker trips only on transient errors.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	cfg.ShouldTrip = IsTransient
	return cfg
}
