package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the ledger circuit breaker.
type BreakerConfig struct {
	MaxFailures  uint32        // consecutive failures before opening
	FailureRatio float64       // failure ratio that opens the breaker once MinRequests is reached
	MinRequests  uint32        // requests per interval before FailureRatio applies
	OpenTimeout  time.Duration // time spent open before trying half-open
	Interval     time.Duration // period after which closed-state counts reset
	HalfOpenMax  uint32        // requests allowed through while half-open
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:  5,
		FailureRatio: 0.5,
		MinRequests:  10,
		OpenTimeout:  30 * time.Second,
		Interval:     60 * time.Second,
		HalfOpenMax:  1,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.MaxFailures == 0 {
		c.MaxFailures = d.MaxFailures
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = d.FailureRatio
	}
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = d.OpenTimeout
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.HalfOpenMax == 0 {
		c.HalfOpenMax = d.HalfOpenMax
	}
	return c
}

func newBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMax,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.MaxFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		// caller cancellation does not count as a ledger failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Ledger circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

// isBreakerRejection reports whether err came from the breaker refusing the call.
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
