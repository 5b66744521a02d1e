package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/clinical-safety-engine/internal/domain"
)

// ResilientConfig tunes the rate limiter and circuit breaker applied to a
// wrapped provider.
type ResilientConfig struct {
	RequestsPerSecond float64
	Burst             int
	BreakerRequests   uint32
	BreakerInterval   time.Duration
	BreakerTimeout    time.Duration
}

// DefaultResilientConfig returns conservative defaults.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		BreakerRequests:   3,
		BreakerInterval:   60 * time.Second,
		BreakerTimeout:    30 * time.Second,
	}
}

// Resilient wraps a provider with client-side rate limiting and a circuit
// breaker. Breaker or limiter rejections surface as dependency errors so the
// caller can distinguish them from provider output problems.
type Resilient struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewResilient wraps the provider.
func NewResilient(inner Provider, cfg ResilientConfig, logger *logrus.Logger) *Resilient {
	settings := gobreaker.Settings{
		Name:        "llm-provider",
		MaxRequests: cfg.BreakerRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Provider circuit breaker state changed")
		},
	}

	return &Resilient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Generate applies the rate limit and breaker around the inner call.
func (r *Resilient) Generate(ctx context.Context, req *domain.AIRequest) (*domain.AIResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, domain.NewDependencyError("llm_provider", "rate limit wait cancelled", err)
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Generate(ctx, req)
	})
	if err != nil {
		return nil, wrapProviderError(err)
	}

	resp, ok := result.(*domain.AIResponse)
	if !ok {
		return nil, domain.NewDependencyError("llm_provider", "unexpected provider result type", nil)
	}
	return resp, nil
}

// Stream applies the rate limit and breaker around opening the stream. The
// chunks themselves flow through untouched.
func (r *Resilient) Stream(ctx context.Context, req *domain.AIRequest) (<-chan string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, domain.NewDependencyError("llm_provider", "rate limit wait cancelled", err)
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Stream(ctx, req)
	})
	if err != nil {
		return nil, wrapProviderError(err)
	}

	chunks, ok := result.(<-chan string)
	if !ok {
		return nil, domain.NewDependencyError("llm_provider", "unexpected provider stream type", nil)
	}
	return chunks, nil
}

func wrapProviderError(err error) error {
	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return domain.NewDependencyError("llm_provider", "provider circuit open", err)
	default:
		return domain.NewDependencyError("llm_provider", fmt.Sprintf("provider call failed: %v", err), err)
	}
}
