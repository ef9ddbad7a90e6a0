package reliability

import (
	"context"
	"errors"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/circuitbreaker"
	"streamgate/pkg/retry"

	"go.uber.org/zap"
)

// Provider is the full provider surface the wrapper guards.
type Provider interface {
	ports.IngressProvider
	ports.RoomProvider
}

// ProviderWrapper wraps the provider control API with retry logic and a
// circuit breaker. List and delete calls are idempotent and retried;
// CreateIngress is not, so it only goes through the breaker.
type ProviderWrapper struct {
	provider Provider
	logger   *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewProviderWrapper creates a new wrapper with retry and circuit breaker.
// A nil cbConfig disables the breaker; onStateChange may be nil.
func NewProviderWrapper(
	provider Provider,
	retryConfig retry.Config,
	cbConfig *circuitbreaker.Config,
	logger *zap.SugaredLogger,
	onStateChange func(name string, from, to circuitbreaker.State),
) *ProviderWrapper {
	userRetry := retryConfig.ShouldRetry
	retryConfig.ShouldRetry = func(err error) bool {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return false
		}
		if userRetry != nil {
			return userRetry(err)
		}
		return true
	}

	w := &ProviderWrapper{
		provider:    provider,
		logger:      logger,
		retryConfig: retryConfig,
	}
	if cbConfig == nil {
		return w
	}

	cfg := *cbConfig
	if cfg.Name == "" {
		cfg.Name = "livekit"
	}
	w.circuitBreaker = circuitbreaker.New(cfg)
	w.circuitBreaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Infow("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
		if onStateChange != nil {
			onStateChange(name, from, to)
		}
	})

	return w
}

func (w *ProviderWrapper) ListIngress(ctx context.Context, filter domain.IngressFilter) ([]domain.IngressResource, error) {
	return retry.RetryWithResult(ctx, w.retryConfig, func() ([]domain.IngressResource, error) {
		return guard(ctx, w.circuitBreaker, func() ([]domain.IngressResource, error) {
			return w.provider.ListIngress(ctx, filter)
		})
	})
}

// CreateIngress is never retried: a timed-out create may still have
// succeeded remotely, and the next provision's reconcile removes it.
func (w *ProviderWrapper) CreateIngress(ctx context.Context, opts domain.CreateIngressOptions) (*domain.IngressResource, error) {
	return guard(ctx, w.circuitBreaker, func() (*domain.IngressResource, error) {
		return w.provider.CreateIngress(ctx, opts)
	})
}

func (w *ProviderWrapper) DeleteIngress(ctx context.Context, ingressID string) error {
	return retry.Retry(ctx, w.retryConfig, func() error {
		_, err := guard(ctx, w.circuitBreaker, func() (struct{}, error) {
			return struct{}{}, w.provider.DeleteIngress(ctx, ingressID)
		})
		return err
	})
}

func (w *ProviderWrapper) ListRooms(ctx context.Context, names []string) ([]domain.RoomResource, error) {
	return retry.RetryWithResult(ctx, w.retryConfig, func() ([]domain.RoomResource, error) {
		return guard(ctx, w.circuitBreaker, func() ([]domain.RoomResource, error) {
			return w.provider.ListRooms(ctx, names)
		})
	})
}

func (w *ProviderWrapper) DeleteRoom(ctx context.Context, name string) error {
	return retry.Retry(ctx, w.retryConfig, func() error {
		_, err := guard(ctx, w.circuitBreaker, func() (struct{}, error) {
			return struct{}{}, w.provider.DeleteRoom(ctx, name)
		})
		return err
	})
}

func guard[T any](ctx context.Context, cb *circuitbreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}
	return circuitbreaker.ExecuteWithResult(ctx, cb, fn)
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (w *ProviderWrapper) GetCircuitBreakerStats() circuitbreaker.Stats {
	if w.circuitBreaker == nil {
		return circuitbreaker.Stats{}
	}
	return w.circuitBreaker.GetStats()
}

func (w *ProviderWrapper) CircuitBreakerState() circuitbreaker.State {
	if w.circuitBreaker == nil {
		return circuitbreaker.StateClosed
	}
	return w.circuitBreaker.GetState()
}
