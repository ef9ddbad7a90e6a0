package monitoring

import (
	"context"
	"time"

	"streamgate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// Pinger is anything with a cheap reachability probe.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client redis.UniversalClient, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, interval, timeout)
}

// AddRepositoryCheck adds a stream repository health check
func (h *HealthChecker) AddRepositoryCheck(repo ports.StreamRepository, interval, timeout time.Duration) {
	h.AddCheck("repository", repo.HealthCheck, interval, timeout)
}

// AddProviderCheck probes the media provider's control API.
func (h *HealthChecker) AddProviderCheck(provider Pinger, interval, timeout time.Duration) {
	h.AddCheck("provider", provider.HealthCheck, interval, timeout)
}
