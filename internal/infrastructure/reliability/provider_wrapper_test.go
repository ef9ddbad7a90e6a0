package reliability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/pkg/circuitbreaker"
	"streamgate/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errFlaky = errors.New("503 service unavailable")

// countingProvider fails the first failures calls of every method.
type countingProvider struct {
	mu       sync.Mutex
	failures int
	calls    map[string]int
}

func newCountingProvider(failures int) *countingProvider {
	return &countingProvider{failures: failures, calls: make(map[string]int)}
}

func (p *countingProvider) hit(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if p.calls[op] <= p.failures {
		return errFlaky
	}
	return nil
}

func (p *countingProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *countingProvider) ListIngress(ctx context.Context, filter domain.IngressFilter) ([]domain.IngressResource, error) {
	if err := p.hit("list_ingress"); err != nil {
		return nil, err
	}
	return []domain.IngressResource{{IngressID: "IN_1", RoomName: filter.RoomName}}, nil
}

func (p *countingProvider) CreateIngress(ctx context.Context, opts domain.CreateIngressOptions) (*domain.IngressResource, error) {
	if err := p.hit("create_ingress"); err != nil {
		return nil, err
	}
	return &domain.IngressResource{IngressID: "IN_2"}, nil
}

func (p *countingProvider) DeleteIngress(ctx context.Context, ingressID string) error {
	return p.hit("delete_ingress")
}

func (p *countingProvider) ListRooms(ctx context.Context, names []string) ([]domain.RoomResource, error) {
	if err := p.hit("list_rooms"); err != nil {
		return nil, err
	}
	return []domain.RoomResource{{Name: names[0]}}, nil
}

func (p *countingProvider) DeleteRoom(ctx context.Context, name string) error {
	return p.hit("delete_room")
}

func testRetryConfig() retry.Config {
	return retry.Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func testBreakerConfig(threshold int) *circuitbreaker.Config {
	return &circuitbreaker.Config{
		Name:             "test",
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	}
}

func TestProviderWrapper_RetriesIdempotentCalls(t *testing.T) {
	p := newCountingProvider(2)
	w := NewProviderWrapper(p, testRetryConfig(), testBreakerConfig(10), zap.NewNop().Sugar(), nil)
	ctx := context.Background()

	items, err := w.ListIngress(ctx, domain.IngressFilter{RoomName: "alice"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 3, p.count("list_ingress"))

	rooms, err := w.ListRooms(ctx, []string{"alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", rooms[0].Name)

	require.NoError(t, w.DeleteIngress(ctx, "IN_1"))
	require.NoError(t, w.DeleteRoom(ctx, "alice"))
	assert.Equal(t, 3, p.count("delete_room"))
}

func TestProviderWrapper_NeverRetriesCreate(t *testing.T) {
	p := newCountingProvider(1)
	w := NewProviderWrapper(p, testRetryConfig(), testBreakerConfig(10), zap.NewNop().Sugar(), nil)

	_, err := w.CreateIngress(context.Background(), domain.CreateIngressOptions{InputMode: domain.InputModeRTMP})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, p.count("create_ingress"))
}

func TestProviderWrapper_OpenBreakerShortCircuits(t *testing.T) {
	p := newCountingProvider(100)
	var transitions []circuitbreaker.State
	w := NewProviderWrapper(p, testRetryConfig(), testBreakerConfig(2), zap.NewNop().Sugar(),
		func(name string, from, to circuitbreaker.State) {
			assert.Equal(t, "test", name)
			transitions = append(transitions, to)
		})
	ctx := context.Background()

	_, err := w.ListIngress(ctx, domain.IngressFilter{RoomName: "alice"})
	require.Error(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, w.CircuitBreakerState())
	assert.Equal(t, []circuitbreaker.State{circuitbreaker.StateOpen}, transitions)

	before := p.count("list_ingress")
	_, err = w.ListIngress(ctx, domain.IngressFilter{RoomName: "alice"})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, before, p.count("list_ingress"), "open breaker must not reach the provider or be retried")

	_, err = w.CreateIngress(ctx, domain.CreateIngressOptions{})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 0, p.count("create_ingress"))
}

func TestProviderWrapper_RetryDisabled(t *testing.T) {
	p := newCountingProvider(1)
	cfg := testRetryConfig()
	cfg.Enabled = false
	w := NewProviderWrapper(p, cfg, testBreakerConfig(10), zap.NewNop().Sugar(), nil)

	assert.ErrorIs(t, w.DeleteIngress(context.Background(), "IN_1"), errFlaky)
	assert.Equal(t, 1, p.count("delete_ingress"))
}

func TestProviderWrapper_BreakerDisabled(t *testing.T) {
	p := newCountingProvider(100)
	cfg := testRetryConfig()
	cfg.MaxAttempts = 2
	w := NewProviderWrapper(p, cfg, nil, zap.NewNop().Sugar(), nil)

	for i := 0; i < 5; i++ {
		_, err := w.ListRooms(context.Background(), []string{"alice"})
		assert.ErrorIs(t, err, errFlaky)
	}
	assert.Equal(t, 10, p.count("list_rooms"))
	assert.Equal(t, circuitbreaker.StateClosed, w.CircuitBreakerState())
}
