package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/infrastructure/repositories/memory"
	"streamgate/pkg/circuitbreaker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthChecker_CheckAll(t *testing.T) {
	h := NewHealthChecker()
	h.AddRepositoryCheck(memory.NewMemoryStreamRepository(), 0, time.Second)
	h.AddProviderCheck(pingerFunc(func(ctx context.Context) error { return nil }), 0, time.Second)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["repository"])
	assert.True(t, h.IsReady(context.Background()))

	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 0, 10*time.Millisecond)

	status = h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"])
	assert.Equal(t, "healthy", status.Checks["provider"])
}

func TestHealthChecker_BackgroundFailures(t *testing.T) {
	h := NewHealthChecker()
	h.AddProviderCheck(pingerFunc(func(ctx context.Context) error { return errors.New("unreachable") }), 5*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failures := make(chan string, 10)
	h.StartBackgroundChecks(ctx, func(name string, err error) {
		select {
		case failures <- name:
		default:
		}
	})

	select {
	case name := <-failures:
		assert.Equal(t, "provider", name)
	case <-time.After(time.Second):
		t.Fatal("background check never reported")
	}
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusCollector(reg)

	p.RecordProvision(domain.InputModeRTMP, "success", 200*time.Millisecond)
	p.RecordProvision(domain.InputModeRTMP, "success", 300*time.Millisecond)
	p.RecordProvision(domain.InputModeWHIP, "provider", time.Second)
	p.RecordReconcile(2, 1, 0)
	p.RecordWebhook(domain.EventIngressStarted, "applied")
	p.RecordWebhook("", "invalid")
	p.SetCircuitBreakerState("livekit", circuitbreaker.StateOpen)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.provisionsTotal.WithLabelValues("rtmp", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.provisionsTotal.WithLabelValues("whip", "provider")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.reconcileDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.reconcileSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.webhookEvents.WithLabelValues("unknown", "invalid")))
	assert.Equal(t, float64(circuitbreaker.StateOpen), testutil.ToFloat64(p.circuitBreakerState.WithLabelValues("livekit")))
}
