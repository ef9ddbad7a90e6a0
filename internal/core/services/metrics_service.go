package services

import (
	"sync"
	"time"

	"streamgate/internal/core/domain"
)

// MetricsService is the in-process metrics sink used when Prometheus is
// disabled and by tests.
type MetricsService struct {
	mu sync.RWMutex

	provisions       map[string]int // "<mode>/<outcome>"
	provisionLatency time.Duration
	reconcileDeleted int
	reconcileSkipped int
	reconcileFailed  int
	webhooks         map[string]int // "<kind>/<outcome>"
}

type MetricsSnapshot struct {
	Provisions       map[string]int
	ProvisionLatency time.Duration
	ReconcileDeleted int
	ReconcileSkipped int
	ReconcileFailed  int
	Webhooks         map[string]int
}

func NewMetricsService() *MetricsService {
	return &MetricsService{
		provisions: make(map[string]int),
		webhooks:   make(map[string]int),
	}
}

func (m *MetricsService) RecordProvision(mode domain.InputMode, outcome string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provisions[string(mode)+"/"+outcome]++
	m.provisionLatency += duration
}

func (m *MetricsService) RecordReconcile(deleted, skipped, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileDeleted += deleted
	m.reconcileSkipped += skipped
	m.reconcileFailed += failed
}

func (m *MetricsService) RecordWebhook(kind domain.EventKind, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[string(kind)+"/"+outcome]++
}

func (m *MetricsService) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		Provisions:       make(map[string]int, len(m.provisions)),
		ProvisionLatency: m.provisionLatency,
		ReconcileDeleted: m.reconcileDeleted,
		ReconcileSkipped: m.reconcileSkipped,
		ReconcileFailed:  m.reconcileFailed,
		Webhooks:         make(map[string]int, len(m.webhooks)),
	}
	for k, v := range m.provisions {
		snap.Provisions[k] = v
	}
	for k, v := range m.webhooks {
		snap.Webhooks[k] = v
	}
	return snap
}
