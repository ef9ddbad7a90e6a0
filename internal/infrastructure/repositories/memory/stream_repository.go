package memory

import (
	"context"
	"sync"
	"time"

	"streamgate/internal/core/domain"
)

// MemoryStreamRepository keeps stream records in process. Each operation
// holds the mutex for its full duration, which makes point updates atomic.
type MemoryStreamRepository struct {
	mu        sync.RWMutex
	byUser    map[domain.BroadcasterID]*domain.StreamRecord
	byIngress map[string]domain.BroadcasterID
}

func NewMemoryStreamRepository() *MemoryStreamRepository {
	return &MemoryStreamRepository{
		byUser:    make(map[domain.BroadcasterID]*domain.StreamRecord),
		byIngress: make(map[string]domain.BroadcasterID),
	}
}

func (r *MemoryStreamRepository) Create(ctx context.Context, record *domain.StreamRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUser[record.UserID]; exists {
		return domain.ErrStreamExists
	}

	now := time.Now().UTC()
	stored := record.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.byUser[stored.UserID] = stored
	if stored.IngressID != nil {
		r.byIngress[*stored.IngressID] = stored.UserID
	}
	return nil
}

func (r *MemoryStreamRepository) GetByUserID(ctx context.Context, userID domain.BroadcasterID) (*domain.StreamRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.byUser[userID]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}
	return record.Clone(), nil
}

func (r *MemoryStreamRepository) GetByIngressID(ctx context.Context, ingressID string) (*domain.StreamRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, exists := r.byIngress[ingressID]
	if !exists {
		return nil, domain.ErrStreamNotFound
	}
	return r.byUser[userID].Clone(), nil
}

func (r *MemoryStreamRepository) UpdateIngress(ctx context.Context, userID domain.BroadcasterID, creds domain.Credentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.byUser[userID]
	if !exists {
		return domain.ErrStreamNotFound
	}

	if record.IngressID != nil {
		delete(r.byIngress, *record.IngressID)
	}
	ingressID, serverURL, streamKey := creds.IngressID, creds.ServerURL, creds.StreamKey
	record.IngressID = &ingressID
	record.ServerURL = &serverURL
	record.StreamKey = &streamKey
	record.UpdatedAt = time.Now().UTC()
	r.byIngress[ingressID] = userID
	return nil
}

func (r *MemoryStreamRepository) SetLiveByIngressID(ctx context.Context, ingressID string, live bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, exists := r.byIngress[ingressID]
	if !exists {
		return false, nil
	}
	record := r.byUser[userID]
	record.IsLive = live
	record.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryStreamRepository) HealthCheck(ctx context.Context) error {
	return nil
}
