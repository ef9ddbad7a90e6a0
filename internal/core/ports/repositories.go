package ports

import (
	"context"

	"streamgate/internal/core/domain"
)

type StreamRepository interface {
	Create(ctx context.Context, record *domain.StreamRecord) error
	GetByUserID(ctx context.Context, userID domain.BroadcasterID) (*domain.StreamRecord, error)
	GetByIngressID(ctx context.Context, ingressID string) (*domain.StreamRecord, error)
	// UpdateIngress writes all three credential fields in one statement.
	UpdateIngress(ctx context.Context, userID domain.BroadcasterID, creds domain.Credentials) error
	// SetLiveByIngressID reports whether any record matched.
	SetLiveByIngressID(ctx context.Context, ingressID string, live bool) (bool, error)
	HealthCheck(ctx context.Context) error
}
