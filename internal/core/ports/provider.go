package ports

import (
	"context"

	"streamgate/internal/core/domain"
)

type IngressProvider interface {
	ListIngress(ctx context.Context, filter domain.IngressFilter) ([]domain.IngressResource, error)
	CreateIngress(ctx context.Context, opts domain.CreateIngressOptions) (*domain.IngressResource, error)
	DeleteIngress(ctx context.Context, ingressID string) error
}

type RoomProvider interface {
	ListRooms(ctx context.Context, names []string) ([]domain.RoomResource, error)
	DeleteRoom(ctx context.Context, name string) error
}

// WebhookVerifier authenticates a raw webhook body against its
// Authorization header and decodes it.
type WebhookVerifier interface {
	VerifyAndParse(ctx context.Context, body []byte, authorization string) (*domain.WebhookEvent, error)
}
