package ports

import (
	"context"
	"time"

	"streamgate/internal/core/domain"
)

type ResourceReconciler interface {
	Reconcile(ctx context.Context, identity domain.BroadcasterID) (domain.ReconcileReport, error)
	Plan(ctx context.Context, identity domain.BroadcasterID) (*domain.ReconcilePlan, error)
}

type IngressProvisioner interface {
	Provision(ctx context.Context, broadcaster domain.Broadcaster, mode domain.InputMode) (*domain.Credentials, error)
}

type WebhookSynchronizer interface {
	Handle(ctx context.Context, body []byte, authorization string) int
}

type StreamKeysService interface {
	GetStreamKeys(ctx context.Context, userID domain.BroadcasterID) (*domain.StreamKeys, error)
	StreamKeysInvalidator
}

type StreamKeysInvalidator interface {
	InvalidateStreamKeys(ctx context.Context, userID domain.BroadcasterID)
}

// Lease is a held identity lock.
type Lease interface {
	Release(ctx context.Context) error
}

type IdentityLocker interface {
	Acquire(ctx context.Context, identity domain.BroadcasterID) (Lease, error)
}

// EventPublisher fans state changes out to other instances.
type EventPublisher interface {
	PublishStreamKeysInvalidated(ctx context.Context, userID domain.BroadcasterID) error
	PublishLiveChanged(ctx context.Context, userID domain.BroadcasterID, live bool) error
}

type Metrics interface {
	RecordProvision(mode domain.InputMode, outcome string, duration time.Duration)
	RecordReconcile(deleted, skipped, failed int)
	RecordWebhook(kind domain.EventKind, outcome string)
}
