package services

import (
	"context"
	"net/http"
	"strings"

	"streamgate/internal/core/ports"
	"streamgate/pkg/tracing"
	"streamgate/pkg/validation"

	"go.uber.org/zap"
)

// WebhookService applies verified provider lifecycle events to the stream
// records. Transitions are plain assignments, so redelivery is harmless.
type WebhookService struct {
	verifier    ports.WebhookVerifier
	streams     ports.StreamRepository
	invalidator ports.StreamKeysInvalidator
	events      ports.EventPublisher
	metrics     ports.Metrics
	logger      *zap.SugaredLogger
}

func NewWebhookService(
	verifier ports.WebhookVerifier,
	streams ports.StreamRepository,
	invalidator ports.StreamKeysInvalidator,
	events ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
) *WebhookService {
	return &WebhookService{
		verifier:    verifier,
		streams:     streams,
		invalidator: invalidator,
		events:      events,
		metrics:     metrics,
		logger:      logger,
	}
}

// Handle returns the HTTP status to answer the provider with. 5xx makes
// the provider redeliver.
func (s *WebhookService) Handle(ctx context.Context, body []byte, authorization string) int {
	ctx, span := tracing.TraceWebhook(ctx)
	defer span.End()

	if strings.TrimSpace(authorization) == "" {
		s.logger.Warnw("webhook rejected", "reason", "missing authorization header")
		s.metrics.RecordWebhook("", "unauthenticated")
		return http.StatusBadRequest
	}

	event, err := s.verifier.VerifyAndParse(ctx, body, authorization)
	if err != nil {
		s.logger.Warnw("webhook verification failed", "error", err)
		tracing.RecordError(ctx, err)
		s.metrics.RecordWebhook("", "invalid")
		return http.StatusInternalServerError
	}
	tracing.AddSpanAttributes(ctx,
		tracing.EventKindKey.String(string(event.Kind)),
		tracing.IngressIDKey.String(event.IngressID),
	)

	live, ok := event.LiveTransition()
	if !ok {
		s.logger.Debugw("ignoring webhook event", "event", event.Kind, "event_id", event.ID)
		s.metrics.RecordWebhook(event.Kind, "ignored")
		return http.StatusOK
	}
	if err := validation.ValidateIngressID(event.IngressID); err != nil {
		s.logger.Warnw("ingress event with unusable ingress id", "event", event.Kind, "event_id", event.ID, "error", err)
		s.metrics.RecordWebhook(event.Kind, "ignored")
		return http.StatusOK
	}

	matched, err := s.streams.SetLiveByIngressID(ctx, event.IngressID, live)
	if err != nil {
		s.logger.Errorw("failed to apply webhook transition",
			"event", event.Kind,
			"ingress_id", event.IngressID,
			"error", err,
		)
		tracing.RecordError(ctx, err)
		s.metrics.RecordWebhook(event.Kind, "storage_error")
		return http.StatusInternalServerError
	}
	if !matched {
		s.logger.Warnw("no stream record for ingress",
			"event", event.Kind,
			"ingress_id", event.IngressID,
			"room_name", event.RoomName,
		)
		s.metrics.RecordWebhook(event.Kind, "unmatched")
		return http.StatusOK
	}

	s.logger.Infow("stream live state updated",
		"ingress_id", event.IngressID,
		"is_live", live,
	)
	s.metrics.RecordWebhook(event.Kind, "applied")
	s.propagate(ctx, event.IngressID, live)
	return http.StatusOK
}

// propagate refreshes cached views for the record's owner. The update is
// already durable, so failures here only delay freshness.
func (s *WebhookService) propagate(ctx context.Context, ingressID string, live bool) {
	record, err := s.streams.GetByIngressID(ctx, ingressID)
	if err != nil {
		s.logger.Debugw("could not resolve record owner for cache refresh", "ingress_id", ingressID, "error", err)
		return
	}

	s.invalidator.InvalidateStreamKeys(ctx, record.UserID)
	if s.events != nil {
		if err := s.events.PublishLiveChanged(ctx, record.UserID, live); err != nil {
			s.logger.Warnw("failed to publish live change", "identity", record.UserID, "error", err)
		}
	}
}
