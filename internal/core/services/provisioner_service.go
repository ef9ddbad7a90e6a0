package services

import (
	"context"
	"errors"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/tracing"
	"streamgate/pkg/utils"

	"go.uber.org/zap"
)

// ProvisionerService issues fresh ingest credentials for a broadcaster.
// Each call resets the identity's remote resources first, so at most one
// ingress exists per identity after it returns.
type ProvisionerService struct {
	streams     ports.StreamRepository
	ingress     ports.IngressProvider
	reconciler  ports.ResourceReconciler
	locker      ports.IdentityLocker
	invalidator ports.StreamKeysInvalidator
	events      ports.EventPublisher // nil when cross-instance events are off
	metrics     ports.Metrics
	logger      *zap.SugaredLogger
}

func NewProvisionerService(
	streams ports.StreamRepository,
	ingress ports.IngressProvider,
	reconciler ports.ResourceReconciler,
	locker ports.IdentityLocker,
	invalidator ports.StreamKeysInvalidator,
	events ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
) *ProvisionerService {
	return &ProvisionerService{
		streams:     streams,
		ingress:     ingress,
		reconciler:  reconciler,
		locker:      locker,
		invalidator: invalidator,
		events:      events,
		metrics:     metrics,
		logger:      logger,
	}
}

// BuildIngressOptions derives the create request for a broadcaster. WHIP
// input passes media through untouched; RTMP is transcoded into the
// layered H.264 and Opus presets.
func BuildIngressOptions(b domain.Broadcaster, mode domain.InputMode) domain.CreateIngressOptions {
	label := b.Label()
	opts := domain.CreateIngressOptions{
		InputMode:           mode,
		Name:                label,
		RoomName:            string(b.ID),
		ParticipantIdentity: string(b.ID),
		ParticipantName:     label,
	}

	switch mode {
	case domain.InputModeWHIP:
		opts.BypassTranscoding = true
	case domain.InputModeRTMP:
		opts.Video = &domain.VideoOptions{Source: domain.TrackSourceCamera, Preset: domain.DefaultVideoPreset}
		opts.Audio = &domain.AudioOptions{Source: domain.TrackSourceMicrophone, Preset: domain.DefaultAudioPreset}
	}
	return opts
}

func (s *ProvisionerService) Provision(ctx context.Context, b domain.Broadcaster, mode domain.InputMode) (creds *domain.Credentials, err error) {
	start := time.Now()
	ctx, span := tracing.TraceProvision(ctx, string(b.ID), string(mode))
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(domain.ProvisionErrorKindOf(err))
			tracing.RecordError(ctx, err)
		}
		s.metrics.RecordProvision(mode, outcome, time.Since(start))
		span.End()
	}()

	if !b.ID.Valid() {
		return nil, domain.NewProvisionError(domain.ProvisionErrInvalidInput, "missing broadcaster identity", domain.ErrInvalidIdentity)
	}
	if mode != domain.InputModeRTMP && mode != domain.InputModeWHIP {
		return nil, domain.NewProvisionError(domain.ProvisionErrInvalidInput, "unsupported input mode "+string(mode), domain.ErrInvalidInputMode)
	}

	// No remote resource is created for an identity without a record.
	if _, err := s.streams.GetByUserID(ctx, b.ID); err != nil {
		return nil, storageError(err)
	}

	lease, err := s.locker.Acquire(ctx, b.ID)
	if err != nil {
		s.logger.Warnw("identity lock not acquired", "identity", b.ID, "error", err)
		return nil, domain.NewProvisionError(domain.ProvisionErrLocked, "another provisioning request is in progress", err)
	}

	creds, err = s.provisionLocked(ctx, b, mode)

	if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
		s.logger.Warnw("failed to release identity lock", "identity", b.ID, "error", relErr)
	}
	if err != nil {
		return nil, err
	}

	s.invalidator.InvalidateStreamKeys(ctx, b.ID)
	if s.events != nil {
		if pubErr := s.events.PublishStreamKeysInvalidated(ctx, b.ID); pubErr != nil {
			s.logger.Warnw("failed to publish stream keys invalidation", "identity", b.ID, "error", pubErr)
		}
	}

	s.logger.Infow("provisioned ingress",
		"identity", b.ID,
		"input_mode", mode,
		"ingress_id", creds.IngressID,
		"stream_key", utils.MaskSecret(creds.StreamKey, 4),
	)
	return creds, nil
}

func (s *ProvisionerService) provisionLocked(ctx context.Context, b domain.Broadcaster, mode domain.InputMode) (*domain.Credentials, error) {
	if _, err := s.reconciler.Reconcile(ctx, b.ID); err != nil {
		return nil, domain.NewProvisionError(domain.ProvisionErrProvider, "failed to reset existing ingest resources", err)
	}

	res, err := s.ingress.CreateIngress(ctx, BuildIngressOptions(b, mode))
	if err != nil {
		return nil, domain.NewProvisionError(domain.ProvisionErrProvider, "failed to create ingress", err)
	}
	if res == nil {
		return nil, domain.NewProvisionError(domain.ProvisionErrIncomplete, "no response", nil)
	}
	if res.IngressID == "" || res.URL == "" || res.StreamKey == "" {
		// The half-created ingress is removed by the next attempt's reconcile.
		s.logger.Errorw("provider returned ingress without credentials",
			"identity", b.ID,
			"ingress_id", res.IngressID,
			"has_url", res.URL != "",
			"has_stream_key", res.StreamKey != "",
		)
		return nil, domain.NewProvisionError(domain.ProvisionErrIncomplete, "missing credentials", nil)
	}

	creds := &domain.Credentials{
		IngressID: res.IngressID,
		ServerURL: res.URL,
		StreamKey: res.StreamKey,
	}
	if err := s.streams.UpdateIngress(ctx, b.ID, *creds); err != nil {
		return nil, storageError(err)
	}
	return creds, nil
}

func storageError(err error) error {
	if errors.Is(err, domain.ErrStreamNotFound) {
		return domain.NewProvisionError(domain.ProvisionErrPrecondition, "record not found", err)
	}
	return domain.NewProvisionError(domain.ProvisionErrStorage, "stream record storage failed", err)
}
