package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/tracing"

	"go.uber.org/zap"
)

const defaultMaxParallelDeletes = 8

// ReconcilerService removes every ingress and room that belongs to a
// broadcaster identity. Resources that the provider returned for the
// identity but that fail the exact ownership check are never touched.
type ReconcilerService struct {
	ingress     ports.IngressProvider
	rooms       ports.RoomProvider
	metrics     ports.Metrics
	logger      *zap.SugaredLogger
	maxParallel int
}

func NewReconcilerService(
	ingress ports.IngressProvider,
	rooms ports.RoomProvider,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
	maxParallel int,
) *ReconcilerService {
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallelDeletes
	}
	return &ReconcilerService{
		ingress:     ingress,
		rooms:       rooms,
		metrics:     metrics,
		logger:      logger,
		maxParallel: maxParallel,
	}
}

// Plan lists the identity's resources and splits them into deletable and
// skipped without deleting anything.
func (s *ReconcilerService) Plan(ctx context.Context, identity domain.BroadcasterID) (*domain.ReconcilePlan, error) {
	if !identity.Valid() {
		return nil, domain.ErrInvalidIdentity
	}

	ingresses, err := s.ingress.ListIngress(ctx, domain.IngressFilter{RoomName: string(identity)})
	if err != nil {
		return nil, fmt.Errorf("list ingress for %s: %w", identity, err)
	}
	rooms, err := s.rooms.ListRooms(ctx, []string{string(identity)})
	if err != nil {
		return nil, fmt.Errorf("list rooms for %s: %w", identity, err)
	}

	plan := &domain.ReconcilePlan{Identity: identity}
	for _, in := range ingresses {
		if !in.OwnedBy(identity) {
			s.logger.Warnw("ownership safety violation, skipping ingress",
				"identity", identity,
				"ingress_id", in.IngressID,
				"room_name", in.RoomName,
				"participant_identity", in.ParticipantIdentity,
			)
			plan.Skipped = append(plan.Skipped, "ingress:"+in.IngressID)
			continue
		}
		plan.Ingresses = append(plan.Ingresses, in)
	}
	for _, room := range rooms {
		if !room.OwnedBy(identity) {
			s.logger.Warnw("ownership safety violation, skipping room",
				"identity", identity,
				"room_name", room.Name,
			)
			plan.Skipped = append(plan.Skipped, "room:"+room.Name)
			continue
		}
		plan.Rooms = append(plan.Rooms, room)
	}

	return plan, nil
}

// Reconcile deletes the identity's resources concurrently. A failed
// deletion is logged and reported but does not stop the sweep; the error
// is non-nil only when listing fails.
func (s *ReconcilerService) Reconcile(ctx context.Context, identity domain.BroadcasterID) (domain.ReconcileReport, error) {
	ctx, span := tracing.TraceReconcile(ctx, string(identity))
	defer span.End()

	plan, err := s.Plan(ctx, identity)
	if err != nil {
		tracing.RecordError(ctx, err)
		return domain.ReconcileReport{}, err
	}

	report := domain.ReconcileReport{Skipped: plan.Skipped}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxParallel)

	run := func(kind, id string, del func(context.Context) error, deleted *[]string) {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()

		if err := del(ctx); err != nil {
			s.logger.Errorw("failed to delete resource during reconcile",
				"identity", identity,
				"kind", kind,
				"id", id,
				"error", err,
			)
			mu.Lock()
			report.Failed = append(report.Failed, kind+":"+id)
			mu.Unlock()
			return
		}
		mu.Lock()
		*deleted = append(*deleted, id)
		mu.Unlock()
	}

	for _, in := range plan.Ingresses {
		id := in.IngressID
		wg.Add(1)
		go run("ingress", id, func(ctx context.Context) error {
			return s.ingress.DeleteIngress(ctx, id)
		}, &report.IngressesDeleted)
	}
	for _, room := range plan.Rooms {
		name := room.Name
		wg.Add(1)
		go run("room", name, func(ctx context.Context) error {
			return s.rooms.DeleteRoom(ctx, name)
		}, &report.RoomsDeleted)
	}
	wg.Wait()

	sort.Strings(report.IngressesDeleted)
	sort.Strings(report.RoomsDeleted)
	sort.Strings(report.Failed)

	deleted := len(report.IngressesDeleted) + len(report.RoomsDeleted)
	s.metrics.RecordReconcile(deleted, len(report.Skipped), len(report.Failed))

	if deleted > 0 || len(report.Failed) > 0 || len(report.Skipped) > 0 {
		s.logger.Infow("reconciled provider resources",
			"identity", identity,
			"ingresses_deleted", len(report.IngressesDeleted),
			"rooms_deleted", len(report.RoomsDeleted),
			"skipped", len(report.Skipped),
			"failed", len(report.Failed),
		)
	}

	return report, nil
}
