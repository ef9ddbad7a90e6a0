package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/infrastructure/distributed"
	"streamgate/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type provisionerFixture struct {
	provider    *fakeProvider
	repo        *memory.MemoryStreamRepository
	invalidator *recordingInvalidator
	publisher   *recordingPublisher
	metrics     *MetricsService
	svc         *ProvisionerService
}

func newProvisionerFixture(t *testing.T, users ...domain.BroadcasterID) *provisionerFixture {
	t.Helper()
	f := &provisionerFixture{
		provider:    newFakeProvider(),
		repo:        memory.NewMemoryStreamRepository(),
		invalidator: &recordingInvalidator{},
		publisher:   newRecordingPublisher(),
		metrics:     NewMetricsService(),
	}
	for _, u := range users {
		require.NoError(t, f.repo.Create(context.Background(), &domain.StreamRecord{UserID: u}))
	}
	reconciler := NewReconcilerService(f.provider, f.provider, f.metrics, testLogger(), 4)
	locker := distributed.NewMemoryIdentityLocker(time.Minute, 2*time.Second)
	f.svc = NewProvisionerService(f.repo, f.provider, reconciler, locker, f.invalidator, f.publisher, f.metrics, testLogger())
	return f
}

func alice() domain.Broadcaster {
	return domain.Broadcaster{ID: "alice", DisplayName: "Alice Live"}
}

func TestBuildIngressOptions(t *testing.T) {
	rtmp := BuildIngressOptions(alice(), domain.InputModeRTMP)
	assert.Equal(t, "Alice Live", rtmp.Name)
	assert.Equal(t, "alice", rtmp.RoomName)
	assert.Equal(t, "alice", rtmp.ParticipantIdentity)
	assert.Equal(t, "Alice Live", rtmp.ParticipantName)
	assert.False(t, rtmp.BypassTranscoding)
	require.NotNil(t, rtmp.Video)
	require.NotNil(t, rtmp.Audio)
	assert.Equal(t, domain.TrackSourceCamera, rtmp.Video.Source)
	assert.Equal(t, "H264_1080P_30FPS_3_LAYERS", rtmp.Video.Preset)
	assert.Equal(t, domain.TrackSourceMicrophone, rtmp.Audio.Source)
	assert.Equal(t, "OPUS_STEREO_96KBPS", rtmp.Audio.Preset)

	whip := BuildIngressOptions(domain.Broadcaster{ID: "bob"}, domain.InputModeWHIP)
	assert.True(t, whip.BypassTranscoding)
	assert.Nil(t, whip.Video)
	assert.Nil(t, whip.Audio)
	assert.Equal(t, "bob", whip.Name, "display name falls back to identity")
}

func TestProvision_ReconcilesBeforeCreate(t *testing.T) {
	f := newProvisionerFixture(t, "alice")
	f.provider.addIngress(domain.IngressResource{IngressID: "IN_stale", RoomName: "alice", ParticipantIdentity: "alice"})
	f.provider.addRoom("alice")

	creds, err := f.svc.Provision(context.Background(), alice(), domain.InputModeRTMP)
	require.NoError(t, err)

	calls := f.provider.callLog()
	createIdx := indexOf(calls, "create_ingress")
	require.GreaterOrEqual(t, createIdx, 0)
	for _, before := range []string{"list_ingress", "list_rooms", "delete_ingress:IN_stale", "delete_room:alice"} {
		idx := indexOf(calls, before)
		require.GreaterOrEqual(t, idx, 0, before)
		assert.Less(t, idx, createIdx, "%s must happen before create", before)
	}

	owned := f.provider.ingressesOwnedBy("alice")
	require.Len(t, owned, 1)
	assert.Equal(t, creds.IngressID, owned[0].IngressID)

	rec, err := f.repo.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, creds.IngressID, *rec.IngressID)
	assert.Equal(t, creds.ServerURL, *rec.ServerURL)
	assert.Equal(t, creds.StreamKey, *rec.StreamKey)

	assert.Equal(t, []domain.BroadcasterID{"alice"}, f.invalidator.seen())
	assert.Equal(t, []domain.BroadcasterID{"alice"}, f.publisher.invalidated)
	assert.Equal(t, 1, f.metrics.Snapshot().Provisions["rtmp/success"])
}

func TestProvision_RepeatedCallsLeaveOneIngress(t *testing.T) {
	f := newProvisionerFixture(t, "alice")

	var last *domain.Credentials
	for i := 0; i < 3; i++ {
		creds, err := f.svc.Provision(context.Background(), alice(), domain.InputModeWHIP)
		require.NoError(t, err)
		last = creds
	}

	owned := f.provider.ingressesOwnedBy("alice")
	require.Len(t, owned, 1)
	assert.Equal(t, last.IngressID, owned[0].IngressID)
	assert.True(t, f.provider.lastCreateOpts.BypassTranscoding)
}

func TestProvision_ConcurrentCallsLeaveOneIngress(t *testing.T) {
	f := newProvisionerFixture(t, "alice")
	f.provider.createDelay = 5 * time.Millisecond

	var wg sync.WaitGroup
	results := make([]*domain.Credentials, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds, err := f.svc.Provision(context.Background(), alice(), domain.InputModeRTMP)
			if assert.NoError(t, err) {
				results[i] = creds
			}
		}(i)
	}
	wg.Wait()

	owned := f.provider.ingressesOwnedBy("alice")
	require.Len(t, owned, 1)

	rec, err := f.repo.GetByUserID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, owned[0].IngressID, *rec.IngressID, "record must point at the surviving ingress")
}

func TestProvision_InvalidInput(t *testing.T) {
	f := newProvisionerFixture(t, "alice")

	_, err := f.svc.Provision(context.Background(), alice(), domain.InputMode("srt"))
	assert.Equal(t, domain.ProvisionErrInvalidInput, domain.ProvisionErrorKindOf(err))
	assert.ErrorIs(t, err, domain.ErrInvalidInputMode)

	_, err = f.svc.Provision(context.Background(), domain.Broadcaster{}, domain.InputModeRTMP)
	assert.Equal(t, domain.ProvisionErrInvalidInput, domain.ProvisionErrorKindOf(err))

	assert.Empty(t, f.provider.callLog())
}

func TestProvision_MissingRecordCreatesNothing(t *testing.T) {
	f := newProvisionerFixture(t)

	_, err := f.svc.Provision(context.Background(), alice(), domain.InputModeRTMP)
	require.Error(t, err)
	assert.Equal(t, domain.ProvisionErrPrecondition, domain.ProvisionErrorKindOf(err))
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	assert.Empty(t, f.provider.callLog())
}

func TestProvision_ListingFailureAbortsBeforeCreate(t *testing.T) {
	f := newProvisionerFixture(t, "alice")
	f.provider.listIngressErr = errProviderDown

	_, err := f.svc.Provision(context.Background(), alice(), domain.InputModeRTMP)
	assert.Equal(t, domain.ProvisionErrProvider, domain.ProvisionErrorKindOf(err))
	assert.Equal(t, -1, indexOf(f.provider.callLog(), "create_ingress"))
}

func TestProvision_CreateFailure(t *testing.T) {
	f := newProvisionerFixture(t, "alice")
	f.provider.createErr = errors.New("twirp error invalid_argument: bad preset")

	_, err := f.svc.Provision(context.Background(), alice(), domain.InputModeRTMP)
	assert.Equal(t, domain.ProvisionErrProvider, domain.ProvisionErrorKindOf(err))
	assert.Contains(t, err.Error(), "bad preset")

	rec, _ := f.repo.GetByUserID(context.Background(), "alice")
	assert.Nil(t, rec.IngressID)
	assert.Empty(t, f.invalidator.seen())
}

func TestProvision_IncompleteResultLeavesRecordUnchanged(t *testing.T) {
	cases := map[string]func(domain.CreateIngressOptions) *domain.IngressResource{
		"nil result": func(domain.CreateIngressOptions) *domain.IngressResource { return nil },
		"missing url": func(o domain.CreateIngressOptions) *domain.IngressResource {
			return &domain.IngressResource{IngressID: "IN_half", RoomName: o.RoomName, StreamKey: "sk"}
		},
		"missing key": func(o domain.CreateIngressOptions) *domain.IngressResource {
			return &domain.IngressResource{IngressID: "IN_half", RoomName: o.RoomName, URL: "rtmp://x"}
		},
	}

	for name, override := range cases {
		t.Run(name, func(t *testing.T) {
			f := newProvisionerFixture(t, "alice")
			ctx := context.Background()
			require.NoError(t, f.repo.UpdateIngress(ctx, "alice", domain.Credentials{IngressID: "IN_prev", ServerURL: "rtmp://prev", StreamKey: "sk_prev"}))
			f.provider.createOverride = override

			_, err := f.svc.Provision(ctx, alice(), domain.InputModeRTMP)
			assert.Equal(t, domain.ProvisionErrIncomplete, domain.ProvisionErrorKindOf(err))

			rec, err := f.repo.GetByUserID(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "IN_prev", *rec.IngressID)
			assert.Equal(t, "sk_prev", *rec.StreamKey)

			// A retry cleans up the half-created ingress.
			f.provider.createOverride = nil
			creds, err := f.svc.Provision(ctx, alice(), domain.InputModeRTMP)
			require.NoError(t, err)
			owned := f.provider.ingressesOwnedBy("alice")
			require.Len(t, owned, 1)
			assert.Equal(t, creds.IngressID, owned[0].IngressID)
		})
	}
}

func TestProvision_LockContention(t *testing.T) {
	f := newProvisionerFixture(t, "alice")
	locker := distributed.NewMemoryIdentityLocker(time.Minute, 20*time.Millisecond)
	f.svc.locker = locker

	held, err := locker.Acquire(context.Background(), "alice")
	require.NoError(t, err)
	defer held.Release(context.Background())

	_, err = f.svc.Provision(context.Background(), alice(), domain.InputModeRTMP)
	assert.Equal(t, domain.ProvisionErrLocked, domain.ProvisionErrorKindOf(err))
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.Equal(t, -1, indexOf(f.provider.callLog(), "create_ingress"))

	// Other identities are not blocked.
	require.NoError(t, f.repo.Create(context.Background(), &domain.StreamRecord{UserID: "bob"}))
	_, err = f.svc.Provision(context.Background(), domain.Broadcaster{ID: "bob"}, domain.InputModeRTMP)
	assert.NoError(t, err)
}

func TestProvision_TwoBroadcastersStayIsolated(t *testing.T) {
	f := newProvisionerFixture(t, "u1", "u2")
	ctx := context.Background()
	webhooks := NewWebhookService(fakeVerifier{}, f.repo, f.invalidator, nil, f.metrics, testLogger())

	c1, err := f.svc.Provision(ctx, domain.Broadcaster{ID: "u1"}, domain.InputModeRTMP)
	require.NoError(t, err)
	c2, err := f.svc.Provision(ctx, domain.Broadcaster{ID: "u2"}, domain.InputModeWHIP)
	require.NoError(t, err)
	assert.NotEqual(t, c1.IngressID, c2.IngressID)

	assert.Equal(t, 200, webhooks.Handle(ctx, webhookBody("ingress_started", c1.IngressID), "Bearer good"))

	r1, _ := f.repo.GetByUserID(ctx, "u1")
	r2, _ := f.repo.GetByUserID(ctx, "u2")
	assert.True(t, r1.IsLive)
	assert.False(t, r2.IsLive)

	// Re-provisioning u1 must not touch u2's ingress.
	c1b, err := f.svc.Provision(ctx, domain.Broadcaster{ID: "u1"}, domain.InputModeRTMP)
	require.NoError(t, err)
	remaining := f.provider.ingressIDs()
	assert.True(t, remaining[c2.IngressID])
	assert.True(t, remaining[c1b.IngressID])
	assert.False(t, remaining[c1.IngressID])

	// A late ended event for u1's old ingress finds no record.
	assert.Equal(t, 200, webhooks.Handle(ctx, webhookBody("ingress_ended", c1.IngressID), "Bearer good"))
	r1, _ = f.repo.GetByUserID(ctx, "u1")
	assert.True(t, r1.IsLive)
}

func indexOf(calls []string, want string) int {
	for i, c := range calls {
		if c == want {
			return i
		}
	}
	return -1
}
