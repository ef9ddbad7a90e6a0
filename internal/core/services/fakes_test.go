package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamgate/internal/core/domain"

	"go.uber.org/zap"
)

var errProviderDown = errors.New("provider unavailable")

// fakeProvider is a stateful stand-in for the media provider. With
// listEverything set it ignores list filters, which is how the decoy tests
// simulate a provider returning resources that belong to someone else.
type fakeProvider struct {
	mu        sync.Mutex
	ingresses map[string]domain.IngressResource
	rooms     map[string]domain.RoomResource
	calls     []string
	nextID    int

	listEverything  bool
	listIngressErr  error
	listRoomsErr    error
	createErr       error
	createOverride  func(opts domain.CreateIngressOptions) *domain.IngressResource
	deleteErrFor    map[string]error
	lastCreateOpts  *domain.CreateIngressOptions
	createDelay     time.Duration
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		ingresses:    make(map[string]domain.IngressResource),
		rooms:        make(map[string]domain.RoomResource),
		deleteErrFor: make(map[string]error),
	}
}

func (p *fakeProvider) record(call string) {
	p.calls = append(p.calls, call)
}

func (p *fakeProvider) addIngress(in domain.IngressResource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ingresses[in.IngressID] = in
}

func (p *fakeProvider) addRoom(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms[name] = domain.RoomResource{Name: name}
}

func (p *fakeProvider) ListIngress(ctx context.Context, filter domain.IngressFilter) ([]domain.IngressResource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("list_ingress")

	if p.listIngressErr != nil {
		return nil, p.listIngressErr
	}
	var out []domain.IngressResource
	for _, in := range p.ingresses {
		if p.listEverything || filter.RoomName == "" || in.RoomName == filter.RoomName {
			out = append(out, in)
		}
	}
	return out, nil
}

func (p *fakeProvider) CreateIngress(ctx context.Context, opts domain.CreateIngressOptions) (*domain.IngressResource, error) {
	if p.createDelay > 0 {
		time.Sleep(p.createDelay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("create_ingress")
	o := opts
	p.lastCreateOpts = &o

	if p.createErr != nil {
		return nil, p.createErr
	}

	p.nextID++
	res := &domain.IngressResource{
		IngressID:           fmt.Sprintf("IN_%d", p.nextID),
		Name:                opts.Name,
		RoomName:            opts.RoomName,
		ParticipantIdentity: opts.ParticipantIdentity,
		ParticipantName:     opts.ParticipantName,
		InputMode:           opts.InputMode,
		URL:                 "rtmp://ingest.example.com/x",
		StreamKey:           fmt.Sprintf("sk_%d", p.nextID),
	}
	if opts.InputMode == domain.InputModeWHIP {
		res.URL = "https://ingest.example.com/w"
	}
	if p.createOverride != nil {
		res = p.createOverride(opts)
	}
	if res != nil && res.IngressID != "" {
		p.ingresses[res.IngressID] = *res
	}
	return res, nil
}

func (p *fakeProvider) DeleteIngress(ctx context.Context, ingressID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("delete_ingress:" + ingressID)

	if err := p.deleteErrFor[ingressID]; err != nil {
		return err
	}
	delete(p.ingresses, ingressID)
	return nil
}

func (p *fakeProvider) ListRooms(ctx context.Context, names []string) ([]domain.RoomResource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("list_rooms")

	if p.listRoomsErr != nil {
		return nil, p.listRoomsErr
	}
	var out []domain.RoomResource
	for _, room := range p.rooms {
		if p.listEverything {
			out = append(out, room)
			continue
		}
		for _, n := range names {
			if room.Name == n {
				out = append(out, room)
			}
		}
	}
	return out, nil
}

func (p *fakeProvider) DeleteRoom(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("delete_room:" + name)

	if err := p.deleteErrFor["room:"+name]; err != nil {
		return err
	}
	delete(p.rooms, name)
	return nil
}

func (p *fakeProvider) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProvider) ingressIDs() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make(map[string]bool, len(p.ingresses))
	for id := range p.ingresses {
		ids[id] = true
	}
	return ids
}

func (p *fakeProvider) ingressesOwnedBy(identity domain.BroadcasterID) []domain.IngressResource {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.IngressResource
	for _, in := range p.ingresses {
		if in.OwnedBy(identity) {
			out = append(out, in)
		}
	}
	return out
}

// fakeVerifier accepts "Bearer good" and decodes a small JSON body.
type fakeVerifier struct{}

type fakeWebhookBody struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	IngressID string `json:"ingress_id"`
	RoomName  string `json:"room_name"`
}

func (fakeVerifier) VerifyAndParse(ctx context.Context, body []byte, authorization string) (*domain.WebhookEvent, error) {
	if authorization != "Bearer good" {
		return nil, domain.ErrWebhookInvalid
	}
	var b fakeWebhookBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWebhookInvalid, err)
	}
	return &domain.WebhookEvent{
		ID:        b.ID,
		Kind:      domain.EventKind(b.Event),
		IngressID: b.IngressID,
		RoomName:  b.RoomName,
	}, nil
}

func webhookBody(event, ingressID string) []byte {
	data, _ := json.Marshal(fakeWebhookBody{ID: "EV_" + ingressID, Event: event, IngressID: ingressID})
	return data
}

type recordingInvalidator struct {
	mu    sync.Mutex
	users []domain.BroadcasterID
}

func (r *recordingInvalidator) InvalidateStreamKeys(ctx context.Context, userID domain.BroadcasterID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func (r *recordingInvalidator) seen() []domain.BroadcasterID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.BroadcasterID(nil), r.users...)
}

type recordingPublisher struct {
	mu          sync.Mutex
	invalidated []domain.BroadcasterID
	liveChanged map[domain.BroadcasterID]bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{liveChanged: make(map[domain.BroadcasterID]bool)}
}

func (r *recordingPublisher) PublishStreamKeysInvalidated(ctx context.Context, userID domain.BroadcasterID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, userID)
	return nil
}

func (r *recordingPublisher) PublishLiveChanged(ctx context.Context, userID domain.BroadcasterID, live bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveChanged[userID] = live
	return nil
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func strPtr(s string) *string {
	return &s
}
