package livekit

import (
	"context"
	"fmt"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/pkg/tracing"

	lk "github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"
)

// ingressAPI and roomAPI are the parts of the server SDK clients we use.
type ingressAPI interface {
	CreateIngress(ctx context.Context, in *lk.CreateIngressRequest) (*lk.IngressInfo, error)
	ListIngress(ctx context.Context, in *lk.ListIngressRequest) (*lk.ListIngressResponse, error)
	DeleteIngress(ctx context.Context, in *lk.DeleteIngressRequest) (*lk.IngressInfo, error)
}

type roomAPI interface {
	ListRooms(ctx context.Context, in *lk.ListRoomsRequest) (*lk.ListRoomsResponse, error)
	DeleteRoom(ctx context.Context, in *lk.DeleteRoomRequest) (*lk.DeleteRoomResponse, error)
}

type Config struct {
	URL            string
	APIKey         string
	APISecret      string
	RequestTimeout time.Duration
}

// Client implements ports.IngressProvider and ports.RoomProvider against
// the LiveKit server API. Every call is bounded by RequestTimeout.
type Client struct {
	ingress ingressAPI
	rooms   roomAPI
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	return newClient(
		lksdk.NewIngressClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		lksdk.NewRoomServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		cfg.RequestTimeout,
		logger,
	)
}

func newClient(ingress ingressAPI, rooms roomAPI, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{ingress: ingress, rooms: rooms, timeout: timeout, logger: logger}
}

func (c *Client) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.TraceProviderCall(ctx, op)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	tracing.MeasureDuration(ctx, start, op)
	if err != nil {
		tracing.RecordError(ctx, err)
		c.logger.Debugw("provider call failed", "op", op, "duration", time.Since(start), "error", err)
		return fmt.Errorf("livekit %s: %w", op, err)
	}
	return nil
}

func (c *Client) ListIngress(ctx context.Context, filter domain.IngressFilter) ([]domain.IngressResource, error) {
	var items []*lk.IngressInfo
	err := c.call(ctx, "list_ingress", func(ctx context.Context) error {
		resp, err := c.ingress.ListIngress(ctx, &lk.ListIngressRequest{RoomName: filter.RoomName})
		if err != nil {
			return err
		}
		items = resp.GetItems()
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.IngressResource, 0, len(items))
	for _, info := range items {
		if info == nil {
			continue
		}
		out = append(out, *fromIngressInfo(info))
	}
	return out, nil
}

// CreateIngress returns a nil resource only if the server answered with
// an empty body.
func (c *Client) CreateIngress(ctx context.Context, opts domain.CreateIngressOptions) (*domain.IngressResource, error) {
	req, err := toCreateRequest(opts)
	if err != nil {
		return nil, err
	}

	var info *lk.IngressInfo
	err = c.call(ctx, "create_ingress", func(ctx context.Context) error {
		var err error
		info, err = c.ingress.CreateIngress(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fromIngressInfo(info), nil
}

func (c *Client) DeleteIngress(ctx context.Context, ingressID string) error {
	return c.call(ctx, "delete_ingress", func(ctx context.Context) error {
		_, err := c.ingress.DeleteIngress(ctx, &lk.DeleteIngressRequest{IngressId: ingressID})
		return err
	})
}

func (c *Client) ListRooms(ctx context.Context, names []string) ([]domain.RoomResource, error) {
	var rooms []*lk.Room
	err := c.call(ctx, "list_rooms", func(ctx context.Context) error {
		resp, err := c.rooms.ListRooms(ctx, &lk.ListRoomsRequest{Names: names})
		if err != nil {
			return err
		}
		rooms = resp.GetRooms()
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.RoomResource, 0, len(rooms))
	for _, room := range rooms {
		if room == nil {
			continue
		}
		out = append(out, fromRoom(room))
	}
	return out, nil
}

func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	return c.call(ctx, "delete_room", func(ctx context.Context) error {
		_, err := c.rooms.DeleteRoom(ctx, &lk.DeleteRoomRequest{Room: name})
		return err
	})
}

// HealthCheck issues a cheap list call to confirm the API is reachable
// with the configured credentials.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.call(ctx, "health_check", func(ctx context.Context) error {
		_, err := c.rooms.ListRooms(ctx, &lk.ListRoomsRequest{Names: []string{"streamgate-health"}})
		return err
	})
}
