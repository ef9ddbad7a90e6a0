package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"streamgate/internal/core/domain"

	"github.com/redis/go-redis/v9"
)

// storedRecord is the JSON layout under the user key. The Lua scripts
// below edit these fields in place, so tags are part of the schema.
type storedRecord struct {
	UserID    string  `json:"user_id"`
	IngressID *string `json:"ingress_id"`
	ServerURL *string `json:"server_url"`
	StreamKey *string `json:"stream_key"`
	IsLive    bool    `json:"is_live"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func userKeyPrefix(prefix string) string    { return prefix + "stream:user:" }
func ingressKeyPrefix(prefix string) string { return prefix + "stream:ingress:" }

// updateIngressScript swaps credentials and moves the ingress index in
// one step. KEYS[1]=user key, ARGV: ingress prefix, id, url, key, now.
var updateIngressScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return 0
end
local rec = cjson.decode(raw)
if type(rec.ingress_id) == "string" and rec.ingress_id ~= "" then
	redis.call("DEL", ARGV[1] .. rec.ingress_id)
end
rec.ingress_id = ARGV[2]
rec.server_url = ARGV[3]
rec.stream_key = ARGV[4]
rec.updated_at = ARGV[5]
redis.call("SET", KEYS[1], cjson.encode(rec))
redis.call("SET", ARGV[1] .. ARGV[2], rec.user_id)
return 1
`)

// setLiveScript resolves the owner through the index and assigns is_live.
// KEYS[1]=ingress index key, ARGV: user prefix, "1"|"0", now.
var setLiveScript = redis.NewScript(`
local user = redis.call("GET", KEYS[1])
if not user then
	return 0
end
local userKey = ARGV[1] .. user
local raw = redis.call("GET", userKey)
if not raw then
	return 0
end
local rec = cjson.decode(raw)
rec.is_live = (ARGV[2] == "1")
rec.updated_at = ARGV[3]
redis.call("SET", userKey, cjson.encode(rec))
return 1
`)

type RedisStreamRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStreamRepository(client redis.UniversalClient, prefix string) *RedisStreamRepository {
	return &RedisStreamRepository{client: client, prefix: prefix}
}

func (r *RedisStreamRepository) userKey(id domain.BroadcasterID) string {
	return userKeyPrefix(r.prefix) + string(id)
}

func (r *RedisStreamRepository) ingressKey(ingressID string) string {
	return ingressKeyPrefix(r.prefix) + ingressID
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (r *RedisStreamRepository) Create(ctx context.Context, record *domain.StreamRecord) error {
	ts := now()
	stored := storedRecord{
		UserID:    string(record.UserID),
		IngressID: record.IngressID,
		ServerURL: record.ServerURL,
		StreamKey: record.StreamKey,
		IsLive:    record.IsLive,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal stream record: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.userKey(record.UserID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create stream record in Redis: %w", err)
	}
	if !created {
		return domain.ErrStreamExists
	}

	if record.IngressID != nil && *record.IngressID != "" {
		if err := r.client.Set(ctx, r.ingressKey(*record.IngressID), string(record.UserID), 0).Err(); err != nil {
			return fmt.Errorf("failed to index ingress: %w", err)
		}
	}
	return nil
}

func (r *RedisStreamRepository) GetByUserID(ctx context.Context, userID domain.BroadcasterID) (*domain.StreamRecord, error) {
	data, err := r.client.Get(ctx, r.userKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream record from Redis: %w", err)
	}
	return decodeRecord(data)
}

func (r *RedisStreamRepository) GetByIngressID(ctx context.Context, ingressID string) (*domain.StreamRecord, error) {
	userID, err := r.client.Get(ctx, r.ingressKey(ingressID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ingress index: %w", err)
	}
	return r.GetByUserID(ctx, domain.BroadcasterID(userID))
}

func (r *RedisStreamRepository) UpdateIngress(ctx context.Context, userID domain.BroadcasterID, creds domain.Credentials) error {
	n, err := updateIngressScript.Run(ctx, r.client,
		[]string{r.userKey(userID)},
		ingressKeyPrefix(r.prefix), creds.IngressID, creds.ServerURL, creds.StreamKey, now(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to update stream credentials: %w", err)
	}
	if n == 0 {
		return domain.ErrStreamNotFound
	}
	return nil
}

func (r *RedisStreamRepository) SetLiveByIngressID(ctx context.Context, ingressID string, live bool) (bool, error) {
	flag := "0"
	if live {
		flag = "1"
	}
	n, err := setLiveScript.Run(ctx, r.client,
		[]string{r.ingressKey(ingressID)},
		userKeyPrefix(r.prefix), flag, now(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set live state: %w", err)
	}
	return n == 1, nil
}

func (r *RedisStreamRepository) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeRecord(data []byte) (*domain.StreamRecord, error) {
	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream record: %w", err)
	}

	record := &domain.StreamRecord{
		UserID:    domain.BroadcasterID(stored.UserID),
		IngressID: stored.IngressID,
		ServerURL: stored.ServerURL,
		StreamKey: stored.StreamKey,
		IsLive:    stored.IsLive,
	}
	record.CreatedAt, _ = time.Parse(time.RFC3339Nano, stored.CreatedAt)
	record.UpdatedAt, _ = time.Parse(time.RFC3339Nano, stored.UpdatedAt)
	return record, nil
}
