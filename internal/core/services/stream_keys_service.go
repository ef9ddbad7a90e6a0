package services

import (
	"context"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/cache"
)

const streamKeysCachePrefix = "stream_keys:"

// CachedStreamKeysService serves the broadcaster's credential view from a
// TTL cache that provisioning and live-state changes invalidate.
type CachedStreamKeysService struct {
	streams ports.StreamRepository
	cache   *cache.Cache[domain.StreamKeys]
}

func NewCachedStreamKeysService(streams ports.StreamRepository, ttl time.Duration) *CachedStreamKeysService {
	return &CachedStreamKeysService{
		streams: streams,
		cache:   cache.New[domain.StreamKeys](ttl),
	}
}

func (s *CachedStreamKeysService) GetStreamKeys(ctx context.Context, userID domain.BroadcasterID) (*domain.StreamKeys, error) {
	keys, err := s.cache.GetOrLoad(ctx, streamKeysCachePrefix+string(userID), func(ctx context.Context) (domain.StreamKeys, error) {
		record, err := s.streams.GetByUserID(ctx, userID)
		if err != nil {
			return domain.StreamKeys{}, err
		}
		return record.Keys(), nil
	})
	if err != nil {
		return nil, err
	}
	return &keys, nil
}

func (s *CachedStreamKeysService) InvalidateStreamKeys(ctx context.Context, userID domain.BroadcasterID) {
	s.cache.Delete(streamKeysCachePrefix + string(userID))
}

// Stop stops the cache cleanup
func (s *CachedStreamKeysService) Stop() {
	s.cache.Stop()
}
