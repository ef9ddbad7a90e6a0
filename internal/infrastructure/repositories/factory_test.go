package repositories

import (
	"context"
	"testing"

	"streamgate/internal/infrastructure/repositories/memory"
	"streamgate/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRepositoryFactory_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = config.StorageMemory
	cfg.Redis.Enabled = false

	factory, err := NewRepositoryFactory(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer factory.Close()

	assert.IsType(t, &memory.MemoryStreamRepository{}, factory.CreateStreamRepository())
	assert.Nil(t, factory.RedisClient())
	assert.NoError(t, factory.HealthCheck(context.Background()))
}
