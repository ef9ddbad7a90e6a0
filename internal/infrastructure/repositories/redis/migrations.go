package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const currentSchemaVersion = 1

// Migration represents a key-schema migration
type Migration struct {
	Version int
	Up      func(ctx context.Context, client redis.UniversalClient, prefix string) error
}

func schemaVersionKey(prefix string) string {
	return prefix + "schema:version"
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client redis.UniversalClient, prefix string, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client, prefix)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Debugw("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client, prefix); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := client.Set(ctx, schemaVersionKey(prefix), migration.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client redis.UniversalClient, prefix string) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey(prefix)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func getMigrations() []Migration {
	return []Migration{
		{
			// Rebuild the ingress -> user index from the stored records.
			Version: 1,
			Up: func(ctx context.Context, client redis.UniversalClient, prefix string) error {
				iter := client.Scan(ctx, 0, userKeyPrefix(prefix)+"*", 100).Iterator()
				for iter.Next(ctx) {
					data, err := client.Get(ctx, iter.Val()).Bytes()
					if err == redis.Nil {
						continue
					}
					if err != nil {
						return err
					}

					var rec storedRecord
					if err := json.Unmarshal(data, &rec); err != nil {
						return fmt.Errorf("decode %s: %w", iter.Val(), err)
					}
					if rec.IngressID == nil || *rec.IngressID == "" {
						continue
					}
					if err := client.Set(ctx, ingressKeyPrefix(prefix)+*rec.IngressID, rec.UserID, 0).Err(); err != nil {
						return err
					}
				}
				return iter.Err()
			},
		},
	}
}
