package dedup

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paygate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provide(cfg config.Config, log *zap.Logger) (Guard, error) {
	if cfg.DedupBackend == config.DedupBackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return NewRedisGuard(client, cfg.DedupTTL)
	}

	log.Warn("using in-memory webhook dedup; duplicates are not suppressed across instances or restarts",
		zap.Int("capacity", cfg.DedupCapacity),
	)
	return NewMemoryGuard(cfg.DedupCapacity), nil
}

// Module provides the webhook idempotency guard.
var Module = fx.Module("dedup",
	fx.Provide(provide),
)
