package reminder

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoiceledger/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("invoice.reminder",
	fx.Provide(NewLocker),
	fx.Provide(New),
)

// NewLocker connects to Redis when REDIS_ADDR is set. Without it the sweep
// runs unguarded, which is fine for a single instance.
func NewLocker(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Locker {
	if cfg.Redis.Addr == "" {
		log.Info("redis not configured, reminder sweep runs without a lock")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewRedisLocker(client)
}
