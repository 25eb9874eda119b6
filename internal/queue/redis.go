package queue

import (
	"strings"

	"github.com/hibiken/asynq"

	"islamic-qa-platform/internal/config"
)

// RedisConnOpt builds the asynq Redis connection options from the shared
// configuration, accepting either a redis:// URL or a host:port address.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return asynq.ParseRedisURI(cfg.RedisURL)
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
