package detection

import (
	"github.com/redis/go-redis/v9"

	"github.com/sentinelops/logsentry/internal/config"
)

// NewRedisClientFromConfig constructs a redis client from app config. A nil
// or empty config yields nil, which disables the gate's reservation path.
func NewRedisClientFromConfig(c *config.RedisConfig) *redis.Client {
	if c == nil || c.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
}
