package pkg

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/testing-system/testing-service/internal/config"
)

func InitRedis(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return redis.NewClient(opts), nil
}
