// Package bootstrap connects the runtime dependencies shared by the server
// and the command-line tools.
package bootstrap

import (
	"fmt"

	"courtside/internal/cache"
	"courtside/internal/config"
	"courtside/internal/database"
	"courtside/internal/media"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds the connected dependencies.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	Media media.Provider
}

// InitRuntime connects to the database, Redis and object storage. Redis is
// optional and may come back nil; a configured but broken object store is
// an error.
func InitRuntime(cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// nil when unreachable
	cache.InitRedis(cfg.RedisURL)

	provider, err := media.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("media storage init failed: %w", err)
	}

	return &Runtime{DB: db, Redis: cache.GetClient(), Media: provider}, nil
}
