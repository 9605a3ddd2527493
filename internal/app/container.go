package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cloven/rbac-admin/internal/auth"
	"github.com/cloven/rbac-admin/internal/bootstrap"
	"github.com/cloven/rbac-admin/internal/observability"
	"github.com/cloven/rbac-admin/internal/platform/cache"
	"github.com/cloven/rbac-admin/internal/platform/db"
	"github.com/cloven/rbac-admin/internal/platform/httpx"
	"github.com/cloven/rbac-admin/internal/rbac"
	"github.com/cloven/rbac-admin/internal/roles"
	"github.com/cloven/rbac-admin/internal/store/memory"
	"github.com/cloven/rbac-admin/internal/store/postgres"
	"github.com/cloven/rbac-admin/internal/users"
)

// identityStore is what both store drivers provide.
type identityStore interface {
	rbac.Repository
	rbac.UserDirectory
	users.Repository
}

// Container holds the wired application graph.
type Container struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	RBAC    *rbac.Service
	Users   *users.Service
	Auth    *auth.Service
	Tokens  *auth.TokenService
	Seeder  bootstrap.Seeder
	Router  http.Handler

	closers []func()
}

// Build connects the configured store and cache and wires every service.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}
	health := map[string]HealthCheck{}

	var store identityStore
	switch cfg.StoreDriver {
	case StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store = memory.New()
	default:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolConfig())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
		health["postgres"] = pool.Ping
		store = postgres.New(pool)
	}

	var permCache rbac.PermissionCache
	switch cfg.CacheDriver {
	case CacheRedis:
		client, err := cache.New(ctx, cfg.RedisOptions())
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.Redis = client
		c.closers = append(c.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
		health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		permCache = rbac.NewRedisCache(client, cfg.CacheTTL)
	case CacheMemory:
		permCache = rbac.NewMemoryCache(cfg.CacheTTL)
	}

	tokens, err := auth.NewTokenService(cfg.TokenConfig())
	if err != nil {
		c.Close()
		return nil, err
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	c.Tokens = tokens
	c.RBAC = rbac.NewService(store, store, permCache, logger)
	c.Users = users.NewService(store, c.RBAC, hasher, logger)
	c.Auth = auth.NewService(store, c.RBAC, hasher, tokens, c.Metrics, logger)

	catalog, err := bootstrap.DefaultCatalog()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Seeder = bootstrap.Seeder{Catalog: catalog, RBAC: c.RBAC, Users: c.Users, Logger: logger}

	binder := httpx.NewBinder()
	guard := rbac.Middleware{Service: c.RBAC, Logger: logger, Observer: c.Metrics}
	c.Router = NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        auth.NewHandler(logger, c.Auth, binder),
		Authenticator:      auth.Authenticator{Tokens: tokens, Users: store, Recorder: c.Metrics, Logger: logger},
		UsersHandler:       users.NewHandler(logger, c.Users, binder, guard),
		RolesHandler:       roles.NewHandler(logger, c.RBAC, binder, guard),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, c.RBAC, binder, guard),
		Metrics:            c.Metrics,
		Health:             health,
	})
	return c, nil
}

// Close releases connections in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
