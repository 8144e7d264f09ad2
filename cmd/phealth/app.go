package main

import (
	"context"
	"fmt"

	"github.com/pipehealth/pipehealth-go/internal/admin"
	"github.com/pipehealth/pipehealth-go/internal/cache"
	apperrors "github.com/pipehealth/pipehealth-go/internal/errors"
	"github.com/pipehealth/pipehealth-go/internal/service"
	"github.com/pipehealth/pipehealth-go/internal/storage"
)

// app bundles the wired dependencies one command invocation uses
type app struct {
	store   storage.Store
	orgCfg  *cache.OrgConfig
	redis   *cache.Client
	local   *cache.Local
	outlook *service.OutlookService
	admin   *admin.Service
}

// newApp opens storage and caches per the loaded config. Cache backends are
// optional; failing to reach one degrades to direct storage reads.
func newApp(ctx context.Context) (*app, error) {
	a := &app{}

	switch cfg.Storage.Type {
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, apperrors.ConfigErrorf("postgres storage selected but no DSN configured (set PIPEHEALTH_POSTGRES_DSN or run 'phealth configure')")
		}
		store, err := storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.store = store

	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.store = store

	case "memory":
		store := storage.NewMemoryStore()
		if cfg.Storage.SeedFile != "" {
			seed, err := storage.LoadSeed(cfg.Storage.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := seed.Apply(store); err != nil {
				return nil, fmt.Errorf("apply seed: %w", err)
			}
			logger.WithField("seed", cfg.Storage.SeedFile).Info("Memory store seeded")
		}
		a.store = store

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	if cfg.Redis.Enabled {
		redis, err := cache.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without it")
		} else {
			a.redis = redis
		}
	}
	if cfg.Cache.Enabled && cfg.Cache.Path != "" {
		local, err := cache.NewLocal(cfg.Cache.Path, logger)
		if err != nil {
			logger.WithError(err).Warn("Local cache unavailable, continuing without it")
		} else {
			a.local = local
		}
	}
	if a.redis != nil || a.local != nil {
		a.orgCfg = cache.NewOrgConfig(a.store, a.redis, a.local, logger)
	}

	a.outlook = service.NewOutlookService(a.store, a.orgCfg, logger)
	a.admin = admin.NewService(a.store, a.orgCfg, logger)
	return a, nil
}

// close releases the app's connections
func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.local != nil {
		a.local.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
