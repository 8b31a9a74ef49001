package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/linkswap/internal/api"
	"github.com/djlord-it/linkswap/internal/config"
	"github.com/djlord-it/linkswap/internal/engine"
	"github.com/djlord-it/linkswap/internal/stats"
	"github.com/djlord-it/linkswap/internal/store/postgres"
	redisstore "github.com/djlord-it/linkswap/internal/store/redis"
	"github.com/djlord-it/linkswap/internal/store/sqlite"
)

// pairStore is what every backend provides.
type pairStore interface {
	engine.Store
	stats.Store
	api.PairReader
}

// backend is an opened store plus the handles serve needs around it.
type backend struct {
	name   string
	store  pairStore
	health api.HealthChecker

	// migrate creates the schema; nil for schemaless backends.
	migrate func(ctx context.Context) error
	close   func() error
}

// openBackend connects to the configured store and verifies it is reachable.
// The schema is not touched; call migrate for that.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return openPostgres(ctx, cfg)
	case config.BackendSQLite:
		return openSQLite(cfg)
	case config.BackendRedis:
		return openRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (*backend, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	configurePool(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBOpTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.New(db, cfg.DBOpTimeout)
	return &backend{
		name:    config.BackendPostgres,
		store:   store,
		health:  db,
		migrate: store.EnsureSchema,
		close:   db.Close,
	}, nil
}

func openSQLite(cfg config.Config) (*backend, error) {
	store, err := sqlite.Open(cfg.SQLitePath, cfg.DBOpTimeout)
	if err != nil {
		return nil, err
	}
	configurePool(store.DB(), cfg)

	return &backend{
		name:    config.BackendSQLite,
		store:   store,
		health:  store.DB(),
		migrate: store.EnsureSchema,
		close:   store.Close,
	}, nil
}

func openRedis(ctx context.Context, cfg config.Config) (*backend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		PoolSize:     cfg.DBMaxOpenConns,
		MinIdleConns: cfg.DBMaxIdleConns,
	})

	store := redisstore.New(client,
		redisstore.WithPrefix(cfg.RedisPrefix),
		redisstore.WithOpTimeout(cfg.DBOpTimeout),
	)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBOpTimeout)
	defer cancel()
	if err := store.PingContext(pingCtx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &backend{
		name:   config.BackendRedis,
		store:  store,
		health: store,
		close:  client.Close,
	}, nil
}

func configurePool(db *sql.DB, cfg config.Config) {
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("linkswap: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
}

// ensureSchema runs the backend migration if it has one.
func (b *backend) ensureSchema(ctx context.Context) error {
	if b.migrate == nil {
		log.Printf("linkswap: store=%s has no schema to migrate", b.name)
		return nil
	}
	if err := b.migrate(ctx); err != nil {
		return fmt.Errorf("ensure schema (%s): %w", b.name, err)
	}
	log.Printf("linkswap: store=%s schema ready", b.name)
	return nil
}
