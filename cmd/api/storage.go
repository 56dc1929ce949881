package main

import (
	"context"
	"fmt"
	"time"

	"secure-transfer-gateway/config"
	"secure-transfer-gateway/internal/adapter/http/middleware"
	"secure-transfer-gateway/internal/adapter/storage/memory"
	mongoStorage "secure-transfer-gateway/internal/adapter/storage/mongo"
	pgStorage "secure-transfer-gateway/internal/adapter/storage/postgres"
	redisStorage "secure-transfer-gateway/internal/adapter/storage/redis"
	"secure-transfer-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// storage is the account store selected by storage.backend.
type storage struct {
	accounts ports.AccountStore
	seeder   ports.AccountSeeder
	audit    ports.AuditRepository // nil for the memory backend
	checkers []ports.HealthChecker
	closers  []func()
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := pgStorage.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		store := pgStorage.NewAccountStore(pool)
		return &storage{
			accounts: store,
			seeder:   store,
			audit:    pgStorage.NewAuditRepository(pool),
			checkers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			closers:  []func(){pool.Close},
		}, nil

	case "mongo":
		client, err := mongoStorage.Connect(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, err
		}
		provider := mongoStorage.NewProvider(client, cfg.Mongo.Database)
		if err := provider.EnsureIndexes(ctx, cfg.Mongo.Collection); err != nil {
			log.Warn().Err(err).Msg("could not create account indexes")
		}
		store := mongoStorage.NewAccountStore(provider, cfg.Mongo.Collection)
		return &storage{
			accounts: store,
			seeder:   store,
			audit:    mongoStorage.NewAuditRepository(provider),
			checkers: []ports.HealthChecker{mongoStorage.NewHealthCheck(client)},
			closers: []func(){func() {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(disconnectCtx)
			}},
		}, nil

	case "memory":
		log.Warn().Msg("using in-memory account store, data is lost on restart")
		store := memory.NewAccountStore()
		return &storage{accounts: store, seeder: store}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// coordination holds the pair locker and the expiring stores. With Redis they
// are shared across replicas; in memory they only cover this process.
type coordination struct {
	locker    ports.PairLocker
	receipts  ports.ReceiptCache
	nonces    ports.NonceStore
	rateLimit middleware.RateLimitStore // nil = rate limiting disabled
	checkers  []ports.HealthChecker
	closers   []func()
}

func (c *coordination) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func openCoordination(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*coordination, error) {
	if cfg.Lock.Backend == "redis" {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		return &coordination{
			locker:    redisStorage.NewPairLocker(rdb, cfg.Lock.TTL, cfg.Lock.Wait, log),
			receipts:  redisStorage.NewReceiptCache(rdb),
			nonces:    redisStorage.NewNonceStore(rdb),
			rateLimit: redisStorage.NewRateLimitStore(rdb),
			checkers:  []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
			closers:   []func(){func() { _ = rdb.Close() }},
		}, nil
	}

	cache := memory.NewTTLCache()
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := cache.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("swept expired cache entries")
				}
			}
		}
	}()

	return &coordination{
		locker:   memory.NewKeyedLocker(),
		receipts: cache,
		nonces:   cache,
		closers:  []func(){func() { close(stop) }},
	}, nil
}
