// Package app собирает хранилища и сервисы по настройкам для всех бинарников
package app

import (
	"context"
	"fmt"

	"github.com/glkeru/loyalty/pay2win/internal/auth"
	"github.com/glkeru/loyalty/pay2win/internal/config"
	"github.com/glkeru/loyalty/pay2win/internal/db"
	natsbus "github.com/glkeru/loyalty/pay2win/internal/external/nats"
	interf "github.com/glkeru/loyalty/pay2win/internal/interfaces"
	"github.com/glkeru/loyalty/pay2win/internal/services"
	"go.uber.org/zap"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	Storage    interf.LedgerStorage
	Promotions interf.PromotionStorage
	// LedgerDB - только для store=postgres, нужен для миграций
	LedgerDB *db.LedgerDB

	Accounts     *services.AccountService
	Ledger       *services.LedgerService
	PromotionSvc *services.PromotionService
	Events       *services.EventService
	Intake       *services.Intake

	closers []func()
}

// Build: store=embedded - одна SQLite база на все; store=postgres - Postgres + Mongo.
// Redis и NATS необязательны: если не настроены или недоступны, работаем без них.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// database
	switch cfg.Store {
	case config.StoreEmbedded:
		store, err := db.NewEmbeddedDB(cfg.Embedded.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("embedded store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.Storage = store
		a.Promotions = store
	case config.StorePostgres:
		ledger, err := db.NewLedgerDB(ctx, cfg.Postgres.DSN(), logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, ledger.Close)
		a.Storage = ledger
		a.LedgerDB = ledger

		promos, err := db.NewPromotionsDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		a.closers = append(a.closers, func() { _ = promos.Close(context.Background()) })
		a.Promotions = promos
	}

	// cache
	var cache interf.CacheStorage
	if cfg.Redis.Addr != "" {
		redis, err := db.NewCacheService(ctx, cfg.Redis.Addr, cfg.Redis.User, cfg.Redis.Password, cfg.Redis.TTL)
		if err != nil {
			logger.Error("Redis unavailable, balance cache disabled", zap.String("service", "app"), zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = redis.Close() })
			cache = redis
		}
	}

	// notifications
	var notifier interf.LedgerNotifier
	var resets interf.ResetNotifier
	if cfg.NATS.URL != "" {
		publisher, err := natsbus.NewPublisher(cfg.NATS.URL, cfg.NATS.Subject, cfg.NATS.ResetSubject)
		if err != nil {
			logger.Error("NATS unavailable, notifications disabled", zap.String("service", "app"), zap.Error(err))
		} else {
			a.closers = append(a.closers, publisher.Close)
			notifier = publisher
			resets = publisher
		}
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	// services
	a.Accounts = services.NewAccountService(logger, a.Storage, tokens).WithResetNotifier(resets)
	a.Ledger = services.NewLedgerService(logger, a.Storage, a.Promotions, cache, notifier)
	a.PromotionSvc = services.NewPromotionService(logger, a.Promotions, a.Storage)
	a.Events = services.NewEventService(logger, a.Storage)
	a.Intake = services.NewIntake(logger, a.Storage, a.Ledger)
	return a, nil
}

// Close закрывает подключения в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
