package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/resdomain/internal/catalog/article"
	"github.com/kailas-cloud/resdomain/internal/config"
	dbRedis "github.com/kailas-cloud/resdomain/internal/db/redis"
	"github.com/kailas-cloud/resdomain/internal/event"
	"github.com/kailas-cloud/resdomain/internal/i18n"
	"github.com/kailas-cloud/resdomain/internal/metrics"
	"github.com/kailas-cloud/resdomain/internal/repository/kv"
	"github.com/kailas-cloud/resdomain/internal/repository/memory"
	"github.com/kailas-cloud/resdomain/internal/repository/sqlstore"
	"github.com/kailas-cloud/resdomain/internal/repository/uow"
	batchuc "github.com/kailas-cloud/resdomain/internal/usecase/batch"
	healthuc "github.com/kailas-cloud/resdomain/internal/usecase/health"
	"github.com/kailas-cloud/resdomain/internal/validation"
)

// app is the composition root shared by the commands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	services *batchuc.Manager
	health   *healthuc.Service
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	registry := uow.NewRegistry()
	article.Register(registry)

	om, pinger, err := a.openStore(ctx, registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	tr, err := i18n.New(cfg.Domain.Locale)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("message catalog: %w", err)
	}

	rules, err := articleRules(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	metrics.Register()
	events := event.NewDispatcher(logger)
	events.SubscribeAll(article.EntityType, event.Post, event.LogListener{}, 0)
	events.SubscribeAll(article.EntityType, event.Post, metrics.BatchListener{}, -10)

	svc := batchuc.New(article.EntityType, om, rules, events, tr).
		WithMaxBatchSize(cfg.Domain.MaxBatchSize).
		WithDebug(cfg.Domain.Debug).
		WithLogger(logger)
	a.services = batchuc.NewManager(svc)

	a.health = healthuc.New(pinger).WithCheck("schema", healthuc.CheckFunc(func(ctx context.Context) error {
		_, err := om.FindByIDs(ctx, article.EntityType, []string{"healthcheck"})
		return err
	}))
	return a, nil
}

func (a *app) openStore(ctx context.Context, registry *uow.Registry) (batchuc.ObjectManager, healthuc.DBPinger, error) {
	db := a.cfg.Database
	switch db.Driver {
	case config.DriverMemory:
		om := memory.New(registry)
		return om, pingFunc(func(context.Context) error { return nil }), nil

	case config.DriverSQLite, config.DriverPostgres:
		conn, d, err := sqlstore.Open(ctx, db.Driver, db.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		om := sqlstore.New(conn, d)
		a.closers = append(a.closers, func() { _ = om.Close() })
		if err := om.Register(article.Mapping); err != nil {
			return nil, nil, err
		}
		if err := om.Migrate(ctx, article.Schema(db.Driver)...); err != nil {
			return nil, nil, err
		}
		return om, om, nil

	case config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      db.Addrs,
			Password:   db.Password,
			ClientName: "resdomain",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.WaitForReady(ctx, time.Duration(db.ReadinessTimeout)*time.Second); err != nil {
			return nil, nil, fmt.Errorf("database not ready: %w", err)
		}
		return kv.New(store, registry, db.KeyPrefix), store, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}
}

// articleRules compiles the configured article rules, or the defaults when
// none are configured.
func articleRules(cfg config.Config) (*validation.RuleSet, error) {
	configured := cfg.Validation[article.EntityType]
	if len(configured) == 0 {
		return validation.New(article.DefaultRules)
	}
	rules := make([]validation.Rule, len(configured))
	for i, r := range configured {
		rules[i] = validation.Rule{Path: r.Path, Expr: r.Expr, Message: r.Message, Lang: r.Lang}
	}
	set, err := validation.New(rules)
	if err != nil {
		return nil, fmt.Errorf("article rules: %w", err)
	}
	return set, nil
}
