package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"memberflow/shared/database"
	"memberflow/shared/metrics"
	"memberflow/shared/migrations"
	"memberflow/shared/proto"
	"memberflow/shared/proxy"
	"memberflow/shared/redis"
	"memberflow/shared/storage"
	"memberflow/shared/transfer"
	"memberflow/transfer-bot/config"
)

// app holds the stores and collaborators every command shares.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	accounts storage.Accounts
	queue    storage.Queue
	toggle   storage.Toggle
	ledger   storage.Ledger

	proxies   *proxy.Selector
	connector *proto.Connector
	registry  *prometheus.Registry
	metrics   *metrics.Metrics

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		connector: proto.NewConnector(logger, cfg.Transfer.DialTimeout),
		registry:  prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)
	a.proxies = proxy.NewSelector(cfg.Storage.Path(config.ProxiesFile),
		proxy.WithSkipHook(func(line string, err error) {
			logger.Warn("skipping proxy line", zap.String("line", line), zap.Error(err))
		}))

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openLedger(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	s := a.cfg.Storage
	switch s.Backend {
	case config.BackendFile:
		a.accounts = storage.NewFileAccounts(s.Path(config.AccountsFile), a.logger)
		a.queue = storage.NewFileQueue(s.Path(config.QueueFile), a.logger)
		a.toggle = storage.NewFileToggle(s.Path(config.SettingsFile), a.logger)
		return nil
	case config.BackendPostgres, config.BackendSQLite:
		db, err := database.Open(database.Config{Driver: s.Backend, DSN: s.DSN}, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { return database.Close(db) })
		if err := migrations.AutoMigrate(db.WithContext(ctx), a.logger); err != nil {
			return err
		}
		a.accounts = database.NewAccountStore(db)
		a.queue = database.NewJobQueue(db)
		a.toggle = database.NewToggle(db)
		return nil
	}
	return fmt.Errorf("unknown storage backend %q", s.Backend)
}

func (a *app) openLedger(ctx context.Context) error {
	l := a.cfg.Ledger
	switch l.Backend {
	case config.BackendFile:
		ledger, err := storage.OpenFileLedger(a.cfg.Storage.Path(config.LedgerFile), a.logger)
		if err != nil {
			return err
		}
		a.ledger = ledger
	case config.BackendRedis:
		client, err := redis.NewClient(ctx, l.RedisURL)
		if err != nil {
			return err
		}
		a.ledger = redis.NewLedger(client, l.RedisKey)
	default:
		return fmt.Errorf("unknown ledger backend %q", l.Backend)
	}
	a.closers = append(a.closers, a.ledger.Close)
	return nil
}

func (a *app) engine() *transfer.Engine {
	t := a.cfg.Transfer
	return transfer.NewEngine(a.connector, a.proxies, a.ledger, transfer.Limits{
		PerAccount:    t.PerAccount,
		FetchLimit:    t.FetchLimit,
		ProgressEvery: t.ProgressEvery,
		MinDelay:      t.MinDelay,
		MaxDelay:      t.MaxDelay,
		FloodMargin:   t.FloodMargin,
	}, a.logger, transfer.WithMetrics(a.metrics))
}

func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing resources", zap.Error(err))
	}
	_ = a.logger.Sync()
}
