// Package host assembles a running registry from configuration: logger,
// metrics, backing store, migrator and engine.
package host

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/roach88/menagerie/internal/config"
	"github.com/roach88/menagerie/internal/engine"
	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kitties"
	"github.com/roach88/menagerie/internal/kv"
	"github.com/roach88/menagerie/internal/logging"
	"github.com/roach88/menagerie/internal/metrics"
	"github.com/roach88/menagerie/internal/migration"
	"github.com/roach88/menagerie/internal/store"
)

// Host owns an engine and the resources behind it.
type Host struct {
	Engine  *engine.Engine
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Journal is the SQLite store, or nil for the memory driver.
	Journal *store.Store
}

type options struct {
	registerer prometheus.Registerer
	logger     *zap.Logger
	ids        engine.CallIDGenerator
}

// Option configures Open.
type Option func(*options)

// WithRegisterer registers the engine's collectors on reg. Without it no
// metrics are recorded.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLogger uses l instead of building a logger from cfg.Log.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCallIDGenerator replaces the default UUIDv7 call IDs.
func WithCallIDGenerator(g engine.CallIDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// Open validates cfg and builds a Host from it. The caller must Close it.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Host, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		l, err := logging.New(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	var m *metrics.Metrics
	if o.registerer != nil {
		var err error
		if m, err = metrics.New(o.registerer); err != nil {
			return nil, err
		}
	}

	h := &Host{Logger: logger, Metrics: m}
	var backend kv.Store
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		backend = kv.NewMemory()
	case config.DriverSQLite3, config.DriverSQLite:
		st, err := store.Open(cfg.Storage.Path, store.WithDriver(cfg.Storage.Driver))
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		h.Journal = st
		backend = st
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	mig, err := migration.New(
		migration.WithMaxRecords(cfg.Migration.MaxRecords),
		migration.WithLogger(logger.Named("migration")),
	)
	if err != nil {
		h.Close()
		return nil, err
	}

	engineOpts := []engine.EngineOption{
		engine.WithKitties(kitties.Config{
			Price:    ir.Balance(cfg.Kitties.Price),
			ModuleID: cfg.Kitties.ModuleID,
		}),
		engine.WithExistentialDeposit(ir.Balance(cfg.Ledger.ExistentialDeposit)),
		engine.WithMigrator(mig),
		engine.WithTargetVersion(cfg.Migration.TargetVersion),
		engine.WithLogger(logger.Named("engine")),
		engine.WithMetrics(m),
	}
	if o.ids != nil {
		engineOpts = append(engineOpts, engine.WithCallIDGenerator(o.ids))
	}
	eng, err := engine.New(ctx, backend, engineOpts...)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}
	h.Engine = eng

	logger.Info("host ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("path", cfg.Storage.Path),
		zap.Uint32("target_version", cfg.Migration.TargetVersion),
		zap.Int64("seq", eng.Seq()))
	return h, nil
}

// Close releases the store and flushes the logger.
func (h *Host) Close() error {
	// Sync fails on unbuffered terminals; nothing is lost when it does.
	_ = h.Logger.Sync()
	if h.Journal == nil {
		return nil
	}
	return h.Journal.Close()
}
