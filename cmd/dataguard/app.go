package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/compliance"
	"github.com/ezachrisen/dataguard/config"
	"github.com/ezachrisen/dataguard/render"
	"github.com/ezachrisen/dataguard/source"
	"github.com/ezachrisen/dataguard/store/badgerstore"
	"github.com/ezachrisen/dataguard/store/memstore"
	"github.com/ezachrisen/dataguard/store/sqlstore"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// objectStore is what the commands need from the host store.
type objectStore interface {
	dataguard.ObjectStore
	Put(ctx context.Context, objs ...*dataguard.Object) error
}

// memObjects adapts memstore.Objects to objectStore.
type memObjects struct {
	*memstore.Objects
}

func (m memObjects) Put(_ context.Context, objs ...*dataguard.Object) error {
	return m.Objects.Put(objs...)
}

// app holds the components wired from the configuration.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	schemas   *dataguard.Schemas
	rules     *dataguard.RuleSet
	objects   objectStore
	results   compliance.ResultStore
	registry  *compliance.Registry
	discovery *compliance.Discovery
	runner    *compliance.Runner
	hook      *compliance.Hook
	metrics   *prometheus.Registry
	closers   []io.Closer
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  newLogger(cfg, os.Stderr),
		metrics: prometheus.NewRegistry(),
	}

	var err error
	if a.schemas, err = cfg.BuildSchemas(); err != nil {
		return nil, errors.Wrap(err, "building schemas")
	}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.rules = dataguard.NewRuleSet(a.schemas)
	if cfg.RulesFile != "" {
		if err := config.LoadRules(cfg.RulesFile, a.rules); err != nil {
			a.Close()
			return nil, errors.Wrap(err, "loading rules")
		}
	}
	validator := dataguard.NewValidator(a.rules,
		dataguard.WithTemplater(render.NewPlush()),
		dataguard.WithObjectStore(a.objects),
		dataguard.WithLogger(a.logger))

	a.registry = compliance.NewRegistry()
	if err := a.registry.RegisterRuleChecks(validator, cfg.EntityTypes...); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "registering rule checks")
	}

	m := compliance.NewMetrics(a.metrics)
	a.discovery = &compliance.Discovery{
		Registry: a.registry,
		Sources:  cfg.BuildSources(a.logger),
		Loader:   source.NewLoader(a.schemas, source.WithLogger(a.logger)),
		Logger:   a.logger,
		Metrics:  m,
	}
	a.runner = compliance.NewRunner(a.results, a.objects, a.schemas,
		compliance.WithDiscovery(a.discovery),
		compliance.WithLogger(a.logger),
		compliance.WithMetrics(m))
	a.hook = &compliance.Hook{Validator: validator, Discovery: a.discovery, Runner: a.runner}
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case "memory":
		a.objects = memObjects{memstore.NewObjects()}
		a.results = memstore.NewResults()
	default:
		db, err := sqlstore.Open(ctx, a.cfg.Store.Path)
		if err != nil {
			return errors.Wrapf(err, "opening %s", a.cfg.Store.Path)
		}
		a.closers = append(a.closers, db)
		a.objects = db.Objects()
		a.results = db.Results()
	}

	if a.cfg.Store.Results == "badger" {
		rs, err := badgerstore.Open(badgerstore.Config{Path: a.cfg.Store.BadgerPath, Logger: a.logger})
		if err != nil {
			return errors.Wrapf(err, "opening %s", a.cfg.Store.BadgerPath)
		}
		a.closers = append(a.closers, rs)
		a.results = rs
	}
	return nil
}

// Close releases the stores.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}
	a.closers = nil
}
