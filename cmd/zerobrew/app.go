package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/zerobrew/zerobrew/internal/bottle"
	"github.com/zerobrew/zerobrew/internal/build"
	"github.com/zerobrew/zerobrew/internal/config"
	"github.com/zerobrew/zerobrew/internal/fetch"
	"github.com/zerobrew/zerobrew/internal/formula"
	"github.com/zerobrew/zerobrew/internal/gc"
	"github.com/zerobrew/zerobrew/internal/httputil"
	"github.com/zerobrew/zerobrew/internal/index"
	"github.com/zerobrew/zerobrew/internal/linker"
	"github.com/zerobrew/zerobrew/internal/log"
	"github.com/zerobrew/zerobrew/internal/platform"
	"github.com/zerobrew/zerobrew/internal/resolver"
	"github.com/zerobrew/zerobrew/internal/scheduler"
	"github.com/zerobrew/zerobrew/internal/store"
)

// app wires together every core component against a single resolved Config,
// the shared dependency graph every command operates against.
type app struct {
	cfg *config.Config

	index       *index.Client
	fetcher     *fetch.Fetcher
	store       *store.Store
	db          *store.DB
	linker      *linker.Linker
	builder     *build.Executor
	resolver    *resolver.Resolver
	scheduler   *scheduler.Scheduler
	collector   *gc.Collector
	platformTag string
}

// bottleAvailability adapts the package-level bottle.Available function to
// resolver.BottleAvailability's method-shaped interface.
type bottleAvailability struct{}

func (bottleAvailability) Available(rec *formula.Record, platformTag string) bool {
	return bottle.Available(rec, platformTag)
}

// newApp resolves config and wires every component. It does not perform
// network I/O; the index client fetches lazily on first Get/LoadAll.
func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	platformTag, err := platform.DetectTag()
	if err != nil {
		return nil, fmt.Errorf("detecting platform: %w", err)
	}

	db, err := store.OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	idx := index.New(cfg, log.Default())
	httpClient := httputil.NewSecureClient(httputil.DefaultOptions())
	fetcher := fetch.New(cfg.CacheDir, httpClient)
	st := store.New(cfg)
	lk := linker.New(cfg)
	builder := build.New(cfg, fetcher)

	res := resolver.New(idx, bottleAvailability{}, platformTag, runtime.GOOS == "darwin")
	sched := scheduler.New(cfg, st, db, lk, builder, fetcher, platformTag, cfg.Concurrency)
	collector := gc.New(cfg, st, db, lk)

	return &app{
		cfg:         cfg,
		index:       idx,
		fetcher:     fetcher,
		store:       st,
		db:          db,
		linker:      lk,
		builder:     builder,
		resolver:    res,
		scheduler:   sched,
		collector:   collector,
		platformTag: platformTag,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// resolveAndInstall resolves requested into a closure and runs it through
// the scheduler, returning the resolved plan for the caller to report on.
// When link is false, kegs are materialized into the store but not
// projected into the prefix (`install --no-link`).
func (a *app) resolveAndInstall(ctx context.Context, requested []string, mode resolver.Mode, link bool) ([]resolver.PlannedNode, error) {
	nodes, err := a.resolver.ResolveClosure(ctx, requested, mode)
	if err != nil {
		return nil, err
	}

	var runErr error
	if link {
		runErr = a.scheduler.Run(ctx, nodes)
	} else {
		runErr = a.scheduler.RunNoLink(ctx, nodes)
	}
	if runErr != nil {
		return nodes, runErr
	}
	return nodes, nil
}
