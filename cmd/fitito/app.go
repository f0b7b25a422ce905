package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/fitito/internal/config"
	"github.com/claude/fitito/internal/history"
	"github.com/claude/fitito/internal/localdb"
	"github.com/claude/fitito/internal/netstate"
	"github.com/claude/fitito/internal/offlinecache"
	"github.com/claude/fitito/internal/queue"
	"github.com/claude/fitito/internal/remote"
	"github.com/claude/fitito/internal/session"
	"github.com/claude/fitito/internal/syncer"
)

// app wires the engine components for one CLI invocation.
type app struct {
	cfg     config.ClientSection
	log     *slog.Logger
	db      *localdb.DB
	queue   *queue.Queue
	cache   *offlinecache.Cache
	store   *session.Store
	reader  *history.Reader
	coord   *syncer.Coordinator
	monitor *netstate.Monitor
}

func openApp(cfg config.ClientSection, log *slog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := localdb.Open(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("opening local state: %w", err)
	}

	q := queue.New(db)
	cache := offlinecache.New(db)
	client := remote.NewClient(cfg.ServerURL, cfg.APIKey, cfg.RequestTimeout).WithRetry(2, 500*time.Millisecond)
	reader := history.NewReader(client, cache, cfg.HistoryCacheSize, log)

	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		queue: q,
		cache: cache,
		store: session.New(db, q, cache, client, log,
			session.WithLocation(loc),
			session.WithProgressMirroring(cfg.MirrorProgress),
		),
		reader:  reader,
		coord:   syncer.New(db, q, cache, client, cfg.SyncInterval, log, reader),
		monitor: netstate.NewMonitor(client, cfg.ProbeInterval, log),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// daemon runs the reachability monitor and the sync coordinator until ctx is
// cancelled. Every online edge triggers a sync pass.
func (a *app) daemon(ctx context.Context) {
	edges := a.monitor.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.coord.Run(ctx, edges)
	}()
	a.monitor.Run(ctx)
	<-done
}
