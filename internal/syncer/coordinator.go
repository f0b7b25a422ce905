// Package syncer drains the mutation queue against the remote API whenever
// connectivity allows.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/fitito/internal/localdb"
	"github.com/claude/fitito/internal/models"
	"github.com/claude/fitito/internal/netstate"
	"github.com/claude/fitito/internal/offlinecache"
	"github.com/claude/fitito/internal/queue"
	"golang.org/x/sync/singleflight"
)

// Remote is the write side of the remote API, one method per mutation kind.
type Remote interface {
	UpsertSessionHistory(ctx context.Context, p *models.SessionHistoryPayload) (int64, error)
	PutTrainingSession(ctx context.Context, s *models.TrainingSession) error
	PutRoutineWeekDay(ctx context.Context, p *models.RoutineWeekPayload) error
}

// Invalidator is a downstream cache of session-history queries.
type Invalidator interface {
	InvalidateHistory()
}

// PassResult summarizes one sync pass.
type PassResult struct {
	Attempted int
	Synced    int
	Failed    int
	Swept     int64
}

// Coordinator runs sync passes. Concurrent triggers share the in-flight pass.
type Coordinator struct {
	db          *localdb.DB
	queue       *queue.Queue
	cache       *offlinecache.Cache
	remote      Remote
	invalidates []Invalidator
	log         *slog.Logger
	interval    time.Duration

	group singleflight.Group
}

// New creates a Coordinator. interval is the periodic fallback trigger; zero
// disables it so only connectivity edges and SyncNow start passes.
func New(db *localdb.DB, q *queue.Queue, cache *offlinecache.Cache, remote Remote, interval time.Duration, log *slog.Logger, invalidates ...Invalidator) *Coordinator {
	return &Coordinator{
		db:          db,
		queue:       q,
		cache:       cache,
		remote:      remote,
		invalidates: invalidates,
		log:         log,
		interval:    interval,
	}
}

// Run reacts to edges until ctx is cancelled: every online edge, and every
// tick of the periodic interval, triggers a pass.
func (c *Coordinator) Run(ctx context.Context, edges <-chan netstate.Edge) {
	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.log.Info("sync coordinator started", "interval", c.interval)
	for {
		select {
		case edge := <-edges:
			if !edge.Online {
				continue
			}
			c.log.Info("connectivity restored, syncing")
			c.trigger(ctx)
		case <-tick:
			c.trigger(ctx)
		case <-ctx.Done():
			c.log.Info("sync coordinator stopped")
			return
		}
	}
}

func (c *Coordinator) trigger(ctx context.Context) {
	res, err := c.SyncNow(ctx)
	if err != nil {
		c.log.Error("sync pass failed", "error", err)
		return
	}
	if res.Attempted > 0 {
		c.log.Info("sync pass finished",
			"attempted", res.Attempted,
			"synced", res.Synced,
			"failed", res.Failed,
			"swept", res.Swept,
		)
	}
}

// SyncNow runs a pass, or joins the one already running. A started pass is
// not cancelled with ctx; it runs to the end.
func (c *Coordinator) SyncNow(ctx context.Context) (*PassResult, error) {
	v, err, _ := c.group.Do("pass", func() (any, error) {
		return c.pass(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*PassResult), nil
}

// pass attempts every pending mutation in enqueue order. A failed mutation
// stays pending and does not stop the ones after it. Local storage failures
// abort the pass.
func (c *Coordinator) pass(ctx context.Context) (*PassResult, error) {
	pending, err := c.queue.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending mutations: %w", err)
	}

	res := &PassResult{Attempted: len(pending)}
	for _, m := range pending {
		if err := c.dispatch(ctx, m.Payload); err != nil {
			syncErr := &models.SyncError{Op: string(m.Kind()), Err: err}
			res.Failed++
			c.log.Warn("mutation not synced",
				"mutation_id", m.ID,
				"kind", m.Kind(),
				"retry_count", m.RetryCount+1,
				"retryable", syncErr.Retryable(),
				"error", err,
			)
			if err := c.queue.RecordFailure(ctx, m.ID, err); err != nil {
				return res, err
			}
			continue
		}

		if err := c.retire(ctx, m); err != nil {
			return res, err
		}
		res.Synced++
	}

	swept, err := c.queue.SweepSynced(ctx)
	if err != nil {
		return res, err
	}
	res.Swept = swept

	if res.Synced > 0 {
		for _, inv := range c.invalidates {
			inv.InvalidateHistory()
		}
	}
	return res, nil
}

// dispatch sends a payload to the remote call for its kind.
func (c *Coordinator) dispatch(ctx context.Context, p models.MutationPayload) error {
	switch p := p.(type) {
	case *models.SessionHistoryPayload:
		_, err := c.remote.UpsertSessionHistory(ctx, p)
		return err
	case *models.SessionCreatedPayload:
		return c.remote.PutTrainingSession(ctx, &p.Session)
	case *models.SessionUpdatedPayload:
		return c.remote.PutTrainingSession(ctx, &p.Session)
	case *models.RoutineWeekPayload:
		return c.remote.PutRoutineWeekDay(ctx, p)
	default:
		return fmt.Errorf("no remote call for mutation kind %q", p.Kind())
	}
}

// retire marks a delivered mutation synced. For a completed session the
// offline history copy goes in the same transaction: the remote row is now
// authoritative.
func (c *Coordinator) retire(ctx context.Context, m models.OfflineMutation) error {
	return c.db.WithTx(ctx, func(tx localdb.Execer) error {
		if p, ok := m.Payload.(*models.SessionHistoryPayload); ok {
			if err := c.cache.DeleteTx(ctx, tx, p.ProfileID, p.SessionDate); err != nil {
				return err
			}
		}
		return c.queue.MarkSyncedTx(ctx, tx, m.ID)
	})
}

// Write attempts a remote write immediately and queues it when that fails.
// It reports whether the write was queued. Only local storage errors are
// returned.
func (c *Coordinator) Write(ctx context.Context, p models.MutationPayload) (queued bool, err error) {
	sendErr := c.dispatch(ctx, p)
	if sendErr == nil {
		return false, nil
	}
	c.log.Warn("remote write failed, queueing", "kind", p.Kind(), "error", sendErr)
	if _, err := c.queue.Enqueue(context.WithoutCancel(ctx), p); err != nil {
		return false, err
	}
	return true, nil
}
