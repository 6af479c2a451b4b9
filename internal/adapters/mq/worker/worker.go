// Package worker runs the background reconcilers that replay failed
// leaderboard updates from the queue.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/topple/internal/adapters/mq/queue"
	"github.com/okian/topple/internal/adapters/repository/board"
	"github.com/okian/topple/internal/domain/model"
	"github.com/okian/topple/pkg/logger"
	"github.com/okian/topple/pkg/metrics"
)

// Reconcile policy constants.
const (
	// maxAttempts before giving up on per-record retries and rebuilding.
	maxAttempts = 3
	// retryDelay spaces out re-enqueued attempts.
	retryDelay = 250 * time.Millisecond
	// workerShutdownTimeout bounds how long Stop waits per worker.
	workerShutdownTimeout = 5 * time.Second
)

// Updater is the board surface workers write to. board.Store satisfies it.
type Updater interface {
	Update(ctx context.Context, rec model.ScoreRecord, submissionCount int) (board.Slot, bool, error)
	Rebuild(ctx context.Context) (int, error)
}

// TaskQueue defines how workers receive and re-enqueue tasks.
type TaskQueue interface {
	Enqueue(ctx context.Context, t queue.Task) bool
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Reconciler drains the queue, retrying leaderboard folds until they stick
// or the table gets rebuilt from the ledger.
type Reconciler struct {
	queue   TaskQueue
	updater Updater
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewReconciler creates a single reconcile worker.
func NewReconciler(q TaskQueue, updater Updater, name string) *Reconciler {
	return &Reconciler{
		queue:    q,
		updater:  updater,
		name:     name,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named(name),
	}
}

// Run processes tasks until ctx is canceled or the queue closes.
func (r *Reconciler) Run(ctx context.Context) {
	defer close(r.done)

	tasks := r.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			if err := r.process(ctx, t); err != nil {
				r.logger.Error(ctx, "reconcile failed",
					logger.String("submissionID", t.Record.SubmissionID),
					logger.Error(err),
				)
			}
		}
	}
}

// process retries one leaderboard fold.
func (r *Reconciler) process(ctx context.Context, t queue.Task) error {
	metrics.RecordReconcileRetry()

	_, _, err := r.updater.Update(ctx, t.Record, t.SubmissionCount)
	if err == nil {
		return nil
	}
	metrics.RecordErrorByComponent("worker", "reconcile_update_failed")

	t.Attempts++
	if t.Attempts < maxAttempts {
		time.Sleep(retryDelay)
		if r.queue.Enqueue(ctx, t) {
			return nil
		}
	}

	// Retries exhausted or queue saturated: the ledger already holds the
	// record, so a rebuild restores consistency.
	if _, rerr := r.updater.Rebuild(ctx); rerr != nil {
		return fmt.Errorf("update: %w; rebuild: %w", err, rerr)
	}
	r.logger.Warn(ctx, "leaderboard rebuilt after repeated update failures",
		logger.String("submissionID", t.Record.SubmissionID),
		logger.Int("attempts", t.Attempts),
	)
	return nil
}

// Shutdown stops the worker, waiting up to the context deadline.
func (r *Reconciler) Shutdown(ctx context.Context) error {
	close(r.shutdown)
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool runs a fixed set of reconcilers.
type Pool struct {
	workers []*Reconciler
	logger  logger.Logger
}

// NewPool creates workerCount reconcilers over the shared queue.
func NewPool(workerCount int, q TaskQueue, updater Updater) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*Reconciler, workerCount),
		logger:  logger.Get().Named("reconcile-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewReconciler(q, updater, "reconciler-"+strconv.Itoa(i))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop shuts down all workers, bounding the wait per worker.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker did not stop in time", logger.Error(err))
		}
		cancel()
	}
}
