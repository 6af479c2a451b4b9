// Package service wires the ingestion pipeline: validation, rate limiting,
// replay detection, the durable ledger and the derived leaderboard.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/topple/internal/adapters/mq/queue"
	"github.com/okian/topple/internal/adapters/mq/worker"
	"github.com/okian/topple/internal/adapters/repository/board"
	"github.com/okian/topple/internal/adapters/repository/ledger"
	"github.com/okian/topple/internal/domain/model"
	"github.com/okian/topple/internal/domain/ratelimit"
	"github.com/okian/topple/internal/domain/replay"
	"github.com/okian/topple/internal/domain/validate"
	"github.com/okian/topple/pkg/logger"
	"github.com/okian/topple/pkg/metrics"
)

// Service orchestrates score ingestion and serves leaderboard reads.
type Service struct {
	mu sync.RWMutex

	// Core components
	ledger    ledger.Ledger
	board     board.Store
	validator *validate.Validator
	limiter   *ratelimit.Limiter
	guard     replay.Guard
	queue     *queue.InMemoryQueue
	pool      *worker.Pool

	// Configuration
	ledgerPath    string
	boardSize     int
	rateWindow    time.Duration
	rateMax       int
	minSurvival   float64
	maxSurvival   float64
	clockSkew     time.Duration
	retention     time.Duration
	pruneInterval time.Duration
	queueSize     int
	workerCount   int
	replaySize    int
	now           func() time.Time

	// Injected ledger (tests); when nil, Start opens the SQLite ledger.
	injectedLedger ledger.Ledger

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		ledgerPath:    "topple.db",
		boardSize:     10,
		rateWindow:    60 * time.Second,
		rateMax:       10,
		minSurvival:   0.05,
		maxSurvival:   20.0,
		clockSkew:     10 * time.Minute,
		retention:     90 * 24 * time.Hour,
		pruneInterval: time.Hour,
		queueSize:     10_000,
		workerCount:   2,
		replaySize:    100_000,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components. The leaderboard is
// rebuilt from the ledger so a restart never loses ranking state.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting score service...")

	if s.injectedLedger != nil {
		s.ledger = s.injectedLedger
	} else {
		l, err := ledger.Open(s.ledgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		s.ledger = l
	}

	s.board = board.NewMemoryStore(s.ledger,
		board.WithCapacity(s.boardSize),
		board.WithClock(s.now),
	)
	if _, err := s.board.Rebuild(ctx); err != nil {
		return fmt.Errorf("initial rebuild: %w", err)
	}

	s.validator = validate.New(
		validate.WithSurvivalBounds(s.minSurvival, s.maxSurvival),
		validate.WithClockSkew(s.clockSkew),
	)
	s.limiter = ratelimit.New(ctx,
		ratelimit.WithWindow(s.rateWindow),
		ratelimit.WithMaxRequests(s.rateMax),
	)
	s.guard = replay.NewMemoryGuard(
		replay.WithMaxSize(s.replaySize),
	)
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
	)

	s.pool = worker.NewPool(s.workerCount, s.queue, s.board)
	s.pool.Start(ctx)

	s.startPruner(ctx)

	s.started = true
	s.logger.Info(ctx, "score service started",
		logger.Int("boardSize", s.boardSize),
		logger.Int("workers", s.workerCount),
		logger.String("ledger", s.ledgerPath),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping score service...")

	if s.pool != nil {
		s.pool.Stop()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.limiter != nil {
		_ = s.limiter.Close()
	}
	if s.ledger != nil {
		_ = s.ledger.Close()
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()

	s.started = false
	s.logger.Info(ctx, "score service stopped")
}

// Submit runs the full ingestion pipeline for one submission.
//
// Ordering: validation, replay check, rate limit, prior-best lookup, ledger
// append, leaderboard fold. A committed append is never undone; if the fold
// fails the record is queued for reconciliation and the result carries
// RankingPending.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (model.SubmissionResult, error) {
	if err := ctx.Err(); err != nil {
		return model.SubmissionResult{}, err
	}
	if !s.isStarted() {
		return model.SubmissionResult{}, ErrNotStarted
	}

	sub.ReceivedAt = s.now()

	clientTS, err := s.validator.Check(sub.PlayerTag, sub.SurvivalTime, sub.SessionSignature, sub.ClientTimestamp, sub.ReceivedAt)
	if err != nil {
		metrics.RecordSubmission(metrics.OutcomeRejected)
		metrics.RecordValidationFailure(validate.Reason(err))
		return model.SubmissionResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// Replay check runs before the rate limiter so duplicates don't consume
	// quota; the fingerprint is rolled back if a later stage fails.
	fp := replay.Fingerprint(sub.SessionSignature, sub.PlayerTag, sub.SurvivalTime)
	if s.guard.SeenAndRecord(ctx, fp) {
		metrics.RecordSubmission(metrics.OutcomeDuplicate)
		metrics.RecordReplayRejection()
		return model.SubmissionResult{}, fmt.Errorf("%w: session %s already submitted this score", ErrDuplicate, sub.PlayerTag)
	}

	decision, err := s.limiter.Allow(ctx, sub.ClientID)
	if err != nil {
		// Cancellation mid-pipeline is the caller going away, not a denial.
		s.guard.Unrecord(ctx, fp)
		return model.SubmissionResult{}, err
	}
	if !decision.Permitted {
		s.guard.Unrecord(ctx, fp)
		metrics.RecordSubmission(metrics.OutcomeRateLimited)
		retryAfter := time.Until(decision.ResetAt)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return model.SubmissionResult{}, &RateLimitedError{RetryAfter: retryAfter}
	}

	// Prior best, read before the append so the personal-best delta is
	// computed against the pre-submission state.
	var (
		priorBest float64
		hadPrior  bool
	)
	if best, err := s.ledger.BestFor(ctx, sub.PlayerTag); err == nil {
		priorBest = best.SurvivalTime
		hadPrior = true
	} else if !errors.Is(err, ledger.ErrNoScores) {
		s.guard.Unrecord(ctx, fp)
		return model.SubmissionResult{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	rec := model.NewScoreRecord(sub, clientTS)
	if err := s.ledger.Append(ctx, rec); err != nil {
		s.guard.Unrecord(ctx, fp)
		metrics.RecordSubmission(metrics.OutcomeRejected)
		return model.SubmissionResult{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	count, err := s.ledger.SubmissionCount(ctx, sub.PlayerTag)
	if err != nil {
		// The append committed; a stale count is not worth failing over.
		s.logger.Warn(ctx, "submission count unavailable",
			logger.String("player", sub.PlayerTag), logger.Error(err))
		count = 0
	}

	result := model.SubmissionResult{
		Accepted:        true,
		SubmissionID:    rec.SubmissionID,
		SubmissionCount: count,
		PersonalBest:    !hadPrior || rec.SurvivalTime > priorBest,
	}
	if result.PersonalBest {
		if hadPrior {
			result.PersonalBestDelta = rec.SurvivalTime - priorBest
		} else {
			result.PersonalBestDelta = rec.SurvivalTime
		}
		metrics.RecordPersonalBest()
	}

	slot, changed, err := s.board.Update(ctx, rec, count)
	switch {
	case err != nil:
		// The ledger is the source of truth; report partial success and let
		// the reconcilers repair the board.
		s.logger.Error(ctx, "leaderboard update failed; queued for reconcile",
			logger.String("submissionID", rec.SubmissionID), logger.Error(err))
		result.RankingPending = true
		result.Message = "score recorded; ranking pending"
		metrics.RecordSubmission(metrics.OutcomePending)
		if !s.queue.Enqueue(ctx, queue.Task{Record: rec, SubmissionCount: count}) {
			s.scheduleRebuild()
		}
		return result, nil
	case changed:
		result.Rank = slot.Rank
	default:
		// Board untouched; the player may still hold a slot from before.
		if held, err := s.board.RankOf(ctx, sub.PlayerTag); err == nil {
			result.Rank = held.Rank
		}
	}

	result.Message = buildMessage(result, changed)
	if result.Rank > 0 {
		metrics.RecordSubmission(metrics.OutcomeAccepted)
	} else {
		metrics.RecordSubmission(metrics.OutcomeUnranked)
	}
	return result, nil
}

// buildMessage picks the human-readable summary for a result.
func buildMessage(r model.SubmissionResult, changed bool) string {
	switch {
	case changed && r.Rank == 1:
		return "new #1 on the leaderboard"
	case changed && r.PersonalBest:
		return fmt.Sprintf("new personal best, ranked #%d", r.Rank)
	case r.Rank > 0:
		return fmt.Sprintf("score recorded; still ranked #%d", r.Rank)
	default:
		return "score recorded but did not make the leaderboard"
	}
}

// scheduleRebuild repairs the board in the background when the reconcile
// queue cannot absorb a failed fold.
func (s *Service) scheduleRebuild() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.board.Rebuild(ctx); err != nil {
			s.logger.Error(ctx, "background rebuild failed", logger.Error(err))
		}
	}()
}

// Top returns the first n leaderboard slots.
func (s *Service) Top(ctx context.Context, n int) ([]board.Slot, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.board.Top(ctx, n)
}

// RankOf returns a player's slot, or board.ErrNotRanked.
func (s *Service) RankOf(ctx context.Context, playerTag string) (board.Slot, error) {
	if !s.isStarted() {
		return board.Slot{}, ErrNotStarted
	}
	return s.board.RankOf(ctx, playerTag)
}

// BoardMeta returns the table size, last-update time and content ETag for
// conditional caching.
func (s *Service) BoardMeta(ctx context.Context) (int, time.Time, string) {
	if !s.isStarted() {
		return 0, time.Time{}, ""
	}
	return s.board.Size(ctx), s.board.LastUpdated(ctx), s.board.ETag(ctx)
}

// Rebuild forces a full leaderboard rebuild from the ledger.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	if !s.isStarted() {
		return 0, ErrNotStarted
	}
	return s.board.Rebuild(ctx)
}

// startPruner runs retention pruning on the configured interval. Pruning
// may delete records backing leaderboard slots, so a successful prune with
// deletions triggers a rebuild.
func (s *Service) startPruner(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.pruneOnce(ctx)
			}
		}
	}()
}

// pruneOnce performs a single retention pass.
func (s *Service) pruneOnce(ctx context.Context) {
	horizon := s.now().Add(-s.retention)
	pruned, err := s.ledger.Prune(ctx, horizon)
	if err != nil {
		s.logger.Error(ctx, "retention prune failed", logger.Error(err))
		return
	}
	if pruned == 0 {
		return
	}
	s.logger.Info(ctx, "pruned ledger records",
		logger.Int("count", pruned), logger.Time("horizon", horizon))
	if _, err := s.board.Rebuild(ctx); err != nil {
		s.logger.Error(ctx, "rebuild after prune failed", logger.Error(err))
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"boardSize":   s.boardSize,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		stats["boardEntries"] = s.board.Size(ctx)
		stats["queueLength"] = s.queue.Len(ctx)
		stats["trackedClients"] = s.limiter.ClientCount()
		stats["replayEntries"] = s.guard.Size()
		if count, err := s.ledger.Count(ctx); err == nil {
			stats["ledgerRecords"] = count
		}
	}
	return stats
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
