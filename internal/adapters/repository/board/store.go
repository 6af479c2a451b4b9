package board

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/topple/internal/domain/model"
	"github.com/okian/topple/pkg/metrics"
)

// defaultCapacity is the default number of ranked slots.
const defaultCapacity = 10

// snapshot is an immutable view of the table. Readers load it atomically
// and never see partial renumbering.
type snapshot struct {
	slots       []Slot
	byTag       map[string]Slot
	lastUpdated time.Time
	etag        string
}

// MemoryStore implements Store with a bounded sorted slice.
//
// All mutations run under a single store-wide mutex: insertion, eviction and
// renumbering touch multiple slots, so per-slot locking cannot keep ranks
// contiguous. Rebuild holds the same mutex across its ledger reads; this is
// the one place a lock spans storage I/O and is the single serialization
// point for leaderboard mutation.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	now      func() time.Time
	source   BestSource

	snap atomic.Pointer[snapshot]
}

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCapacity sets the maximum number of slots (top N).
func WithCapacity(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore constructs an empty leaderboard backed by source for
// rebuilds.
func NewMemoryStore(source BestSource, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		capacity: defaultCapacity,
		now:      time.Now,
		source:   source,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(newSnapshot(nil, time.Time{}))
	return s
}

// ranksBefore reports whether a should rank ahead of b. Higher survival
// time ranks first; ties break by earlier submission, then tag for
// determinism.
func ranksBefore(a, b Slot) bool {
	if a.SurvivalTime != b.SurvivalTime {
		return a.SurvivalTime > b.SurvivalTime
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.PlayerTag < b.PlayerTag
}

// WouldQualify implements Store.WouldQualify.
func (s *MemoryStore) WouldQualify(ctx context.Context, survivalTime float64) bool {
	snap := s.snap.Load()
	if len(snap.slots) < s.capacity {
		return true
	}
	worst := snap.slots[len(snap.slots)-1]
	return survivalTime > worst.SurvivalTime
}

// Update implements Store.Update.
func (s *MemoryStore) Update(ctx context.Context, rec model.ScoreRecord, submissionCount int) (Slot, bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordBoardUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ctx.Err(); err != nil {
		return Slot{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	slots := make([]Slot, 0, len(cur.slots)+1)

	candidate := Slot{
		PlayerTag:       rec.PlayerTag,
		SurvivalTime:    rec.SurvivalTime,
		SubmissionID:    rec.SubmissionID,
		SubmittedAt:     rec.ServerTimestamp,
		SubmissionCount: submissionCount,
		UpdatedAt:       s.now().UTC(),
	}

	if existing, ok := cur.byTag[rec.PlayerTag]; ok {
		// Same player: only an improvement replaces their slot.
		if rec.SurvivalTime <= existing.SurvivalTime {
			return Slot{}, false, nil
		}
		for _, slot := range cur.slots {
			if slot.PlayerTag != rec.PlayerTag {
				slots = append(slots, slot)
			}
		}
	} else {
		slots = append(slots, cur.slots...)
		if len(slots) >= s.capacity {
			worst := slots[len(slots)-1]
			if !ranksBefore(candidate, worst) {
				return Slot{}, false, nil
			}
			slots = slots[:len(slots)-1]
			metrics.RecordBoardEviction()
		}
	}

	// Insert at the candidate's sorted position and renumber.
	pos := len(slots)
	for i, slot := range slots {
		if ranksBefore(candidate, slot) {
			pos = i
			break
		}
	}
	slots = append(slots[:pos], append([]Slot{candidate}, slots[pos:]...)...)
	renumber(slots)

	if err := verify(slots, s.capacity); err != nil {
		metrics.RecordErrorByComponent("board", "invariant_violation")
		return Slot{}, false, err
	}

	s.publish(slots)
	metrics.UpdateBoardSize(len(slots))
	return slots[pos], true, nil
}

// Top implements Store.Top.
func (s *MemoryStore) Top(ctx context.Context, n int) ([]Slot, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	snap := s.snap.Load()
	if n > len(snap.slots) {
		n = len(snap.slots)
	}
	out := make([]Slot, n)
	copy(out, snap.slots[:n])
	return out, nil
}

// RankOf implements Store.RankOf.
func (s *MemoryStore) RankOf(ctx context.Context, playerTag string) (Slot, error) {
	snap := s.snap.Load()
	slot, ok := snap.byTag[playerTag]
	if !ok {
		return Slot{}, fmt.Errorf("%w: %s", ErrNotRanked, playerTag)
	}
	return slot, nil
}

// Rebuild implements Store.Rebuild. The whole table is recomputed from the
// ledger and swapped in as one snapshot; concurrent readers observe either
// the old table or the new one, never a partial state.
func (s *MemoryStore) Rebuild(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	best, err := s.source.BestPerPlayer(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuild: %w", err)
	}
	if len(best) > s.capacity {
		best = best[:s.capacity]
	}

	now := s.now().UTC()
	slots := make([]Slot, 0, len(best))
	for _, rec := range best {
		count, err := s.source.SubmissionCount(ctx, rec.PlayerTag)
		if err != nil {
			return 0, fmt.Errorf("rebuild: %w", err)
		}
		slots = append(slots, Slot{
			PlayerTag:       rec.PlayerTag,
			SurvivalTime:    rec.SurvivalTime,
			SubmissionID:    rec.SubmissionID,
			SubmittedAt:     rec.ServerTimestamp,
			SubmissionCount: count,
			UpdatedAt:       now,
		})
	}
	renumber(slots)

	if err := verify(slots, s.capacity); err != nil {
		return 0, err
	}

	s.publish(slots)
	metrics.RecordBoardRebuild()
	metrics.UpdateBoardSize(len(slots))
	return len(slots), nil
}

// Size implements Store.Size.
func (s *MemoryStore) Size(ctx context.Context) int {
	return len(s.snap.Load().slots)
}

// LastUpdated implements Store.LastUpdated.
func (s *MemoryStore) LastUpdated(ctx context.Context) time.Time {
	return s.snap.Load().lastUpdated
}

// ETag implements Store.ETag.
func (s *MemoryStore) ETag(ctx context.Context) string {
	return s.snap.Load().etag
}

// publish installs a new snapshot. Caller holds s.mu.
func (s *MemoryStore) publish(slots []Slot) {
	s.snap.Store(newSnapshot(slots, s.now().UTC()))
}

func newSnapshot(slots []Slot, updated time.Time) *snapshot {
	byTag := make(map[string]Slot, len(slots))
	for _, slot := range slots {
		byTag[slot.PlayerTag] = slot
	}
	return &snapshot{
		slots:       slots,
		byTag:       byTag,
		lastUpdated: updated,
		etag:        contentETag(slots),
	}
}

// contentETag hashes the table content so equal tables produce equal tags.
func contentETag(slots []Slot) string {
	h := fnv.New64a()
	for _, slot := range slots {
		fmt.Fprintf(h, "%d|%s|%.2f|%s;", slot.Rank, slot.PlayerTag, slot.SurvivalTime, slot.SubmissionID)
	}
	return fmt.Sprintf("%q", fmt.Sprintf("%016x", h.Sum64()))
}

// renumber assigns contiguous 1..len ranks in slice order.
func renumber(slots []Slot) {
	for i := range slots {
		slots[i].Rank = i + 1
	}
}

// verify checks the table invariants: bounded size, contiguous ranks,
// sorted order, one slot per player.
func verify(slots []Slot, capacity int) error {
	if len(slots) > capacity {
		return fmt.Errorf("%w: %d slots exceed capacity %d", ErrInconsistent, len(slots), capacity)
	}
	seen := make(map[string]struct{}, len(slots))
	for i, slot := range slots {
		if slot.Rank != i+1 {
			return fmt.Errorf("%w: rank %d at position %d", ErrInconsistent, slot.Rank, i)
		}
		if _, dup := seen[slot.PlayerTag]; dup {
			return fmt.Errorf("%w: duplicate slot for %s", ErrInconsistent, slot.PlayerTag)
		}
		seen[slot.PlayerTag] = struct{}{}
		if i > 0 && ranksBefore(slot, slots[i-1]) {
			return fmt.Errorf("%w: slots out of order at position %d", ErrInconsistent, i)
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
