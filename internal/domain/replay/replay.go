// Package replay tracks submission fingerprints to reject duplicates.
//
// A fingerprint combines the session signature, player tag and rounded
// survival time, so re-sending the same game session's score is caught even
// though every request gets a fresh server-side submission id.
package replay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Guard records seen submission fingerprints to reject replays.
type Guard interface {
	// SeenAndRecord atomically checks whether the fingerprint was seen and
	// records it if not. Returns true if it was already seen.
	SeenAndRecord(ctx context.Context, fingerprint string) bool

	// Unrecord removes a fingerprint, allowing a retry. Used when a later
	// pipeline stage failed after the fingerprint was recorded.
	Unrecord(ctx context.Context, fingerprint string)

	// Size returns the number of fingerprints currently held.
	Size() int64
}

// Fingerprint derives the replay key for a submission.
func Fingerprint(sessionSignature, playerTag string, survivalTime float64) string {
	return fmt.Sprintf("%s|%s|%.2f", sessionSignature, playerTag, survivalTime)
}

// entry is a node in the eviction list.
type entry struct {
	key  string
	next *entry
}

func (e *entry) reset() {
	e.key = ""
	e.next = nil
}

// memoryGuard is a bounded in-memory Guard. When full it evicts the most
// recently recorded fingerprint first, keeping long-lived entries resident:
// an old score replayed much later is the likelier abuse case.
type memoryGuard struct {
	mu      sync.Mutex
	seen    map[string]*entry
	head    *entry // most recently recorded
	maxSize int
	size    atomic.Int64
	pool    sync.Pool
}

// NewMemoryGuard creates a bounded in-memory Guard.
func NewMemoryGuard(opts ...Option) Guard {
	g := &memoryGuard{
		maxSize: 100_000,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.seen = make(map[string]*entry)
	g.pool = sync.Pool{
		New: func() any { return &entry{} },
	}
	return g
}

// Option applies a configuration option to the guard.
type Option func(*memoryGuard)

// WithMaxSize bounds the number of fingerprints kept in memory.
func WithMaxSize(size int) Option {
	return func(g *memoryGuard) {
		if size > 0 {
			g.maxSize = size
		}
	}
}

func (g *memoryGuard) SeenAndRecord(ctx context.Context, fingerprint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[fingerprint]; ok {
		return true
	}

	if len(g.seen) >= g.maxSize {
		g.evictNewest()
	}

	e := g.pool.Get().(*entry)
	e.key = fingerprint
	e.next = g.head
	g.head = e
	g.seen[fingerprint] = e
	g.size.Add(1)
	return false
}

func (g *memoryGuard) Unrecord(ctx context.Context, fingerprint string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.seen[fingerprint]
	if !ok {
		return
	}
	delete(g.seen, fingerprint)

	if g.head == e {
		g.head = e.next
	} else {
		for cur := g.head; cur != nil; cur = cur.next {
			if cur.next == e {
				cur.next = e.next
				break
			}
		}
	}

	e.reset()
	g.pool.Put(e)
	g.size.Add(-1)
}

// evictNewest drops the head of the list. Caller holds g.mu.
func (g *memoryGuard) evictNewest() {
	if g.head == nil {
		return
	}
	e := g.head
	g.head = e.next
	delete(g.seen, e.key)
	e.reset()
	g.pool.Put(e)
	g.size.Add(-1)
}

func (g *memoryGuard) Size() int64 {
	return g.size.Load()
}
