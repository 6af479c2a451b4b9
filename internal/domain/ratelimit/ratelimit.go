// Package ratelimit implements a per-client sliding-window request limiter.
//
// Each client keeps a log of request timestamps inside the trailing window.
// A request is permitted while the log holds fewer than the configured
// maximum; the check and the insertion happen atomically under that client's
// lock, so two clients never contend with each other. A background sweeper
// drops clients that have been idle longer than the window plus a grace
// period, bounding memory.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/okian/topple/pkg/metrics"
)

// Default limiter configuration constants.
const (
	defaultWindow          = 60 * time.Second
	defaultMaxRequests     = 10
	defaultGracePeriod     = 30 * time.Second
	defaultCleanupInterval = 1 * time.Minute
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Permitted bool
	Remaining int       // requests left in the current window
	ResetAt   time.Time // when the oldest request falls out of the window
}

// clientWindow holds one client's request log. stamps is ordered oldest
// first and only ever contains timestamps inside the trailing window.
type clientWindow struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

// Limiter tracks request windows per client id.
type Limiter struct {
	window          time.Duration
	maxRequests     int
	gracePeriod     time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.RWMutex // guards the clients map, not the windows
	clients map[string]*clientWindow

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// New constructs a Limiter and starts its background sweeper.
func New(ctx context.Context, opts ...Option) *Limiter {
	l := &Limiter{
		window:          defaultWindow,
		maxRequests:     defaultMaxRequests,
		gracePeriod:     defaultGracePeriod,
		cleanupInterval: defaultCleanupInterval,
		now:             time.Now,
		clients:         make(map[string]*clientWindow),
		stopChan:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.startSweeper(ctx)
	return l
}

// Allow reports whether a request from clientID is permitted right now and
// records it if so. The first request from a new client is always permitted.
// A canceled context returns ctx.Err() without consuming budget; callers must
// not read it as a rate-limit denial.
func (l *Limiter) Allow(ctx context.Context, clientID string) (Decision, error) {
	now := l.now()

	// Cheap cancellation check before touching shared state.
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	cw := l.windowFor(clientID)

	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.lastSeen = now
	cutoff := now.Add(-l.window)

	// Drop timestamps that slid out of the window.
	kept := cw.stamps[:0]
	for _, ts := range cw.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	cw.stamps = kept

	if len(cw.stamps) >= l.maxRequests {
		metrics.RecordRateLimitDenial()
		return Decision{
			Permitted: false,
			Remaining: 0,
			ResetAt:   cw.stamps[0].Add(l.window),
		}, nil
	}

	cw.stamps = append(cw.stamps, now)
	return Decision{
		Permitted: true,
		Remaining: l.maxRequests - len(cw.stamps),
		ResetAt:   cw.stamps[0].Add(l.window),
	}, nil
}

// windowFor returns the client's window, creating it on first sight.
func (l *Limiter) windowFor(clientID string) *clientWindow {
	l.mu.RLock()
	cw, ok := l.clients[clientID]
	l.mu.RUnlock()
	if ok {
		return cw
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cw, ok = l.clients[clientID]; ok {
		return cw
	}
	cw = &clientWindow{}
	l.clients[clientID] = cw
	return cw
}

// ClientCount returns the number of clients currently tracked.
func (l *Limiter) ClientCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}

// startSweeper runs the idle-client garbage collector until ctx or Close.
func (l *Limiter) startSweeper(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// sweep removes clients idle for longer than window + grace.
func (l *Limiter) sweep() {
	horizon := l.now().Add(-(l.window + l.gracePeriod))

	l.mu.Lock()
	for id, cw := range l.clients {
		cw.mu.Lock()
		idle := cw.lastSeen.Before(horizon)
		cw.mu.Unlock()
		if idle {
			delete(l.clients, id)
		}
	}
	remaining := len(l.clients)
	l.mu.Unlock()

	metrics.UpdateRateLimitClients(remaining)
}

// Close stops the background sweeper.
func (l *Limiter) Close() error {
	select {
	case <-l.stopChan:
	default:
		close(l.stopChan)
	}
	l.wg.Wait()
	return nil
}
