// Package lockfile provides per-portfolio mutual exclusion that holds
// across processes. Each portfolio gets an advisory OS file lock under
// the storage root plus an in-process slot, so concurrent goroutines
// and concurrent processes both serialize on the same portfolio while
// different portfolios never block each other. Process death releases
// the OS lock automatically; stale lock files are harmless.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout reports that the lock could not be acquired within the
// bounded wait. Retrying later is safe.
var ErrTimeout = errors.New("lock acquisition timed out")

// retryDelay is the poll interval for the OS lock. flock(2) itself
// blocks per attempt; this only paces contention across processes.
const retryDelay = 50 * time.Millisecond

// Registry hands out portfolio-scoped locks backed by files in Dir.
// Timeout bounds each acquisition when the caller's context carries
// no deadline of its own; zero means wait indefinitely.
type Registry struct {
	dir     string
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewRegistry creates a registry whose lock files live in dir.
func NewRegistry(dir string, timeout time.Duration) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &Registry{
		dir:     dir,
		timeout: timeout,
		slots:   make(map[string]chan struct{}),
	}, nil
}

// Path returns the lock file for a portfolio.
func (r *Registry) Path(portfolioID string) string {
	return filepath.Join(r.dir, portfolioID+".lock")
}

func (r *Registry) slot(portfolioID string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[portfolioID]
	if !ok {
		s = make(chan struct{}, 1)
		r.slots[portfolioID] = s
	}
	return s
}

// WithExclusive runs fn while holding the portfolio's lock. The lock
// is released on every exit path, including panics in fn and fn
// returning an error. Acquisition blocks; it fails with ErrTimeout
// when the bounded wait elapses.
func (r *Registry) WithExclusive(ctx context.Context, portfolioID string, fn func() error) error {
	if r.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
	}

	// In-process slot first: flock on separate descriptors would let
	// two goroutines of one process pass on some platforms.
	slot := r.slot(portfolioID)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire lock for %s: %w", portfolioID, ErrTimeout)
	}
	defer func() { <-slot }()

	fl := flock.New(r.Path(portfolioID))
	locked, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("acquire lock for %s: %w", portfolioID, ErrTimeout)
		}
		return fmt.Errorf("acquire lock for %s: %w", portfolioID, err)
	}
	if !locked {
		return fmt.Errorf("acquire lock for %s: %w", portfolioID, ErrTimeout)
	}
	defer fl.Unlock()

	return fn()
}
