package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vsporte/fhm-matches/internal/logger"
	"github.com/vsporte/fhm-matches/internal/match"
	"github.com/vsporte/fhm-matches/internal/storage"
)

const (
	DefaultTTL      = time.Hour
	DefaultErrorTTL = 5 * time.Minute
)

// Runner performs one pipeline run and returns the snapshot it wrote
type Runner interface {
	Run(ctx context.Context) (*match.Snapshot, error)
}

// Loader reads the persisted snapshot
type Loader interface {
	Load() (*match.Snapshot, error)
}

// Result is a snapshot plus whether it was served without a run
type Result struct {
	Snapshot *match.Snapshot
	Cached   bool
}

// Options tune an Accessor
type Options struct {
	TTL time.Duration
	// ErrorTTL applies to snapshots that record a failed run
	ErrorTTL time.Duration
	Now      func() time.Time
	Metrics  *logger.Metrics
}

// Accessor is the cache in front of the pipeline
type Accessor struct {
	runner Runner
	store  Loader
	opts   Options

	base   context.Context
	cancel context.CancelFunc

	group singleflight.Group
	runMu sync.Mutex

	mu      sync.RWMutex
	current *match.Snapshot
}

// New returns an Accessor. Close cancels any run in progress.
func New(runner Runner, store Loader, opts Options) *Accessor {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ErrorTTL <= 0 {
		opts.ErrorTTL = DefaultErrorTTL
	}
	if opts.ErrorTTL > opts.TTL {
		opts.ErrorTTL = opts.TTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = logger.DefaultMetrics()
	}

	base, cancel := context.WithCancel(context.Background())
	return &Accessor{
		runner: runner,
		store:  store,
		opts:   opts,
		base:   base,
		cancel: cancel,
	}
}

// Close cancels in-flight runs
func (a *Accessor) Close() {
	a.cancel()
}

// Get returns the current snapshot if it is fresh, otherwise runs the pipeline.
func (a *Accessor) Get(ctx context.Context) (*Result, error) {
	if snap, ok := a.fresh(); ok {
		a.opts.Metrics.IncrCounter("cache.hits")
		return &Result{Snapshot: snap, Cached: true}, nil
	}
	a.opts.Metrics.IncrCounter("cache.misses")
	return a.run(ctx, "get", true)
}

// Refresh runs the pipeline regardless of freshness.
func (a *Accessor) Refresh(ctx context.Context) (*Result, error) {
	a.opts.Metrics.IncrCounter("cache.refreshes")
	return a.run(ctx, "refresh", false)
}

// Stale reports whether the next Get would trigger a run
func (a *Accessor) Stale() bool {
	_, ok := a.fresh()
	return !ok
}

func (a *Accessor) run(ctx context.Context, key string, recheck bool) (*Result, error) {
	ch := a.group.DoChan(key, func() (interface{}, error) {
		a.runMu.Lock()
		defer a.runMu.Unlock()

		// Another run may have finished while we waited for the lock.
		if recheck {
			if snap, ok := a.fresh(); ok {
				return &Result{Snapshot: snap, Cached: true}, nil
			}
		}

		snap, err := a.runner.Run(a.base)
		if err != nil {
			return nil, err
		}
		a.set(snap)
		return &Result{Snapshot: snap}, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("running pipeline: %w", res.Err)
		}
		return res.Val.(*Result), nil
	}
}

func (a *Accessor) fresh() (*match.Snapshot, bool) {
	snap := a.latest()
	if snap == nil {
		return nil, false
	}

	ttl := a.opts.TTL
	if snap.Failed() {
		ttl = a.opts.ErrorTTL
	}
	return snap, a.opts.Now().Sub(snap.LastUpdate) < ttl
}

// latest returns the in-memory snapshot, loading the persisted one on first use.
func (a *Accessor) latest() *match.Snapshot {
	a.mu.RLock()
	snap := a.current
	a.mu.RUnlock()
	if snap != nil {
		return snap
	}

	loaded, err := a.store.Load()
	if err != nil {
		if !errors.Is(err, storage.ErrNoSnapshot) {
			logger.Warn("loading snapshot failed", logger.Fields{"error": err.Error()})
		}
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		a.current = loaded
	}
	return a.current
}

func (a *Accessor) set(snap *match.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = snap
}
