package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle of the process-wide index.
type State int32

const (
	StateUninitialized State = iota
	StateBuilding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// BuildFunc produces a fresh index.
type BuildFunc func(ctx context.Context) (*Index, error)

const buildKey = "index"

// Cache builds the index on first use and hands the same instance to every
// later caller. Concurrent callers that arrive while a build is running wait
// for that build instead of starting another. A failed build leaves the cache
// empty so the next Get tries again.
type Cache struct {
	build   BuildFunc
	timeout time.Duration
	logger  *zap.Logger

	group singleflight.Group

	mu    sync.RWMutex
	idx   *Index
	state State
}

// NewCache wraps build. A positive timeout bounds each build attempt.
func NewCache(build BuildFunc, timeout time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{build: build, timeout: timeout, logger: logger}
}

// State reports where the cache is in its lifecycle.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Get returns the ready index, building it if needed. The build itself is not
// cancelled when ctx is; only this caller stops waiting.
func (c *Cache) Get(ctx context.Context) (*Index, error) {
	c.mu.RLock()
	idx := c.idx
	c.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	ch := c.group.DoChan(buildKey, func() (any, error) {
		return c.runBuild(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	}
}

func (c *Cache) runBuild(ctx context.Context) (*Index, error) {
	c.mu.Lock()
	if c.idx != nil {
		idx := c.idx
		c.mu.Unlock()
		return idx, nil
	}
	c.state = StateBuilding
	c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Info("building index")
	started := time.Now()
	idx, err := c.build(ctx)
	if err == nil && idx == nil {
		err = ErrIndexNotReady
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateUninitialized
		c.logger.Error("index build failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return nil, fmt.Errorf("build index: %w", err)
	}

	c.idx = idx
	c.state = StateReady
	c.logger.Info("index ready",
		zap.Int("chunks", idx.Len()),
		zap.Int("dimension", idx.Dimension()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return idx, nil
}
