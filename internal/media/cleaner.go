package media

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"sync"
	"time"
)

// CleanerConfig controls the concurrency characteristics of the cleaner.
type CleanerConfig struct {
	QueueSize int
	Workers   int
}

// Cleaner removes replaced or deleted media assets in the background so a
// profile update or video deletion never waits on the object store.
type Cleaner struct {
	store  AssetStore
	logger *slog.Logger

	jobs   chan cleanJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

type cleanJob struct {
	kind    Kind
	assetID string
}

var errCleanerClosed = errors.New("media cleaner closed")

// NewCleaner constructs a background worker pool that deletes assets.
func NewCleaner(store AssetStore, cfg CleanerConfig, logger *slog.Logger) *Cleaner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Cleaner{
		store:  store,
		logger: logger,
		jobs:   make(chan cleanJob, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}

	return c
}

// Enqueue schedules removal of the supplied asset. Empty references are
// ignored so callers can pass optional fields unconditionally.
func (c *Cleaner) Enqueue(ctx context.Context, kind Kind, assetID string) error {
	if assetID == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errCleanerClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.jobs <- cleanJob{kind: kind, assetID: assetID}:
		return nil
	}
}

// Shutdown stops accepting new jobs and waits for the worker pool to drain
// everything already queued. When ctx expires before the drain completes the
// pool is cancelled and in-flight deletes are abandoned.
func (c *Cleaner) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.jobs)
	})

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		c.cancel()
		return ctx.Err()
	case <-done:
		c.cancel()
		return nil
	}
}

func (c *Cleaner) worker() {
	defer c.wg.Done()

	for job := range c.jobs {
		c.handleJob(job)
	}
}

func (c *Cleaner) handleJob(job cleanJob) {
	if c.store == nil {
		c.logger.Error("media cleaner missing asset store")
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	key := path.Join(string(job.kind), job.assetID)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Error("asset cleanup failed", "kind", job.kind, "assetId", job.assetID, "error", err)
	}
}
