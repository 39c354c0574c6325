package export

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DownloadIncrementer atomically adds one to an item's download counter.
type DownloadIncrementer interface {
	IncrementDownloadCount(ctx context.Context, id string) error
}

// UsageCounter records downloads in the background. Increments outlive the
// request that triggered them: a client that disconnects after some entries
// were flushed still has those entries counted.
type UsageCounter struct {
	repo    DownloadIncrementer
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewUsageCounter creates a counter whose increments each get up to timeout
// to reach repo.
func NewUsageCounter(repo DownloadIncrementer, log *zap.Logger, timeout time.Duration) *UsageCounter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UsageCounter{repo: repo, log: log.Named("usage_counter"), timeout: timeout}
}

// Record schedules one increment for id and returns immediately.
func (c *UsageCounter) Record(ctx context.Context, id string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		if err := c.repo.IncrementDownloadCount(ctx, id); err != nil {
			c.log.Warn("download count increment failed", zap.String("media_id", id), zap.Error(err))
		}
	}()
}

// Wait blocks until every scheduled increment has finished.
func (c *UsageCounter) Wait() {
	c.wg.Wait()
}
