// Package janitor runs periodic cleanup of expired rows.
package janitor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Task deletes stale rows older than now and reports how many were removed.
type Task struct {
	Name  string
	Purge func(ctx context.Context, now time.Time) (int64, error)
}

// Run executes every task once per interval until ctx is done. Task errors are
// logged and do not stop the loop.
func Run(ctx context.Context, interval time.Duration, log *zap.Logger, tasks ...Task) {
	if interval <= 0 || len(tasks) == 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			Sweep(ctx, now, log, tasks...)
		}
	}
}

// Sweep runs each task once.
func Sweep(ctx context.Context, now time.Time, log *zap.Logger, tasks ...Task) {
	for _, task := range tasks {
		n, err := task.Purge(ctx, now)
		if err != nil {
			log.Warn("purge failed", zap.String("task", task.Name), zap.Error(err))
			continue
		}
		if n > 0 {
			log.Info("purged", zap.String("task", task.Name), zap.Int64("rows", n))
		}
	}
}
