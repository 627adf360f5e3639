package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type codeCleaner interface {
	CleanupExpiredCodes(ctx context.Context) (int64, error)
}

// runCodeSweeper deletes expired verification codes every interval until ctx is done
func runCodeSweeper(ctx context.Context, cleaner codeCleaner, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		logger.Info("Expired code sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := cleaner.CleanupExpiredCodes(ctx)
			if err != nil {
				logger.Warn("Failed to delete expired verification codes", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Info("Deleted expired verification codes", zap.Int64("count", deleted))
			}
		}
	}
}
