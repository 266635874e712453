package exporter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ucams-cli/internal/logging"
)

// RefreshLoop re-lists the cameras of every account each interval so the
// resource tokens embedded in stream URLs never go stale between scrapes.
// It returns when ctx is done.
func RefreshLoop(ctx context.Context, src Source, interval time.Duration, logger *zap.Logger) {
	log := logging.OrNop(logger).With(logging.Component("refresh"))
	if interval <= 0 {
		log.Info("periodic refresh disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		refreshAll(ctx, src, log)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func refreshAll(ctx context.Context, src Source, log *zap.Logger) {
	for _, acc := range src() {
		if ctx.Err() != nil {
			return
		}
		cams, err := acc.ListCameras(ctx)
		if err != nil {
			log.Warn("camera refresh failed", logging.Account(acc.Name()), zap.Error(err))
			continue
		}
		log.Debug("cameras refreshed", logging.Account(acc.Name()), zap.Int("count", len(cams)))
	}
}
