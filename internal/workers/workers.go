package workers

import (
	"time"

	"github.com/rs/zerolog/log"
	"signalcrm/internal/engine/usage"
)

// StartUsageSweeper periodically prunes aged records out of every
// organization's usage buffer. Reads already prune lazily; this bounds the
// memory of tenants that send traffic but never query their analytics.
func StartUsageSweeper(rec *usage.Recorder, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			log.Debug().Msg("sweeping usage buffers")
			rec.Sweep()
		}
	}()
}
