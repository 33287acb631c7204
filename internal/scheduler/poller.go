package scheduler

import (
	"context"
	"time"

	"opspulse_backend/platform/config"
	"opspulse_backend/platform/logger"
)

// Poller enqueues the periodic passes on their configured intervals. The
// passes themselves are idempotent, so a missed or doubled tick is harmless.
type Poller struct {
	client         *Client
	scanInterval   time.Duration
	ladderInterval time.Duration
	log            *logger.Logger
}

// NewPoller creates the interval poller.
func NewPoller(cfg config.SchedulerConfig, client *Client, log *logger.Logger) *Poller {
	scanInterval := cfg.GetScanInterval()
	if scanInterval <= 0 {
		scanInterval = 5 * time.Minute
	}
	ladderInterval := cfg.GetLadderInterval()
	if ladderInterval <= 0 {
		ladderInterval = 15 * time.Minute
	}
	return &Poller{
		client:         client,
		scanInterval:   scanInterval,
		ladderInterval: ladderInterval,
		log:            log,
	}
}

// Run ticks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if p == nil || p.client == nil {
		return
	}

	scanTicker := time.NewTicker(p.scanInterval)
	defer scanTicker.Stop()
	ladderTicker := time.NewTicker(p.ladderInterval)
	defer ladderTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-scanTicker.C:
			if err := p.client.EnqueueScanPass(ctx, nil); err != nil {
				p.log.Warn("failed to enqueue scan pass", "error", err)
			}
		case <-ladderTicker.C:
			if err := p.client.EnqueueLadderPass(ctx); err != nil {
				p.log.Warn("failed to enqueue ladder pass", "error", err)
			}
		}
	}
}
