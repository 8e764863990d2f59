package job

import (
	"context"
	"time"

	"couponhub/internal/service"
	"couponhub/pkg/logger"
)

// TopUpTimeoutJob closes recharge orders nobody paid in time and reopens
// orders left in VERIFYING by an interrupted verification.
type TopUpTimeoutJob struct {
	topUps     *service.TopUpService
	logger     *logger.Logger
	stopCh     chan struct{}
	interval   time.Duration
	stuckAfter time.Duration
	batchSize  int
}

func NewTopUpTimeoutJob(topUps *service.TopUpService, log *logger.Logger) *TopUpTimeoutJob {
	return &TopUpTimeoutJob{
		topUps:     topUps,
		logger:     log.With("job", "topup_timeout"),
		stopCh:     make(chan struct{}),
		interval:   10 * time.Second,
		stuckAfter: 5 * time.Minute,
		batchSize:  100,
	}
}

func (j *TopUpTimeoutJob) Start(ctx context.Context) {
	j.logger.Info("top-up timeout job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("top-up timeout job stopped by context")
			return
		case <-j.stopCh:
			j.logger.Info("top-up timeout job stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx, time.Now())
		}
	}
}

func (j *TopUpTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *TopUpTimeoutJob) RunOnce(ctx context.Context, now time.Time) {
	closed, err := j.topUps.CloseExpired(ctx, now, j.batchSize)
	if err != nil {
		j.logger.Errorw("close expired top-ups", "err", err)
	} else if closed > 0 {
		j.logger.Infow("expired top-ups closed", "count", closed)
	}

	reopened, err := j.topUps.ReopenStuck(ctx, now.Add(-j.stuckAfter), j.batchSize)
	if err != nil {
		j.logger.Errorw("reopen stuck top-ups", "err", err)
	} else if reopened > 0 {
		j.logger.Infow("stuck top-ups reopened", "count", reopened)
	}
}
