package job

import (
	"context"
	"fmt"
	"time"

	"couponhub/internal/service"
	"couponhub/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SubscriptionSweeper runs the subscription lifecycle sweep on a cron schedule.
type SubscriptionSweeper struct {
	subscriptions *service.SubscriptionService
	logger        *logger.Logger
	spec          string
	cron          *cron.Cron
}

func NewSubscriptionSweeper(subscriptions *service.SubscriptionService, log *logger.Logger, spec string) *SubscriptionSweeper {
	return &SubscriptionSweeper{
		subscriptions: subscriptions,
		logger:        log.With("job", "subscription_sweeper"),
		spec:          spec,
	}
}

// Start schedules the sweep and returns. The schedule stops when ctx ends.
func (s *SubscriptionSweeper) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := s.cron.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		s.RunOnce(runCtx)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Infow("subscription sweeper scheduled", "spec", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits up to five seconds for a running sweep to finish.
func (s *SubscriptionSweeper) Stop() {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("subscription sweeper stopped")
	case <-time.After(5 * time.Second):
		s.logger.Warn("subscription sweeper forced to stop")
	}
}

func (s *SubscriptionSweeper) RunOnce(ctx context.Context) *service.SweepReport {
	start := time.Now()
	report, err := s.subscriptions.Sweep(ctx, start)
	if err != nil {
		s.logger.Errorw("subscription sweep failed", "err", err)
	}
	if report != nil {
		s.logger.Infow("subscription sweep finished",
			"canceled", report.Canceled,
			"renewed", report.Renewed,
			"past_due", report.PastDue,
			"locked", report.Locked,
			"failed", report.Failed,
			"took", time.Since(start))
	}
	return report
}
