package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couponhub/internal/model"

	"gorm.io/gorm"
)

const sweepBatchSize = 200

// SweepReport counts what one lifecycle sweep changed.
type SweepReport struct {
	Canceled int `json:"canceled"`
	Renewed  int `json:"renewed"`
	PastDue  int `json:"past_due"`
	Locked   int `json:"locked"`
	Failed   int `json:"failed"`
}

// Sweep advances time-driven subscription transitions as of now: period-end
// cancellations, renewals, expired trials and past_due grace expiry.
func (s *SubscriptionService) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	report := &SweepReport{}

	ended, err := s.subRepo.ListPeriodEnded(ctx, now, sweepBatchSize)
	if err != nil {
		return report, fmt.Errorf("list ended periods: %w", err)
	}
	for _, sub := range ended {
		if sub.CancelAtPeriodEnd {
			if err := s.cancelAtPeriodEnd(ctx, sub, now); err != nil {
				s.logSweepErr("cancel at period end", sub, err)
				report.Failed++
				continue
			}
			report.Canceled++
			continue
		}

		renewed, err := s.renew(ctx, sub, now)
		if err != nil {
			s.logSweepErr("renew", sub, err)
			report.Failed++
			continue
		}
		if renewed {
			report.Renewed++
		} else {
			report.PastDue++
		}
	}

	trials, err := s.subRepo.ListTrialEnded(ctx, now, sweepBatchSize)
	if err != nil {
		return report, fmt.Errorf("list ended trials: %w", err)
	}
	for _, sub := range trials {
		err := s.transition(ctx, sub, model.SubscriptionStatusPastDue, now, map[string]interface{}{
			"past_due_since": now,
		})
		if err != nil {
			s.logSweepErr("expire trial", sub, err)
			report.Failed++
			continue
		}
		report.PastDue++
	}

	cutoff := now.AddDate(0, 0, -s.cfg.Business.PastDueGraceDays)
	overdue, err := s.subRepo.ListPastDueBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return report, fmt.Errorf("list overdue: %w", err)
	}
	for _, sub := range overdue {
		err := s.transition(ctx, sub, model.SubscriptionStatusLocked, now, map[string]interface{}{
			"locked_at":            now,
			"data_retention_until": now.AddDate(0, 0, s.cfg.Business.DataRetentionDays),
		})
		if err != nil {
			s.logSweepErr("lock", sub, err)
			report.Failed++
			continue
		}
		report.Locked++
	}

	return report, nil
}

func (s *SubscriptionService) logSweepErr(step string, sub *model.Subscription, err error) {
	s.logger.Errorw("subscription sweep step failed", "step", step, "merchant_id", sub.MerchantID, "status", sub.Status, "err", err)
}

func (s *SubscriptionService) transition(ctx context.Context, sub *model.Subscription, to string, now time.Time, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.subRepo.UpdateFromStatus(ctx, tx, sub.ID, sub.Status, updates); err != nil {
			return err
		}
		return s.writeEvent(ctx, tx, sub, sub.Status, to, now)
	})
}

func (s *SubscriptionService) cancelAtPeriodEnd(ctx context.Context, sub *model.Subscription, now time.Time) error {
	return s.transition(ctx, sub, model.SubscriptionStatusCanceled, now, map[string]interface{}{
		"canceled_at":          now,
		"cancel_at_period_end": false,
	})
}

// renew charges the next period. It returns false when the wallet could not
// cover it and the subscription moved to past_due instead.
func (s *SubscriptionService) renew(ctx context.Context, sub *model.Subscription, now time.Time) (bool, error) {
	plan, err := s.planRepo.GetByID(ctx, sub.PlanID)
	if err != nil {
		return false, err
	}

	start := *sub.CurrentPeriodEnd
	end := start.AddDate(0, 1, 0)
	// a row that fell far behind restarts from now rather than billing the gap
	if end.Before(now) {
		start = now
		end = now.AddDate(0, 1, 0)
	}
	reference := fmt.Sprintf("renewal:%d:%s", sub.ID, start.UTC().Format("20060102"))
	owner := model.MerchantOwner(sub.MerchantID)

	renewed := false
	err = s.ledger.WithLock(ctx, owner, func() error {
		_, balErr := s.ledger.RequireBalance(ctx, nil, owner, plan.Price)
		insufficient := errors.Is(balErr, ErrInsufficientBalance)
		if balErr != nil && !insufficient {
			return balErr
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			updates := map[string]interface{}{
				"current_period_start": start,
				"current_period_end":   end,
			}
			if insufficient {
				updates = map[string]interface{}{
					"status":         model.SubscriptionStatusPastDue,
					"past_due_since": now,
				}
			}
			if err := s.subRepo.UpdateFromStatus(ctx, tx, sub.ID, model.SubscriptionStatusActive, updates); err != nil {
				return err
			}

			period := *sub
			period.CurrentPeriodStart = &start
			period.CurrentPeriodEnd = &end
			if plan.Price > 0 {
				invoice, _, err := s.billPeriod(ctx, tx, &period, plan, now, reference, !insufficient)
				if err != nil {
					return err
				}
				if insufficient {
					if err := s.invoiceRepo.MarkFailed(ctx, tx, invoice.ID); err != nil {
						return err
					}
				}
			}

			if insufficient {
				return s.writeEvent(ctx, tx, sub, model.SubscriptionStatusActive, model.SubscriptionStatusPastDue, now)
			}
			renewed = true
			return s.writeEvent(ctx, tx, sub, model.SubscriptionStatusActive, model.SubscriptionStatusActive, now)
		})
	})
	return renewed, err
}
