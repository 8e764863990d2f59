package service

import (
	"context"
	"time"

	"couponhub/internal/model"
	"couponhub/internal/repository"
	"couponhub/pkg/logger"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AccountingService keeps the merchant's quick-entry income and expense book.
type AccountingService struct {
	logger *logger.Logger
	repo   *repository.AccountingRepository
}

func NewAccountingService(db *gorm.DB, log *logger.Logger) *AccountingService {
	return &AccountingService{
		logger: log,
		repo:   repository.NewAccountingRepository(db),
	}
}

type CreateEntryRequest struct {
	Kind       string `json:"kind" binding:"required"`
	Category   string `json:"category"`
	Source     string `json:"source"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	OccurredOn string `json:"occurred_on"`
	Note       string `json:"note"`
}

func (s *AccountingService) CreateEntry(ctx context.Context, merchantID int64, req CreateEntryRequest) (*model.AccountEntry, error) {
	if req.Kind != model.EntryKindIncome && req.Kind != model.EntryKindExpense {
		return nil, invalidParam("kind must be income or expense")
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	day := req.OccurredOn
	if day == "" {
		day = time.Now().Format(model.DateLayout)
	} else if _, err := time.Parse(model.DateLayout, day); err != nil {
		return nil, invalidParam("occurred_on must be YYYY-MM-DD")
	}

	entry := &model.AccountEntry{
		MerchantID: merchantID,
		Kind:       req.Kind,
		Category:   req.Category,
		Source:     req.Source,
		Amount:     req.Amount,
		OccurredOn: day,
		Note:       req.Note,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DateRange is an inclusive range of YYYY-MM-DD days.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NormalizeRange fills a missing bound: the range defaults to the last 30 days.
func NormalizeRange(from, to string) (DateRange, error) {
	now := time.Now()
	if to == "" {
		to = now.Format(model.DateLayout)
	}
	end, err := time.Parse(model.DateLayout, to)
	if err != nil {
		return DateRange{}, invalidParam("to must be YYYY-MM-DD")
	}
	if from == "" {
		from = end.AddDate(0, 0, -29).Format(model.DateLayout)
	}
	start, err := time.Parse(model.DateLayout, from)
	if err != nil {
		return DateRange{}, invalidParam("from must be YYYY-MM-DD")
	}
	if start.After(end) {
		return DateRange{}, invalidParam("from is after to")
	}
	return DateRange{From: from, To: to}, nil
}

func (s *AccountingService) ListEntries(ctx context.Context, merchantID int64, r DateRange) ([]*model.AccountEntry, error) {
	return s.repo.ListByRange(ctx, merchantID, r.From, r.To)
}

func (s *AccountingService) DeleteEntry(ctx context.Context, merchantID, id int64) error {
	return s.repo.Delete(ctx, merchantID, id)
}

// Summarize groups live entries by day, category or source.
func (s *AccountingService) Summarize(ctx context.Context, merchantID int64, r DateRange, groupBy string) ([]repository.Bucket, error) {
	switch groupBy {
	case model.GroupByDay, model.GroupByCategory, model.GroupBySource:
	default:
		return nil, invalidParam("group_by must be day, category or source")
	}
	buckets, err := s.repo.GroupBy(ctx, merchantID, r.From, r.To, groupBy)
	if err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []repository.Bucket{}
	}
	return buckets, nil
}

type Dashboard struct {
	Range      DateRange           `json:"range"`
	Totals     repository.Bucket   `json:"totals"`
	ByDay      []repository.Bucket `json:"by_day"`
	ByCategory []repository.Bucket `json:"by_category"`
	BySource   []repository.Bucket `json:"by_source"`
}

// Dashboard runs the totals and the three groupings concurrently.
func (s *AccountingService) Dashboard(ctx context.Context, merchantID int64, r DateRange) (*Dashboard, error) {
	d := &Dashboard{Range: r}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		d.Totals, err = s.repo.Totals(gctx, merchantID, r.From, r.To)
		return err
	})
	g.Go(func() error {
		var err error
		d.ByDay, err = s.Summarize(gctx, merchantID, r, model.GroupByDay)
		return err
	})
	g.Go(func() error {
		var err error
		d.ByCategory, err = s.Summarize(gctx, merchantID, r, model.GroupByCategory)
		return err
	})
	g.Go(func() error {
		var err error
		d.BySource, err = s.Summarize(gctx, merchantID, r, model.GroupBySource)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
