package repository

import (
	"context"
	"fmt"

	"couponhub/internal/model"

	"gorm.io/gorm"
)

type AccountingRepository struct {
	db *gorm.DB
}

func NewAccountingRepository(db *gorm.DB) *AccountingRepository {
	return &AccountingRepository{db: db}
}

func (r *AccountingRepository) Create(ctx context.Context, e *model.AccountEntry) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ListByRange returns live entries with from <= occurred_on <= to, dates as
// YYYY-MM-DD.
func (r *AccountingRepository) ListByRange(ctx context.Context, merchantID int64, from, to string) ([]*model.AccountEntry, error) {
	var items []*model.AccountEntry
	err := r.db.WithContext(ctx).
		Where("merchant_id = ? AND occurred_on >= ? AND occurred_on <= ?", merchantID, from, to).
		Order("occurred_on DESC").
		Order("id DESC").
		Find(&items).Error
	return items, err
}

// Delete soft-deletes the entry.
func (r *AccountingRepository) Delete(ctx context.Context, merchantID, id int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND merchant_id = ?", id, merchantID).
		Delete(&model.AccountEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Bucket is one aggregated group. Key is empty for the totals row.
type Bucket struct {
	Key     string `gorm:"column:bucket" json:"key"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
	Net     int64  `json:"net"`
}

var groupColumns = map[string]string{
	model.GroupByDay:      "occurred_on",
	model.GroupByCategory: "COALESCE(category, '')",
	model.GroupBySource:   "COALESCE(source, '')",
}

func sums() string {
	return fmt.Sprintf(
		"COALESCE(SUM(CASE WHEN kind = '%s' THEN amount ELSE 0 END), 0) AS income, "+
			"COALESCE(SUM(CASE WHEN kind = '%s' THEN amount ELSE 0 END), 0) AS expense",
		model.EntryKindIncome, model.EntryKindExpense)
}

func (r *AccountingRepository) scope(ctx context.Context, merchantID int64, from, to string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.AccountEntry{}).
		Where("merchant_id = ? AND occurred_on >= ? AND occurred_on <= ?", merchantID, from, to)
}

// GroupBy sums entries per bucket, sorted by key.
func (r *AccountingRepository) GroupBy(ctx context.Context, merchantID int64, from, to, groupBy string) ([]Bucket, error) {
	col, ok := groupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unknown group %q", groupBy)
	}

	var rows []Bucket
	err := r.scope(ctx, merchantID, from, to).
		Select(col + " AS bucket, " + sums()).
		Group(col).
		Order(col).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Net = rows[i].Income - rows[i].Expense
	}
	return rows, nil
}

func (r *AccountingRepository) Totals(ctx context.Context, merchantID int64, from, to string) (Bucket, error) {
	var total Bucket
	err := r.scope(ctx, merchantID, from, to).
		Select(sums()).
		Scan(&total).Error
	total.Net = total.Income - total.Expense
	return total, err
}
