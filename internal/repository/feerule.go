package repository

import (
	"context"
	"errors"

	"marketplace-escrow/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type FeeRuleRepository interface {
	// FindMatch returns the winning active rule for the amount, or nil
	// when no rule matches (caller falls back to the default rate).
	// Highest priority wins; most recently created breaks ties.
	FindMatch(ctx context.Context, amount decimal.Decimal) (*model.FeeRule, error)
	Create(ctx context.Context, tx *gorm.DB, rule *model.FeeRule) error
}

type feeRuleRepoImpl struct {
	db *gorm.DB
}

func NewFeeRuleRepository(db *gorm.DB) FeeRuleRepository {
	return &feeRuleRepoImpl{db: db}
}

func (r *feeRuleRepoImpl) FindMatch(ctx context.Context, amount decimal.Decimal) (*model.FeeRule, error) {
	var rule model.FeeRule
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("min_amount <= ?", amount).
		Where("(max_amount IS NULL OR max_amount >= ?)", amount).
		Order("priority DESC, created_at DESC").
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *feeRuleRepoImpl) Create(ctx context.Context, tx *gorm.DB, rule *model.FeeRule) error {
	return tx.WithContext(ctx).Create(rule).Error
}
