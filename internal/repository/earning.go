package repository

import (
	"context"
	"time"

	"marketplace-escrow/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EarningRepository interface {
	Create(ctx context.Context, tx *gorm.DB, earning *model.Earning) error
	// LockForWithdrawal flips the seller's oldest available earnings to
	// withdrawal_pending, tagged with the withdrawal, while their
	// cumulative total stays within amount.
	LockForWithdrawal(ctx context.Context, tx *gorm.DB, userID, withdrawalID string, amount decimal.Decimal) error
	ReleaseLock(ctx context.Context, tx *gorm.DB, withdrawalID string) error
	SumAvailable(ctx context.Context, userID string) (decimal.Decimal, error)
}

type earningRepoImpl struct {
	db *gorm.DB
}

func NewEarningRepository(db *gorm.DB) EarningRepository {
	return &earningRepoImpl{db: db}
}

func (r *earningRepoImpl) Create(ctx context.Context, tx *gorm.DB, earning *model.Earning) error {
	return tx.WithContext(ctx).Create(earning).Error
}

func (r *earningRepoImpl) LockForWithdrawal(ctx context.Context, tx *gorm.DB, userID, withdrawalID string, amount decimal.Decimal) error {
	var earnings []*model.Earning
	err := tx.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.EarningStatusAvailable).
		Order("created_at ASC").
		Find(&earnings).Error
	if err != nil {
		return err
	}

	locked := decimal.Zero
	for _, e := range earnings {
		if locked.Add(e.Amount).GreaterThan(amount) {
			break
		}
		locked = locked.Add(e.Amount)

		result := tx.WithContext(ctx).Model(&model.Earning{}).
			Where("id = ? AND status = ?", e.ID, model.EarningStatusAvailable).
			Updates(map[string]interface{}{
				"status":        model.EarningStatusWithdrawalPending,
				"withdrawal_id": withdrawalID,
				"updated_at":    time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

func (r *earningRepoImpl) ReleaseLock(ctx context.Context, tx *gorm.DB, withdrawalID string) error {
	return tx.WithContext(ctx).Model(&model.Earning{}).
		Where("withdrawal_id = ? AND status = ?", withdrawalID, model.EarningStatusWithdrawalPending).
		Updates(map[string]interface{}{
			"status":        model.EarningStatusAvailable,
			"withdrawal_id": "",
			"updated_at":    time.Now(),
		}).Error
}

func (r *earningRepoImpl) SumAvailable(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Earning{}).
		Select("SUM(amount)").
		Where("user_id = ? AND status = ?", userID, model.EarningStatusAvailable).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
