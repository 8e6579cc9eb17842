package repository

import (
	"context"
	"time"

	"marketplace-escrow/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerRepository owns every balance mutation: user available balances
// and the singleton platform fee pool. All mutations are atomic
// increments executed inside the caller's transaction — never
// read-modify-write from application code.
type LedgerRepository interface {
	CreditUser(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) error
	// DebitUser only debits when the balance covers the amount; zero
	// rows means insufficient funds (or unknown user).
	DebitUser(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) (int64, error)
	CreditFeePool(ctx context.Context, tx *gorm.DB, amount decimal.Decimal) error
	DebitFeePool(ctx context.Context, tx *gorm.DB, amount decimal.Decimal) (int64, error)
	FeePool(ctx context.Context) (decimal.Decimal, error)
	UserBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

type ledgerRepoImpl struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepoImpl{db: db}
}

func (r *ledgerRepoImpl) CreditUser(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) error {
	result := tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance + ?", amount),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ledgerRepoImpl) DebitUser(ctx context.Context, tx *gorm.DB, userID string, amount decimal.Decimal) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND available_balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance - ?", amount),
			"updated_at":        time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *ledgerRepoImpl) CreditFeePool(ctx context.Context, tx *gorm.DB, amount decimal.Decimal) error {
	result := tx.WithContext(ctx).Model(&model.PlatformLedger{}).
		Where("id = ?", 1).
		Updates(map[string]interface{}{
			"fee_pool":   gorm.Expr("fee_pool + ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ledgerRepoImpl) DebitFeePool(ctx context.Context, tx *gorm.DB, amount decimal.Decimal) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.PlatformLedger{}).
		Where("id = ? AND fee_pool >= ?", 1, amount).
		Updates(map[string]interface{}{
			"fee_pool":   gorm.Expr("fee_pool - ?", amount),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *ledgerRepoImpl) FeePool(ctx context.Context) (decimal.Decimal, error) {
	var ledger model.PlatformLedger
	err := r.db.WithContext(ctx).
		Where("id = ?", 1).
		First(&ledger).Error
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.FeePool, nil
}

func (r *ledgerRepoImpl) UserBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return decimal.Zero, err
	}
	return user.AvailableBalance, nil
}
