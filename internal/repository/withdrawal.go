package repository

import (
	"context"
	"time"

	"marketplace-escrow/internal/model"

	"gorm.io/gorm"
)

type WithdrawalRepository interface {
	Create(ctx context.Context, tx *gorm.DB, w *model.Withdrawal) error
	FindByID(ctx context.Context, id string) (*model.Withdrawal, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, id, recipientCode, transferCode string) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id, reason string) error
}

type withdrawalRepoImpl struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) WithdrawalRepository {
	return &withdrawalRepoImpl{db: db}
}

func (r *withdrawalRepoImpl) Create(ctx context.Context, tx *gorm.DB, w *model.Withdrawal) error {
	return tx.WithContext(ctx).Create(w).Error
}

func (r *withdrawalRepoImpl) FindByID(ctx context.Context, id string) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *withdrawalRepoImpl) MarkProcessing(ctx context.Context, tx *gorm.DB, id, recipientCode, transferCode string) error {
	return tx.WithContext(ctx).Model(&model.Withdrawal{}).
		Where("id = ? AND status = ?", id, model.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":         model.WithdrawalStatusProcessing,
			"recipient_code": recipientCode,
			"transfer_code":  transferCode,
			"updated_at":     time.Now(),
		}).Error
}

func (r *withdrawalRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, id, reason string) error {
	return tx.WithContext(ctx).Model(&model.Withdrawal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         model.WithdrawalStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		}).Error
}

type AdminFeeWithdrawalRepository interface {
	Create(ctx context.Context, tx *gorm.DB, w *model.AdminFeeWithdrawal) error
	FindByID(ctx context.Context, id string) (*model.AdminFeeWithdrawal, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, id, recipientCode, transferCode string) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id, reason string) error
}

type adminFeeWithdrawalRepoImpl struct {
	db *gorm.DB
}

func NewAdminFeeWithdrawalRepository(db *gorm.DB) AdminFeeWithdrawalRepository {
	return &adminFeeWithdrawalRepoImpl{db: db}
}

func (r *adminFeeWithdrawalRepoImpl) Create(ctx context.Context, tx *gorm.DB, w *model.AdminFeeWithdrawal) error {
	return tx.WithContext(ctx).Create(w).Error
}

func (r *adminFeeWithdrawalRepoImpl) FindByID(ctx context.Context, id string) (*model.AdminFeeWithdrawal, error) {
	var w model.AdminFeeWithdrawal
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *adminFeeWithdrawalRepoImpl) MarkProcessing(ctx context.Context, tx *gorm.DB, id, recipientCode, transferCode string) error {
	return tx.WithContext(ctx).Model(&model.AdminFeeWithdrawal{}).
		Where("id = ? AND status = ?", id, model.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":         model.WithdrawalStatusProcessing,
			"recipient_code": recipientCode,
			"transfer_code":  transferCode,
			"updated_at":     time.Now(),
		}).Error
}

func (r *adminFeeWithdrawalRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, id, reason string) error {
	return tx.WithContext(ctx).Model(&model.AdminFeeWithdrawal{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         model.WithdrawalStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		}).Error
}
