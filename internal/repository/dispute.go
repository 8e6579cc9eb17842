package repository

import (
	"context"
	"time"

	"marketplace-escrow/internal/model"

	"gorm.io/gorm"
)

type DisputeRepository interface {
	Create(ctx context.Context, tx *gorm.DB, dispute *model.Dispute) error
	FindByID(ctx context.Context, id string) (*model.Dispute, error)
	// HasOpenForPayment reports whether a payment already carries an
	// unresolved dispute (at most one may be open at a time).
	HasOpenForPayment(ctx context.Context, paymentID string) (bool, error)
	// Resolve closes one dispute; the open-status guard makes a second
	// resolution affect zero rows.
	Resolve(ctx context.Context, tx *gorm.DB, id, resolution, notes string) (int64, error)
	// ResolveOpenForPayment closes whatever open dispute the payment
	// carries, as part of an admin resolution that targeted the payment
	// rather than a specific dispute.
	ResolveOpenForPayment(ctx context.Context, tx *gorm.DB, paymentID, resolution, notes string) error
}

type disputeRepoImpl struct {
	db *gorm.DB
}

func NewDisputeRepository(db *gorm.DB) DisputeRepository {
	return &disputeRepoImpl{db: db}
}

func (r *disputeRepoImpl) Create(ctx context.Context, tx *gorm.DB, dispute *model.Dispute) error {
	return tx.WithContext(ctx).Create(dispute).Error
}

func (r *disputeRepoImpl) FindByID(ctx context.Context, id string) (*model.Dispute, error) {
	var dispute model.Dispute
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepoImpl) HasOpenForPayment(ctx context.Context, paymentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Dispute{}).
		Where("payment_id = ? AND status = ?", paymentID, model.DisputeStatusOpen).
		Count(&count).Error
	return count > 0, err
}

func (r *disputeRepoImpl) Resolve(ctx context.Context, tx *gorm.DB, id, resolution, notes string) (int64, error) {
	now := time.Now()
	result := tx.WithContext(ctx).Model(&model.Dispute{}).
		Where("id = ? AND status = ?", id, model.DisputeStatusOpen).
		Updates(map[string]interface{}{
			"status":           resolution,
			"resolution_notes": notes,
			"resolved_at":      now,
			"updated_at":       now,
		})
	return result.RowsAffected, result.Error
}

func (r *disputeRepoImpl) ResolveOpenForPayment(ctx context.Context, tx *gorm.DB, paymentID, resolution, notes string) error {
	now := time.Now()
	return tx.WithContext(ctx).Model(&model.Dispute{}).
		Where("payment_id = ? AND status = ?", paymentID, model.DisputeStatusOpen).
		Updates(map[string]interface{}{
			"status":           resolution,
			"resolution_notes": notes,
			"resolved_at":      now,
			"updated_at":       now,
		}).Error
}
