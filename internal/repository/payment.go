package repository

import (
	"context"
	"time"

	"marketplace-escrow/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	FindByReference(ctx context.Context, gatewayRef string) (*model.Payment, error)

	// Guarded transitions. Each returns the number of rows moved; zero
	// means the guard rejected the transition (caller maps to conflict).
	MarkPaid(ctx context.Context, tx *gorm.DB, id, gatewayRef string) (int64, error)
	MarkReleased(ctx context.Context, tx *gorm.DB, id string) (int64, error)
	MarkReleasedUndisputed(ctx context.Context, tx *gorm.DB, id string) (int64, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, id string) (int64, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, id string) (int64, error)
	CancelStaleInitiated(ctx context.Context, tx *gorm.DB, olderThan time.Time) (int64, error)

	FlagDisputed(ctx context.Context, tx *gorm.DB, id, disputeID, reason string) (int64, error)
	ListNeedingAttention(ctx context.Context, paidBefore time.Time) ([]*model.Payment, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{db: db}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepoImpl) FindByReference(ctx context.Context, gatewayRef string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("gateway_reference = ?", gatewayRef).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, id, gatewayRef string) (int64, error) {
	now := time.Now()
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusInitiated).
		Updates(map[string]interface{}{
			"status":            model.PaymentStatusPaid,
			"gateway_reference": gatewayRef,
			"paid_at":           now,
			"updated_at":        now,
		})
	return result.RowsAffected, result.Error
}

// MarkReleased moves a held payment to released and clears dispute
// fields. The status guard is what makes concurrent resolutions safe:
// the second transaction sees zero rows and fails its conflict check.
func (r *paymentRepoImpl) MarkReleased(ctx context.Context, tx *gorm.DB, id string) (int64, error) {
	now := time.Now()
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"status":         model.PaymentStatusReleased,
			"is_disputed":    false,
			"dispute_id":     "",
			"dispute_reason": "",
			"released_at":    now,
			"updated_at":     now,
		})
	return result.RowsAffected, result.Error
}

// MarkReleasedUndisputed is the buyer-confirmation variant: the guard
// also requires no dispute flag, so a dispute filed concurrently wins
// the race and stays open for admin resolution.
func (r *paymentRepoImpl) MarkReleasedUndisputed(ctx context.Context, tx *gorm.DB, id string) (int64, error) {
	now := time.Now()
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ? AND is_disputed = ?", id, model.PaymentStatusPaid, false).
		Updates(map[string]interface{}{
			"status":      model.PaymentStatusReleased,
			"released_at": now,
			"updated_at":  now,
		})
	return result.RowsAffected, result.Error
}

func (r *paymentRepoImpl) MarkRefunded(ctx context.Context, tx *gorm.DB, id string) (int64, error) {
	now := time.Now()
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"status":         model.PaymentStatusRefunded,
			"is_disputed":    false,
			"dispute_id":     "",
			"dispute_reason": "",
			"refunded_at":    now,
			"updated_at":     now,
		})
	return result.RowsAffected, result.Error
}

func (r *paymentRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, id string) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status = ?", id, model.PaymentStatusInitiated).
		Updates(map[string]interface{}{
			"status":     model.PaymentStatusFailed,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *paymentRepoImpl) CancelStaleInitiated(ctx context.Context, tx *gorm.DB, olderThan time.Time) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("status = ? AND created_at < ?", model.PaymentStatusInitiated, olderThan).
		Updates(map[string]interface{}{
			"status":     model.PaymentStatusCancelled,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// FlagDisputed only flags payments still in a disputable state, so a
// payment resolved between the eligibility read and this transaction
// never ends up flagged in a terminal status.
func (r *paymentRepoImpl) FlagDisputed(ctx context.Context, tx *gorm.DB, id, disputeID, reason string) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ? AND status IN ?", id, []string{model.PaymentStatusPaid, model.PaymentStatusReleased}).
		Updates(map[string]interface{}{
			"is_disputed":    true,
			"dispute_id":     disputeID,
			"dispute_reason": reason,
			"updated_at":     time.Now(),
		})
	return result.RowsAffected, result.Error
}

// ListNeedingAttention returns disputed payments plus escrow held past
// the overdue cutoff, oldest first. A payment matching both conditions
// appears once (single query).
func (r *paymentRepoImpl) ListNeedingAttention(ctx context.Context, paidBefore time.Time) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where(
			"(status = ? AND COALESCE(paid_at, created_at) < ?) OR is_disputed = ?",
			model.PaymentStatusPaid, paidBefore, true,
		).
		Order("created_at ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
