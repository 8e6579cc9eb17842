package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-escrow/internal/apperr"
	"marketplace-escrow/internal/model"
	"marketplace-escrow/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DisputeService files disputes against escrow-held payments. Filing
// only flags the payment; resolution is owned by the admin actions.
type DisputeService interface {
	FileDispute(ctx context.Context, paymentID, itemID, filedBy, reason, description string) (*model.Dispute, error)
}

type disputeServiceImpl struct {
	db            *gorm.DB
	notifier      Notifier
	paymentRepo   repository.PaymentRepository
	disputeRepo   repository.DisputeRepository
	disputeWindow time.Duration
}

func NewDisputeService(
	db *gorm.DB,
	notifier Notifier,
	paymentRepo repository.PaymentRepository,
	disputeRepo repository.DisputeRepository,
	disputeWindow time.Duration,
) DisputeService {
	return &disputeServiceImpl{
		db:            db,
		notifier:      notifier,
		paymentRepo:   paymentRepo,
		disputeRepo:   disputeRepo,
		disputeWindow: disputeWindow,
	}
}

func (s *disputeServiceImpl) FileDispute(ctx context.Context, paymentID, itemID, filedBy, reason, description string) (*model.Dispute, error) {
	if reason == "" {
		return nil, apperr.Validationf("dispute reason is required")
	}

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("payment %s not found", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}

	if filedBy != payment.BuyerID && filedBy != payment.SellerID {
		return nil, apperr.Forbiddenf("only a party to the payment can file a dispute")
	}
	if itemID == "" {
		itemID = payment.ItemID
	}
	if itemID != payment.ItemID {
		return nil, apperr.Validationf("item does not belong to payment %s", paymentID)
	}

	if err := s.checkEligibility(payment, filedBy); err != nil {
		return nil, err
	}

	open, err := s.disputeRepo.HasOpenForPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("check open dispute: %w", err)
	}
	if open {
		return nil, apperr.Conflictf("payment %s already has an open dispute", paymentID)
	}

	dispute := &model.Dispute{
		ID:          uuid.NewString(),
		PaymentID:   paymentID,
		ItemID:      itemID,
		FiledBy:     filedBy,
		Reason:      reason,
		Description: description,
		Status:      model.DisputeStatusOpen,
		SubmittedAt: time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.disputeRepo.Create(ctx, tx, dispute); err != nil {
			return fmt.Errorf("store dispute: %w", err)
		}
		rows, err := s.paymentRepo.FlagDisputed(ctx, tx, paymentID, dispute.ID, reason)
		if err != nil {
			return fmt.Errorf("flag payment disputed: %w", err)
		}
		if rows == 0 {
			// The payment left a disputable state between the
			// eligibility read and this transaction.
			return apperr.Conflictf("payment %s is no longer eligible for dispute", paymentID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.DisputeFiled(ctx, dispute)
	return dispute, nil
}

// checkEligibility enforces who may dispute which payment state. Buyers
// may dispute held escrow or a recent release; sellers may dispute a
// release they are still waiting on (held escrow only).
func (s *disputeServiceImpl) checkEligibility(payment *model.Payment, filedBy string) error {
	switch payment.Status {
	case model.PaymentStatusPaid:
		return nil
	case model.PaymentStatusReleased:
		if filedBy != payment.BuyerID {
			return apperr.Conflictf("payment %s has already been released", payment.ID)
		}
		if payment.ReleasedAt == nil || time.Since(*payment.ReleasedAt) > s.disputeWindow {
			return apperr.Conflictf("dispute window for payment %s has closed", payment.ID)
		}
		return nil
	default:
		return apperr.Conflictf("payment %s is not eligible for dispute", payment.ID)
	}
}
