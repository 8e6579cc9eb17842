package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-escrow/internal/apperr"
	"marketplace-escrow/internal/model"
	"marketplace-escrow/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundResult reports a completed refund of held funds to a buyer.
type RefundResult struct {
	PaymentID      string
	BuyerID        string
	SellerID       string
	ItemID         string
	AmountRefunded decimal.Decimal
}

// AdminService is the operator surface: resolving overdue or disputed
// payments and surfacing the queue that needs attention. Every
// operation authorizes through the same requireAdmin check.
type AdminService interface {
	Release(ctx context.Context, paymentID, actingAdminID string) (*ReleaseResult, error)
	Refund(ctx context.Context, paymentID, actingAdminID, disputeID, notes string) (*RefundResult, error)
	ListNeedingAttention(ctx context.Context, actingAdminID string) ([]*model.Payment, error)
}

type adminServiceImpl struct {
	db             *gorm.DB
	notifier       Notifier
	paymentService PaymentService
	paymentRepo    repository.PaymentRepository
	itemRepo       repository.ItemRepository
	ledgerRepo     repository.LedgerRepository
	disputeRepo    repository.DisputeRepository
	userRepo       repository.UserRepository
	overdueAfter   time.Duration
}

func NewAdminService(
	db *gorm.DB,
	notifier Notifier,
	paymentService PaymentService,
	paymentRepo repository.PaymentRepository,
	itemRepo repository.ItemRepository,
	ledgerRepo repository.LedgerRepository,
	disputeRepo repository.DisputeRepository,
	userRepo repository.UserRepository,
	overdueAfter time.Duration,
) AdminService {
	return &adminServiceImpl{
		db:             db,
		notifier:       notifier,
		paymentService: paymentService,
		paymentRepo:    paymentRepo,
		itemRepo:       itemRepo,
		ledgerRepo:     ledgerRepo,
		disputeRepo:    disputeRepo,
		userRepo:       userRepo,
		overdueAfter:   overdueAfter,
	}
}

// requireAdmin is the single authorization check consumed by every
// admin-only operation.
func requireAdmin(ctx context.Context, userRepo repository.UserRepository, userID string) (*model.User, error) {
	user, err := userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Forbiddenf("caller is not an admin")
	}
	if err != nil {
		return nil, fmt.Errorf("find caller: %w", err)
	}
	if user.Role != model.RoleAdmin {
		return nil, apperr.Forbiddenf("caller is not an admin")
	}
	return user, nil
}

func (s *adminServiceImpl) Release(ctx context.Context, paymentID, actingAdminID string) (*ReleaseResult, error) {
	if _, err := requireAdmin(ctx, s.userRepo, actingAdminID); err != nil {
		return nil, err
	}
	return s.paymentService.ReleaseEscrow(ctx, paymentID, "released by admin "+actingAdminID)
}

func (s *adminServiceImpl) Refund(ctx context.Context, paymentID, actingAdminID, disputeID, notes string) (*RefundResult, error) {
	if _, err := requireAdmin(ctx, s.userRepo, actingAdminID); err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("payment %s not found", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}

	if disputeID != "" {
		dispute, err := s.disputeRepo.FindByID(ctx, disputeID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("dispute %s not found", disputeID)
		}
		if err != nil {
			return nil, fmt.Errorf("find dispute: %w", err)
		}
		if dispute.PaymentID != paymentID {
			return nil, apperr.Validationf("dispute %s does not belong to payment %s", disputeID, paymentID)
		}
	}

	if notes == "" {
		notes = "refunded by admin " + actingAdminID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.paymentRepo.MarkRefunded(ctx, tx, paymentID)
		if err != nil {
			return fmt.Errorf("mark payment refunded: %w", err)
		}
		if rows == 0 {
			return apperr.Conflictf("payment %s already resolved", paymentID)
		}

		// Restock if the item still exists; a deleted item is fine.
		if _, err := s.itemRepo.Restock(ctx, tx, payment.ItemID); err != nil {
			return fmt.Errorf("restock item: %w", err)
		}

		// Internal ledger credit for the full gross amount. Pushing the
		// money back to the buyer's original payment instrument is a
		// separate operational step.
		if err := s.ledgerRepo.CreditUser(ctx, tx, payment.BuyerID, payment.Amount); err != nil {
			return fmt.Errorf("credit buyer balance: %w", err)
		}

		if disputeID != "" {
			rows, err := s.disputeRepo.Resolve(ctx, tx, disputeID, model.DisputeStatusResolvedRefund, notes)
			if err != nil {
				return fmt.Errorf("resolve dispute: %w", err)
			}
			if rows == 0 {
				return apperr.Conflictf("dispute %s already resolved", disputeID)
			}
		} else if err := s.disputeRepo.ResolveOpenForPayment(ctx, tx, paymentID, model.DisputeStatusResolvedRefund, notes); err != nil {
			return fmt.Errorf("resolve open dispute: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.PaymentRefunded(ctx, payment)

	return &RefundResult{
		PaymentID:      payment.ID,
		BuyerID:        payment.BuyerID,
		SellerID:       payment.SellerID,
		ItemID:         payment.ItemID,
		AmountRefunded: payment.Amount,
	}, nil
}

// ListNeedingAttention surfaces disputed payments and escrow held past
// the overdue window, oldest first.
func (s *adminServiceImpl) ListNeedingAttention(ctx context.Context, actingAdminID string) ([]*model.Payment, error) {
	if _, err := requireAdmin(ctx, s.userRepo, actingAdminID); err != nil {
		return nil, err
	}
	return s.paymentRepo.ListNeedingAttention(ctx, time.Now().Add(-s.overdueAfter))
}
