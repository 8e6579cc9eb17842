package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"marketplace-escrow/internal/apperr"
	"marketplace-escrow/internal/client"
	"marketplace-escrow/internal/model"
	"marketplace-escrow/internal/phone"
	"marketplace-escrow/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutDestination carries the external payout channel details. Either
// PhoneNumber (mobile money) or BankCode+AccountNumber (bank) is set,
// according to the method.
type PayoutDestination struct {
	PhoneNumber   string
	BankCode      string
	AccountNumber string
	AccountName   string
}

// WithdrawalService moves internally held balances out to an external
// payout channel: seller available balance, or the platform fee pool
// for admins. Both flows debit first in a local transaction, call the
// gateway after commit, and compensate the debit if the gateway fails.
type WithdrawalService interface {
	RequestSellerWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, payoutMethod string, dest PayoutDestination) (*model.Withdrawal, error)
	RequestPlatformFeeWithdrawal(ctx context.Context, adminID string, amount decimal.Decimal, payoutMethod string, dest PayoutDestination) (*model.AdminFeeWithdrawal, error)
}

type withdrawalServiceImpl struct {
	db             *gorm.DB
	log            *slog.Logger
	paystackClient client.PaystackClient
	ledgerRepo     repository.LedgerRepository
	earningRepo    repository.EarningRepository
	withdrawalRepo repository.WithdrawalRepository
	adminFeeRepo   repository.AdminFeeWithdrawalRepository
	userRepo       repository.UserRepository
	currency       string
	minWithdrawal  decimal.Decimal
}

func NewWithdrawalService(
	db *gorm.DB,
	log *slog.Logger,
	paystackClient client.PaystackClient,
	ledgerRepo repository.LedgerRepository,
	earningRepo repository.EarningRepository,
	withdrawalRepo repository.WithdrawalRepository,
	adminFeeRepo repository.AdminFeeWithdrawalRepository,
	userRepo repository.UserRepository,
	currency string,
	minWithdrawal float64,
) WithdrawalService {
	return &withdrawalServiceImpl{
		db:             db,
		log:            log,
		paystackClient: paystackClient,
		ledgerRepo:     ledgerRepo,
		earningRepo:    earningRepo,
		withdrawalRepo: withdrawalRepo,
		adminFeeRepo:   adminFeeRepo,
		userRepo:       userRepo,
		currency:       currency,
		minWithdrawal:  decimal.NewFromFloat(minWithdrawal),
	}
}

// normalizeDestination validates the payout channel and canonicalizes
// the mobile money number to the gateway format.
func (s *withdrawalServiceImpl) normalizeDestination(payoutMethod string, dest PayoutDestination) (PayoutDestination, error) {
	switch payoutMethod {
	case model.PayoutMethodMobileMoney:
		if dest.PhoneNumber == "" {
			return dest, apperr.Validationf("phone number is required for mobile money payout")
		}
		normalized, err := phone.Normalize(dest.PhoneNumber)
		if err != nil {
			return dest, err
		}
		dest.PhoneNumber = normalized
	case model.PayoutMethodBank:
		if dest.BankCode == "" || dest.AccountNumber == "" {
			return dest, apperr.Validationf("bank code and account number are required for bank payout")
		}
	default:
		return dest, apperr.Validationf("unknown payout method %q", payoutMethod)
	}
	return dest, nil
}

func (s *withdrawalServiceImpl) RequestSellerWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, payoutMethod string, dest PayoutDestination) (*model.Withdrawal, error) {
	if amount.LessThan(s.minWithdrawal) {
		return nil, apperr.Validationf("minimum withdrawal is %s %s", s.minWithdrawal.StringFixed(2), s.currency)
	}
	dest, err := s.normalizeDestination(payoutMethod, dest)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("user %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	withdrawal := &model.Withdrawal{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        amount.Round(2),
		Currency:      s.currency,
		Status:        model.WithdrawalStatusPending,
		PayoutMethod:  payoutMethod,
		PhoneNumber:   dest.PhoneNumber,
		BankCode:      dest.BankCode,
		AccountNumber: dest.AccountNumber,
	}

	// Debit first, atomically with the withdrawal record. The guard on
	// the debit is the insufficient-balance check.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.ledgerRepo.DebitUser(ctx, tx, userID, withdrawal.Amount)
		if err != nil {
			return fmt.Errorf("debit seller balance: %w", err)
		}
		if rows == 0 {
			return apperr.ErrInsufficientBal
		}
		if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			return fmt.Errorf("store withdrawal: %w", err)
		}
		if err := s.earningRepo.LockForWithdrawal(ctx, tx, userID, withdrawal.ID, withdrawal.Amount); err != nil {
			return fmt.Errorf("lock earnings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	accountName := user.Name
	if accountName == "" {
		accountName = user.Email
	}

	recipientCode, transferCode, gwErr := s.runTransfer(ctx, withdrawal.ID, withdrawal.Amount, payoutMethod, dest, accountName, "seller earnings withdrawal")
	if gwErr != nil {
		s.compensateSellerWithdrawal(ctx, withdrawal, gwErr)
		return nil, fmt.Errorf("%w: %v", apperr.ErrGatewayFailure, gwErr)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.withdrawalRepo.MarkProcessing(ctx, tx, withdrawal.ID, recipientCode, transferCode)
	})
	if err != nil {
		return nil, fmt.Errorf("mark withdrawal processing: %w", err)
	}

	return s.withdrawalRepo.FindByID(ctx, withdrawal.ID)
}

func (s *withdrawalServiceImpl) RequestPlatformFeeWithdrawal(ctx context.Context, adminID string, amount decimal.Decimal, payoutMethod string, dest PayoutDestination) (*model.AdminFeeWithdrawal, error) {
	admin, err := requireAdmin(ctx, s.userRepo, adminID)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, apperr.Validationf("amount must be positive")
	}
	dest, err = s.normalizeDestination(payoutMethod, dest)
	if err != nil {
		return nil, err
	}

	withdrawal := &model.AdminFeeWithdrawal{
		ID:            uuid.NewString(),
		AdminID:       adminID,
		Amount:        amount.Round(2),
		Currency:      s.currency,
		Status:        model.WithdrawalStatusPending,
		PayoutMethod:  payoutMethod,
		PhoneNumber:   dest.PhoneNumber,
		BankCode:      dest.BankCode,
		AccountNumber: dest.AccountNumber,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.ledgerRepo.DebitFeePool(ctx, tx, withdrawal.Amount)
		if err != nil {
			return fmt.Errorf("debit fee pool: %w", err)
		}
		if rows == 0 {
			return apperr.ErrInsufficientBal
		}
		return s.adminFeeRepo.Create(ctx, tx, withdrawal)
	})
	if err != nil {
		return nil, err
	}

	recipientCode, transferCode, gwErr := s.runTransfer(ctx, withdrawal.ID, withdrawal.Amount, payoutMethod, dest, admin.Name, "platform fee withdrawal")
	if gwErr != nil {
		s.compensatePlatformWithdrawal(ctx, withdrawal, gwErr)
		return nil, fmt.Errorf("%w: %v", apperr.ErrGatewayFailure, gwErr)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.adminFeeRepo.MarkProcessing(ctx, tx, withdrawal.ID, recipientCode, transferCode)
	})
	if err != nil {
		return nil, fmt.Errorf("mark fee withdrawal processing: %w", err)
	}

	return s.adminFeeRepo.FindByID(ctx, withdrawal.ID)
}

// runTransfer performs the non-transactional gateway leg: create a
// payout recipient, then initiate the transfer. Amounts cross the wire
// in the smallest currency unit.
func (s *withdrawalServiceImpl) runTransfer(ctx context.Context, reference string, amount decimal.Decimal, payoutMethod string, dest PayoutDestination, accountName, reason string) (string, string, error) {
	recipientReq := &client.RecipientRequest{
		Name:     accountName,
		Currency: s.currency,
	}
	switch payoutMethod {
	case model.PayoutMethodMobileMoney:
		recipientReq.Type = "mobile_money"
		recipientReq.AccountNumber = dest.PhoneNumber
		recipientReq.BankCode = "MPESA"
	case model.PayoutMethodBank:
		recipientReq.Type = "nuban"
		recipientReq.AccountNumber = dest.AccountNumber
		recipientReq.BankCode = dest.BankCode
	}

	recipientCode, err := s.paystackClient.CreateRecipient(ctx, recipientReq)
	if err != nil {
		return "", "", fmt.Errorf("create payout recipient: %w", err)
	}

	result, err := s.paystackClient.InitiateTransfer(ctx, &client.TransferRequest{
		AmountSubunits: amount.Mul(decimal.NewFromInt(100)).IntPart(),
		RecipientCode:  recipientCode,
		Reference:      reference,
		Reason:         reason,
		Currency:       s.currency,
	})
	if err != nil {
		return "", "", fmt.Errorf("initiate transfer: %w", err)
	}

	return recipientCode, result.TransferCode, nil
}

// compensateSellerWithdrawal reverses the local debit after a gateway
// failure. If the compensation itself fails the ledger is inconsistent
// and needs manual reconciliation, so it is logged loudly.
func (s *withdrawalServiceImpl) compensateSellerWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, cause error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledgerRepo.CreditUser(ctx, tx, withdrawal.UserID, withdrawal.Amount); err != nil {
			return fmt.Errorf("re-credit seller balance: %w", err)
		}
		if err := s.earningRepo.ReleaseLock(ctx, tx, withdrawal.ID); err != nil {
			return fmt.Errorf("unlock earnings: %w", err)
		}
		return s.withdrawalRepo.MarkFailed(ctx, tx, withdrawal.ID, cause.Error())
	})
	if err != nil {
		s.log.ErrorContext(ctx, "ACCOUNTING DISCREPANCY: seller withdrawal compensation failed, manual reconciliation required",
			"withdrawal_id", withdrawal.ID,
			"user_id", withdrawal.UserID,
			"amount", withdrawal.Amount.String(),
			"gateway_error", cause.Error(),
			"compensation_error", err.Error(),
		)
	}
}

func (s *withdrawalServiceImpl) compensatePlatformWithdrawal(ctx context.Context, withdrawal *model.AdminFeeWithdrawal, cause error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ledgerRepo.CreditFeePool(ctx, tx, withdrawal.Amount); err != nil {
			return fmt.Errorf("re-credit fee pool: %w", err)
		}
		return s.adminFeeRepo.MarkFailed(ctx, tx, withdrawal.ID, cause.Error())
	})
	if err != nil {
		s.log.ErrorContext(ctx, "ACCOUNTING DISCREPANCY: platform fee withdrawal compensation failed, manual reconciliation required",
			"withdrawal_id", withdrawal.ID,
			"amount", withdrawal.Amount.String(),
			"gateway_error", cause.Error(),
			"compensation_error", err.Error(),
		)
	}
}
